package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DoyleJ11/rps-client/internal/engine"
)

// Metrics holds the client's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ChannelsDialed  prometheus.Counter
	Reconnects      prometheus.Counter
	TransportErrors prometheus.Counter
	MalformedFrames prometheus.Counter
	UnknownFrames   prometheus.Counter
	MovesSent       prometheus.Counter
	Rounds          *prometheus.CounterVec
	Status          *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChannelsDialed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_channels_dialed_total",
			Help: "Channels created, including the first one",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_reconnects_scheduled_total",
			Help: "Replacement channels scheduled after a close",
		}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_transport_errors_total",
			Help: "Channel closes that originated from a transport error",
		}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_frames_malformed_total",
			Help: "Inbound frames that could not be decoded",
		}),
		UnknownFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_frames_unknown_total",
			Help: "Inbound frames with an unrecognised type",
		}),
		MovesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rps_moves_sent_total",
			Help: "Move submissions handed to the channel",
		}),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rps_rounds_total",
			Help: "Completed rounds by outcome for this player",
		}, []string{"outcome"}),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rps_session_status",
			Help: "1 for the current session status, 0 otherwise",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ChannelsDialed, m.Reconnects, m.TransportErrors,
			m.MalformedFrames, m.UnknownFrames, m.MovesSent,
			m.Rounds, m.Status,
		)
	}
	return m
}

func (m *Metrics) ChannelDialed() {
	if m != nil {
		m.ChannelsDialed.Inc()
	}
}

func (m *Metrics) ReconnectScheduled() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) TransportError() {
	if m != nil {
		m.TransportErrors.Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.MalformedFrames.Inc()
	}
}

func (m *Metrics) Unknown() {
	if m != nil {
		m.UnknownFrames.Inc()
	}
}

func (m *Metrics) MoveSent() {
	if m != nil {
		m.MovesSent.Inc()
	}
}

func (m *Metrics) Round(o engine.Outcome) {
	if m != nil {
		m.Rounds.WithLabelValues(string(o)).Inc()
	}
}

func (m *Metrics) SetStatus(current engine.Status) {
	if m == nil {
		return
	}
	for _, st := range []engine.Status{engine.StatusConnecting, engine.StatusWaiting, engine.StatusPlaying, engine.StatusResult} {
		v := 0.0
		if st == current {
			v = 1
		}
		m.Status.WithLabelValues(string(st)).Set(v)
	}
}
