package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/engine"
	"github.com/DoyleJ11/rps-client/internal/logging"
	"github.com/DoyleJ11/rps-client/internal/metrics"
	"github.com/DoyleJ11/rps-client/internal/schedule"
	"github.com/DoyleJ11/rps-client/pkg/types"
)

var ErrSessionClosed = errors.New("session closed")

// Sender is the one outbound path: the channel manager.
type Sender interface {
	Send(payload []byte)
}

type Recorder interface {
	Record(myMove engine.Move, res engine.RoundResult)
}

type Msg interface{ isSessionMsg() }

type Opened struct{}

func (Opened) isSessionMsg() {}

type Closed struct{}

func (Closed) isSessionMsg() {}

type TransportError struct{ Err error }

func (TransportError) isSessionMsg() {}

// Inbound carries one raw frame from the channel.
type Inbound struct{ Raw []byte }

func (Inbound) isSessionMsg() {}

type SubmitMove struct {
	Move  engine.Move
	Reply chan error // optional
}

func (SubmitMove) isSessionMsg() {}

type Subscribe struct {
	ID     string
	Outbox chan Snapshot // receives the current snapshot, then every change
}

func (Subscribe) isSessionMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type phaseTimerFired struct{ Gen uint64 }

func (phaseTimerFired) isSessionMsg() {}

type Snapshot struct {
	Version int
	State   engine.State
}

type View struct {
	Version        int
	NumSubscribers int
	PhaseTimer     bool
	State          engine.State
}

type Options struct {
	Sender Sender
	// Clock defaults to schedule.Real.
	Clock schedule.Clock
	// ResultDisplayDelay is how long a result stays up before the next
	// round; defaults to 3s.
	ResultDisplayDelay time.Duration
	Recorder           Recorder
	Metrics            *metrics.Metrics
	Logger             *zap.Logger
}

type Session struct {
	inbox   chan Msg
	state   engine.State
	version int
	subs    map[string]chan Snapshot

	sender   Sender
	clock    schedule.Clock
	delay    time.Duration
	recorder Recorder
	metrics  *metrics.Metrics
	log      *zap.Logger

	phaseTask *schedule.Task
	phaseGen  uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = schedule.Real
	}
	if opts.ResultDisplayDelay <= 0 {
		opts.ResultDisplayDelay = 3 * time.Second
	}

	s := &Session{
		inbox:    make(chan Msg, 64),
		state:    engine.NewState(),
		subs:     make(map[string]chan Snapshot),
		sender:   opts.Sender,
		clock:    opts.Clock,
		delay:    opts.ResultDisplayDelay,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		log:      logging.OrNop(opts.Logger).With(zap.String("component", "session")),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.metrics.SetStatus(s.state.Status)

	go s.loop()
	return s
}

// Expose the inbox so the transport, tests and the API can post messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) OnOpened()            { s.post(Opened{}) }
func (s *Session) OnClosed()            { s.post(Closed{}) }
func (s *Session) OnError(err error)    { s.post(TransportError{Err: err}) }
func (s *Session) OnMessage(raw []byte) { s.post(Inbound{Raw: raw}) }

// Submit asks for move to be played this round. Rejections by the move guard
// come back as engine errors and leave the state untouched.
func (s *Session) Submit(ctx context.Context, move engine.Move) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, SubmitMove{Move: move, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrSessionClosed
	}
}

// Shutdown stops the actor and waits for it; pending timers are cancelled and
// subscriber outboxes closed.
func (s *Session) Shutdown() {
	select {
	case s.inbox <- Shutdown{}:
	case <-s.done:
	}
	<-s.done
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// post is used from transport and timer goroutines; after shutdown it drops.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Opened:
				s.apply(engine.Opened{})

			case Closed:
				s.apply(engine.Closed{})

			case TransportError:
				s.log.Warn("transport error", zap.Error(msg.Err))
				s.apply(engine.TransportError{Err: msg.Err})

			case Inbound:
				s.handleFrame(msg.Raw)

			case SubmitMove:
				err := s.submit(msg.Move)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case phaseTimerFired:
				if msg.Gen != s.phaseGen {
					// armed for a phase we already left
					break
				}
				s.phaseTask = nil
				s.apply(engine.PhaseTimerElapsed{})

			case Subscribe:
				s.subs[msg.ID] = msg.Outbox
				select {
				case msg.Outbox <- s.snapshot():
				default:
					close(msg.Outbox)
					delete(s.subs, msg.ID)
				}

			case Unsubscribe:
				if ch, ok := s.subs[msg.ID]; ok {
					close(ch)
					delete(s.subs, msg.ID)
				}

			case GetState:
				msg.Reply <- View{
					Version:        s.version,
					NumSubscribers: len(s.subs),
					PhaseTimer:     s.phaseTask != nil,
					State:          s.state,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleFrame(raw []byte) {
	ev, err := types.Decode(raw)
	if err != nil {
		s.metrics.Malformed()
		s.log.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	if u, ok := ev.(engine.Unknown); ok {
		s.metrics.Unknown()
		s.log.Info("ignoring unknown message type", zap.String("type", u.Type))
		return
	}
	s.apply(ev)
}

func (s *Session) apply(ev engine.Event) {
	next, effects, changed := engine.Apply(s.state, ev)
	if !changed {
		s.log.Debug("event ignored in current phase",
			zap.String("status", string(s.state.Status)),
			zap.String("event", eventName(ev)))
	} else {
		s.commit(next)
	}
	s.run(effects)
}

func (s *Session) submit(m engine.Move) error {
	next, effects, err := engine.Submit(s.state, m)
	if err != nil {
		s.log.Debug("move rejected", zap.String("move", string(m)), zap.Error(err))
		return err
	}
	s.commit(next)
	s.run(effects)
	return nil
}

func (s *Session) commit(next engine.State) {
	if next.Status != s.state.Status {
		s.log.Info("status changed",
			zap.String("from", string(s.state.Status)),
			zap.String("to", string(next.Status)))
		s.metrics.SetStatus(next.Status)
	}
	s.state = next
	s.version++
	s.broadcast(s.snapshot())
}

func (s *Session) run(effects []engine.Effect) {
	for _, eff := range effects {
		switch eff.Type {
		case engine.EffSendMove:
			payload, err := types.EncodeMove(eff.Move)
			if err != nil {
				s.log.Error("encode move", zap.Error(err))
				continue
			}
			if s.sender != nil {
				s.sender.Send(payload)
			}
			s.metrics.MoveSent()

		case engine.EffArmPhaseTimer:
			s.cancelPhaseTimer()
			gen := s.phaseGen
			s.phaseTask = s.clock.AfterFunc(s.delay, func() {
				s.post(phaseTimerFired{Gen: gen})
			})

		case engine.EffCancelPhaseTimer:
			s.cancelPhaseTimer()

		case engine.EffRecordResult:
			if eff.Result == nil {
				continue
			}
			s.metrics.Round(engine.OutcomeOf(*eff.Result))
			if s.recorder != nil {
				s.recorder.Record(eff.Move, *eff.Result)
			}
		}
	}
}

// cancelPhaseTimer also bumps the generation so a fire already queued in the
// inbox is dropped.
func (s *Session) cancelPhaseTimer() {
	s.phaseTask.Cancel()
	s.phaseTask = nil
	s.phaseGen++
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{Version: s.version, State: s.state}
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.subs {
		select {
		case ch <- snap:
			// ok
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *Session) shutdown() {
	s.cancelPhaseTimer()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.cancel()
}

func eventName(ev engine.Event) string {
	switch ev.(type) {
	case engine.Opened:
		return "opened"
	case engine.Closed:
		return "closed"
	case engine.TransportError:
		return "transport_error"
	case engine.GameStart:
		return types.TypeGameStart
	case engine.GameResult:
		return types.TypeGameResult
	case engine.PhaseTimerElapsed:
		return "phase_timer"
	default:
		return "unknown"
	}
}
