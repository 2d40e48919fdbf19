package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/logging"
	"github.com/DoyleJ11/rps-client/internal/metrics"
	"github.com/DoyleJ11/rps-client/internal/schedule"
)

// ErrClosed marks a clean close (normal closure or going away). Conn
// implementations wrap it; any other read error counts as a transport error.
var ErrClosed = errors.New("channel closed")

var ErrStopped = errors.New("channel manager stopped")

// Conn is one live transport. It is never reused after Read fails.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Signals receives the lifecycle of whichever channel is current. OnError is
// always followed by OnClosed.
type Signals interface {
	OnOpened()
	OnClosed()
	OnError(err error)
	OnMessage(raw []byte)
}

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

type Msg interface{ isManagerMsg() }

type Start struct {
	Endpoint string
	Signals  Signals
}

type Send struct{ Payload []byte }

type GetState struct {
	Reply chan View
}

type Stop struct{}

type connOpened struct {
	Gen  uint64
	Conn Conn
}

type connClosed struct {
	Gen uint64
	Err error
}

type reconnectDue struct{ Gen uint64 }

func (Start) isManagerMsg()        {}
func (Send) isManagerMsg()         {}
func (GetState) isManagerMsg()     {}
func (Stop) isManagerMsg()         {}
func (connOpened) isManagerMsg()   {}
func (connClosed) isManagerMsg()   {}
func (reconnectDue) isManagerMsg() {}

type View struct {
	Endpoint         string
	Gen              uint64
	State            State
	Created          int
	ReconnectPending bool
}

type Options struct {
	Dialer Dialer
	// Clock defaults to schedule.Real.
	Clock schedule.Clock
	// ReconnectDelay is fixed; it never grows. Defaults to 3s.
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

type instance struct {
	gen    uint64
	state  State
	conn   Conn
	cancel context.CancelFunc
}

type Manager struct {
	inbox chan Msg
	opts  Options
	log   *zap.Logger

	endpoint  string
	signals   Signals
	cur       *instance
	gen       uint64
	created   int
	reconnect *schedule.Task

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	errs   error // set by shutdown, read after done
}

func NewManager(parent context.Context, opts Options) *Manager {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = schedule.Real
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	m := &Manager{
		inbox:  make(chan Msg, 64),
		opts:   opts,
		log:    logging.OrNop(opts.Logger).With(zap.String("component", "channel")),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) Inbox() chan<- Msg { return m.inbox }

// Start opens the first channel. Dial failures only show up later through
// signals.OnError and signals.OnClosed.
func (m *Manager) Start(endpoint string, signals Signals) {
	m.post(Start{Endpoint: endpoint, Signals: signals})
}

// Send writes payload on the open channel, or drops it.
func (m *Manager) Send(payload []byte) {
	m.post(Send{Payload: payload})
}

func (m *Manager) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case m.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-m.done:
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-m.done:
		return View{}, ErrStopped
	}
}

// Stop closes the current channel, cancels a pending reconnect and waits for
// every channel goroutine, so no signal is delivered after it returns.
func (m *Manager) Stop() error {
	select {
	case m.inbox <- Stop{}:
	case <-m.done:
	}
	<-m.done
	m.wg.Wait()
	return m.errs
}

func (m *Manager) post(msg Msg) bool {
	select {
	case m.inbox <- msg:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.shutdown()
			return

		case msg := <-m.inbox:
			switch msg := msg.(type) {
			case Start:
				if m.signals != nil {
					m.log.Warn("start called twice, ignoring")
					break
				}
				m.endpoint = msg.Endpoint
				m.signals = msg.Signals
				m.open()

			case Send:
				m.write(msg.Payload)

			case connOpened:
				if m.cur == nil || m.cur.gen != msg.Gen || m.cur.state != StateConnecting {
					_ = msg.Conn.Close()
					break
				}
				m.cur.conn = msg.Conn
				m.cur.state = StateOpen
				m.log.Info("channel open", zap.Uint64("conn_gen", msg.Gen))

			case connClosed:
				if m.cur == nil || m.cur.gen != msg.Gen || m.cur.state == StateClosed {
					break
				}
				_ = m.closeCurrent()
				if msg.Err != nil && !errors.Is(msg.Err, ErrClosed) {
					m.opts.Metrics.TransportError()
				}
				m.log.Info("channel closed, reconnect scheduled",
					zap.Uint64("conn_gen", msg.Gen),
					zap.Duration("delay", m.opts.ReconnectDelay),
					zap.Error(msg.Err))
				m.scheduleReconnect(msg.Gen)

			case reconnectDue:
				if m.cur == nil || m.cur.gen != msg.Gen || m.cur.state != StateClosed {
					break
				}
				m.reconnect = nil
				m.open()

			case GetState:
				v := View{Endpoint: m.endpoint, Gen: m.gen, Created: m.created, ReconnectPending: m.reconnect != nil}
				if m.cur != nil {
					v.State = m.cur.state
				}
				msg.Reply <- v

			case Stop:
				m.shutdown()
				return
			}
		}
	}
}

func (m *Manager) open() {
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	m.cur = &instance{gen: m.gen, state: StateConnecting, cancel: cancel}
	m.created++
	m.opts.Metrics.ChannelDialed()

	m.wg.Add(1)
	go m.run(ctx, m.gen, m.signals)
}

// run owns one channel from dial to close.
func (m *Manager) run(ctx context.Context, gen uint64, sig Signals) {
	defer m.wg.Done()
	log := m.log.With(zap.Uint64("conn_gen", gen))

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	conn, err := m.opts.Dialer.Dial(dialCtx, m.endpoint)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("dial failed", zap.String("endpoint", m.endpoint), zap.Error(err))
		sig.OnError(err)
		sig.OnClosed()
		m.post(connClosed{Gen: gen, Err: err})
		return
	}

	if !m.post(connOpened{Gen: gen, Conn: conn}) || ctx.Err() != nil {
		_ = conn.Close()
		return
	}
	sig.OnOpened()

	for {
		raw, err := conn.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				log.Warn("channel error", zap.Error(err))
				sig.OnError(err)
			}
			sig.OnClosed()
			m.post(connClosed{Gen: gen, Err: err})
			return
		}
		sig.OnMessage(raw)
	}
}

func (m *Manager) write(payload []byte) {
	if m.cur == nil || m.cur.state != StateOpen {
		m.log.Debug("no open channel, dropping payload", zap.Int("bytes", len(payload)))
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.WriteTimeout)
	defer cancel()
	if err := m.cur.conn.Write(ctx, payload); err != nil {
		// the read side sees the failure and drives the close
		m.log.Warn("write failed", zap.Uint64("conn_gen", m.cur.gen), zap.Error(err))
	}
}

func (m *Manager) scheduleReconnect(gen uint64) {
	m.reconnect.Cancel()
	m.reconnect = m.opts.Clock.AfterFunc(m.opts.ReconnectDelay, func() {
		m.post(reconnectDue{Gen: gen})
	})
	m.opts.Metrics.ReconnectScheduled()
}

func (m *Manager) closeCurrent() error {
	if m.cur == nil {
		return nil
	}
	m.cur.state = StateClosed
	m.cur.cancel()
	var err error
	if m.cur.conn != nil {
		err = m.cur.conn.Close()
		m.cur.conn = nil
	}
	return err
}

func (m *Manager) shutdown() {
	m.reconnect.Cancel()
	m.reconnect = nil

	var errs error
	if m.cur != nil && m.cur.state != StateClosed {
		if err := m.closeCurrent(); err != nil && !errors.Is(err, ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	m.cancel()
	m.errs = errs
}
