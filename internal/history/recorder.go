package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rps-client/internal/engine"
)

// Recorder hands finished rounds to a Store off the caller's goroutine.
// When its buffer is full new rounds are dropped.
type Recorder struct {
	store   Store
	in      chan Round
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewRecorder(store Store, log *zap.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		store:   store,
		in:      make(chan Round, buffer),
		log:     log.With(zap.String("component", "history")),
		timeout: 5 * time.Second,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) Record(myMove engine.Move, res engine.RoundResult) {
	round := NewRound(myMove, res, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.in <- round:
	default:
		r.log.Warn("history buffer full, dropping round", zap.String("winner", string(res.Winner)))
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for round := range r.in {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.store.Save(ctx, &round); err != nil {
			r.log.Warn("save round", zap.Error(err))
		}
		cancel()
	}
}

// Close drains what is already buffered and waits for the writer to exit.
// It does not close the Store.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.in)
	}
	r.mu.Unlock()
	<-r.done
}
