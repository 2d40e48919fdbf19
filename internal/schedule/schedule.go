// Package schedule wraps delayed callbacks in handles that can be cancelled,
// so owners can tear down outstanding work deterministically.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Task is a pending callback. Cancel is safe to call more than once and on a
// nil Task.
type Task struct {
	stop func() bool
}

func (t *Task) Cancel() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

type Clock interface {
	AfterFunc(d time.Duration, fn func()) *Task
}

type realClock struct{}

// Real schedules on the runtime timer.
var Real Clock = realClock{}

func (realClock) AfterFunc(d time.Duration, fn func()) *Task {
	t := time.AfterFunc(d, fn)
	return &Task{stop: t.Stop}
}

// Manual is a Clock driven by Advance. Callbacks run synchronously on the
// goroutine that calls Advance, in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending map[int]*manualEntry
}

type manualEntry struct {
	seq int
	at  time.Duration
	fn  func()
}

func NewManual() *Manual {
	return &Manual{pending: make(map[int]*manualEntry)}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	id := m.seq
	m.pending[id] = &manualEntry{seq: id, at: m.now + d, fn: fn}

	return &Task{stop: func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.pending[id]; !ok {
			return false
		}
		delete(m.pending, id)
		return true
	}}
}

// Advance moves the clock forward and fires everything that came due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualEntry
	for id, e := range m.pending {
		if e.at <= m.now {
			due = append(due, e)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	for _, e := range due {
		e.fn()
	}
}

// Pending reports how many callbacks are armed and not yet fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
