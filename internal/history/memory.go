package history

import (
	"context"
	"sync"
)

// MemoryStore keeps at most cap rounds, dropping the oldest.
type MemoryStore struct {
	mu     sync.Mutex
	rounds []Round
	nextID uint
	cap    int
	closed bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 50
	}
	return &MemoryStore{cap: capacity}
}

func (s *MemoryStore) Save(_ context.Context, r *Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.nextID++
	r.ID = s.nextID
	s.rounds = append(s.rounds, *r)
	if len(s.rounds) > s.cap {
		s.rounds = s.rounds[len(s.rounds)-s.cap:]
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 || limit > len(s.rounds) {
		limit = len(s.rounds)
	}
	out := make([]Round, 0, limit)
	for i := len(s.rounds) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.rounds[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
