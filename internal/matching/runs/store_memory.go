package runs

import (
	"context"
	"sync"
)

// InMemoryStore backs dev mode and tests. Records keep insertion order, and
// runs start strictly after the previous one finished, so newest-first is the
// reverse of that order.
type InMemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewInMemoryStore creates an empty history.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}
