// Package lease serializes matching runs across processes. Acquire hands
// back a release function and fails with sentinel.ErrConflict while another
// holder owns the lease.
package lease

import (
	"context"
	"sync"

	"dadcircles/pkg/platform/sentinel"
)

// Memory is a process-local lease for dev mode and tests. A crash releases
// it implicitly because nothing outlives the process.
type Memory struct {
	mu   sync.Mutex
	held bool
}

// NewMemory creates an unheld lease.
func NewMemory() *Memory {
	return &Memory{}
}

// Acquire takes the lease or reports sentinel.ErrConflict.
func (m *Memory) Acquire(_ context.Context) (func(ctx context.Context) error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return nil, sentinel.ErrConflict
	}
	m.held = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.held = false
		return nil
	}, nil
}
