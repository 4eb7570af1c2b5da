// Package store persists group aggregates.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"dadcircles/internal/group/models"
	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
)

// InMemory keeps groups in a mutex-guarded map for dev mode and unit tests.
// Transition and append semantics match the postgres implementation.
type InMemory struct {
	mu     sync.RWMutex
	groups map[domain.GroupID]*models.Group
}

func NewInMemory() *InMemory {
	return &InMemory{groups: make(map[domain.GroupID]*models.Group)}
}

func (s *InMemory) Create(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; exists {
		return sentinel.ErrConflict
	}
	s.groups[g.ID] = g.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return g.Clone(), nil
}

// ListByStatus returns groups in the given state, newest first.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Group, 0)
	for _, g := range s.groups {
		if g.Status == status {
			out = append(out, *g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// UpdateStatus applies an optimistic transition: it succeeds only when the
// stored status and version still match what the caller loaded.
func (s *InMemory) UpdateStatus(_ context.Context, id domain.GroupID, from, to models.Status, version int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.Status != from || g.Version != version {
		return sentinel.ErrConflict
	}
	g.Status = to
	g.Version++
	g.UpdatedAt = now
	return nil
}

// AppendNotified adds the user to the notified set. Appending twice is a
// no-op; appending a non-member fails the subset invariant.
func (s *InMemory) AppendNotified(_ context.Context, id domain.GroupID, userID domain.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !g.HasMember(userID) {
		return sentinel.ErrInvalidState
	}
	for _, existing := range g.NotifiedMemberIDs {
		if existing == userID {
			return nil
		}
	}
	g.NotifiedMemberIDs = append(g.NotifiedMemberIDs, userID)
	g.UpdatedAt = now
	return nil
}

// SetNotifiedAt stamps the first successful dispatch. Later calls are no-ops.
func (s *InMemory) SetNotifiedAt(_ context.Context, id domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.NotifiedAt != nil {
		return nil
	}
	t := now
	g.NotifiedAt = &t
	g.UpdatedAt = now
	return nil
}
