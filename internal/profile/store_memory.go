package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a mutex-guarded map. It backs dev mode and
// unit tests; claim semantics match the postgres implementation.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]*Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.UserID]*Profile)}
}

func (s *InMemoryStore) Create(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.UserID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// ListEligibleUnmatched returns the matching pool ordered by creation time,
// then ID, so runs over the same pool see the same order.
func (s *InMemoryStore) ListEligibleUnmatched(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, 0)
	for _, p := range s.profiles {
		if p.EligibleForMatching && p.GroupID == nil {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) CountEligibleUnmatched(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.profiles {
		if p.EligibleForMatching && p.GroupID == nil {
			n++
		}
	}
	return n, nil
}

// AssignGroup claims the user for a group. The claim succeeds only while the
// user is unassigned, so two concurrent runs can never both take the same
// member.
func (s *InMemoryStore) AssignGroup(_ context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.GroupID != nil {
		return sentinel.ErrConflict
	}
	gid := groupID
	p.GroupID = &gid
	p.UpdatedAt = now
	return nil
}

// ClearGroup releases the user only if they still belong to the given group.
// Clearing an already-cleared user is a no-op.
func (s *InMemoryStore) ClearGroup(_ context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.GroupID == nil || *p.GroupID != groupID {
		return nil
	}
	p.GroupID = nil
	p.UpdatedAt = now
	return nil
}
