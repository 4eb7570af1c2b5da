package matching

import (
	"context"
	"time"

	"dadcircles/internal/audit"
	"dadcircles/internal/group/models"
	"dadcircles/internal/matching/runs"
	"dadcircles/internal/profile"
	"dadcircles/pkg/domain"
)

// ProfileStore is the slice of the profile store a run needs: load the pool,
// claim members into groups, and release them again on rollback.
type ProfileStore interface {
	ListEligibleUnmatched(ctx context.Context) ([]profile.Profile, error)
	CountEligibleUnmatched(ctx context.Context) (int, error)
	AssignGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error
	ClearGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error
}

// GroupStore persists the groups a run creates. UpdateStatus backs rollback:
// a half-claimed group is retired to deleted, never left pending.
type GroupStore interface {
	Create(ctx context.Context, group *models.Group) error
	UpdateStatus(ctx context.Context, id domain.GroupID, from, to models.Status, version int64, now time.Time) error
}

// Lease serializes runs across processes. Acquire returns
// sentinel.ErrConflict while another holder owns the lease.
type Lease interface {
	Acquire(ctx context.Context) (release func(ctx context.Context) error, err error)
}

// RunStore keeps the history of finished runs.
type RunStore interface {
	Insert(ctx context.Context, rec runs.Record) error
}

// AuditPublisher records domain events on the durable trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner scopes a group create and its member claims to one transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
