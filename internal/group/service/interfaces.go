package service

import (
	"context"
	"time"

	"dadcircles/internal/audit"
	"dadcircles/internal/group/models"
	"dadcircles/internal/notify"
	"dadcircles/internal/profile"
	"dadcircles/pkg/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

// Store persists groups.
type Store interface {
	FindByID(ctx context.Context, id domain.GroupID) (*models.Group, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Group, error)
	UpdateStatus(ctx context.Context, id domain.GroupID, from, to models.Status, version int64, now time.Time) error
	AppendNotified(ctx context.Context, id domain.GroupID, userID domain.UserID, now time.Time) error
	SetNotifiedAt(ctx context.Context, id domain.GroupID, now time.Time) error
}

// MemberStore is the profile-side view the lifecycle needs: member contact
// details for introductions, and releasing members back to the matching pool.
type MemberStore interface {
	FindByID(ctx context.Context, id domain.UserID) (*profile.Profile, error)
	ClearGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error
}

// Dispatcher delivers one introduction per member.
type Dispatcher interface {
	SendIntroduction(ctx context.Context, intro notify.Introduction) error
}

// AuditPublisher records lifecycle actions durably.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner scopes a function to one transaction when backed by a database.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
