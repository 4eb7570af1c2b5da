// Package notify delivers group introductions to members once an admin
// approves a group.
package notify

import (
	"context"

	"dadcircles/pkg/domain"
)

// Introduction is the per-member payload published when a group goes live.
type Introduction struct {
	GroupID     domain.GroupID   `json:"group_id"`
	GroupName   string           `json:"group_name"`
	City        string           `json:"city"`
	Stage       domain.LifeStage `json:"life_stage"`
	UserID      domain.UserID    `json:"user_id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
	MemberCount int              `json:"member_count"`
}

// DedupeKey identifies one delivery. Dispatch is at-least-once; consumers
// dedupe on this key.
func (i Introduction) DedupeKey() string {
	return i.GroupID.String() + ":" + i.UserID.String()
}

// Dispatcher sends one introduction. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	SendIntroduction(ctx context.Context, intro Introduction) error
}
