// Package models holds the group aggregate and its lifecycle state machine.
package models

import (
	"fmt"
	"time"

	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
)

// Status is the group lifecycle state.
//
// Transitions: pending → active (approve), pending → deleted, active →
// deleted. deleted is terminal; rows are retained and ids never reused.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// ParseStatus validates external status input, e.g. the ?status= filter.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusActive, StatusDeleted:
		return Status(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown group status %q", s)
	}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDeleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusActive || target == StatusDeleted
	case StatusActive:
		return target == StatusDeleted
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// Group is the aggregate for one matched circle of dads.
//
// Invariants:
//   - MemberIDs is set at creation and never mutated afterwards; deletion
//     retains it for the audit trail
//   - NotifiedMemberIDs is an append-only subset of MemberIDs, no duplicates
//   - every member classifies to Stage at creation time
//   - Version increments on every status transition (optimistic concurrency)
type Group struct {
	ID                domain.GroupID   `json:"id"`
	Name              string           `json:"name"`
	City              string           `json:"city"`
	RegionCode        string           `json:"region_code"`
	Stage             domain.LifeStage `json:"life_stage"`
	MemberIDs         []domain.UserID  `json:"member_ids"`
	NotifiedMemberIDs []domain.UserID  `json:"notified_member_ids"`
	Status            Status           `json:"status"`
	Version           int64            `json:"version"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	NotifiedAt        *time.Time       `json:"notified_at,omitempty"`
}

// GroupName builds the display name for the nth group of a bucket, e.g.
// "Berlin Toddler Dads – Group 2".
func GroupName(city string, stage domain.LifeStage, n int) string {
	return fmt.Sprintf("%s %s Dads – Group %d", city, stage.Display(), n)
}

// NewGroupParams carries everything needed to construct a pending group.
type NewGroupParams struct {
	Name       string
	City       string
	RegionCode string
	Stage      domain.LifeStage
	MemberIDs  []domain.UserID
	MinSize    int
	MaxSize    int
	Now        time.Time
}

// NewGroup constructs a pending group with a fresh unguessable ID. The size
// bounds are validated here because they only hold at creation time; deletion
// later clears members from the pool without shrinking MemberIDs.
func NewGroup(p NewGroupParams) (*Group, error) {
	if p.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "group name cannot be empty")
	}
	if !p.Stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid life stage %q", p.Stage)
	}
	if p.City == "" || p.RegionCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "group location cannot be empty")
	}
	if len(p.MemberIDs) < p.MinSize || len(p.MemberIDs) > p.MaxSize {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"group size %d outside [%d, %d]", len(p.MemberIDs), p.MinSize, p.MaxSize)
	}

	seen := make(map[domain.UserID]struct{}, len(p.MemberIDs))
	members := make([]domain.UserID, 0, len(p.MemberIDs))
	for _, id := range p.MemberIDs {
		if id.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "group member id cannot be nil")
		}
		if _, dup := seen[id]; dup {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate member %s", id)
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	return &Group{
		ID:                domain.NewGroupID(),
		Name:              p.Name,
		City:              p.City,
		RegionCode:        p.RegionCode,
		Stage:             p.Stage,
		MemberIDs:         members,
		NotifiedMemberIDs: []domain.UserID{},
		Status:            StatusPending,
		Version:           1,
		CreatedAt:         p.Now,
		UpdatedAt:         p.Now,
	}, nil
}

// CanApprove checks the pending → active transition.
func (g *Group) CanApprove() error {
	if !g.Status.CanTransitionTo(StatusActive) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot approve a %s group", g.Status)
	}
	return nil
}

// ApplyApproval transitions the group to active. Call CanApprove first.
func (g *Group) ApplyApproval(now time.Time) {
	g.Status = StatusActive
	g.Version++
	g.UpdatedAt = now
}

// CanDelete checks the transition to deleted. Deleting twice is invalid.
func (g *Group) CanDelete() error {
	if !g.Status.CanTransitionTo(StatusDeleted) {
		return dErrors.New(dErrors.CodeInvalidTransition, "group is already deleted")
	}
	return nil
}

// ApplyDeletion retires the group. MemberIDs stays intact for the audit
// trail; releasing the members back to the pool is the profiles' side.
func (g *Group) ApplyDeletion(now time.Time) {
	g.Status = StatusDeleted
	g.Version++
	g.UpdatedAt = now
}

// HasMember reports whether the user belongs to the group.
func (g *Group) HasMember(userID domain.UserID) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkNotified records a successful introduction for a member. Marking twice
// is a no-op; marking a non-member violates the subset invariant.
func (g *Group) MarkNotified(userID domain.UserID, now time.Time) error {
	if !g.HasMember(userID) {
		return dErrors.New(dErrors.CodeInvariantViolation, "user is not a member of this group")
	}
	for _, id := range g.NotifiedMemberIDs {
		if id == userID {
			return nil
		}
	}
	g.NotifiedMemberIDs = append(g.NotifiedMemberIDs, userID)
	g.UpdatedAt = now
	return nil
}

// PendingNotifications returns the members not yet notified, in MemberIDs
// order. Approve dispatches to exactly this set, which is what makes resends
// idempotent.
func (g *Group) PendingNotifications() []domain.UserID {
	notified := make(map[domain.UserID]struct{}, len(g.NotifiedMemberIDs))
	for _, id := range g.NotifiedMemberIDs {
		notified[id] = struct{}{}
	}
	var pending []domain.UserID
	for _, id := range g.MemberIDs {
		if _, ok := notified[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// Clone returns a deep copy so stores can hand out groups without aliasing
// their internal state.
func (g *Group) Clone() *Group {
	cp := *g
	cp.MemberIDs = append([]domain.UserID{}, g.MemberIDs...)
	cp.NotifiedMemberIDs = append([]domain.UserID{}, g.NotifiedMemberIDs...)
	if g.NotifiedAt != nil {
		t := *g.NotifiedAt
		cp.NotifiedAt = &t
	}
	return &cp
}
