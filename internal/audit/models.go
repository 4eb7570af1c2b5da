// Package audit records who did what to which group. The trail is durable
// and append-only; matching runs and admin actions both feed it.
package audit

import (
	"time"

	"github.com/google/uuid"

	"dadcircles/pkg/domain"
)

// Action labels the kind of event. The set is closed so downstream consumers
// can switch on it.
type Action string

const (
	ActionMatchRunCompleted  Action = "match_run_completed"
	ActionGroupCreated       Action = "group_created"
	ActionGroupRollback      Action = "group_rollback"
	ActionGroupApproved      Action = "group_approved"
	ActionGroupDeleted       Action = "group_deleted"
	ActionMemberNotified     Action = "member_notified"
	ActionNotificationFailed Action = "notification_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Actor is the admin identity from the X-Admin-Actor header, "scheduler" for
// interval runs, or "system" when nothing set one. Client is a human-readable
// client description derived from the User-Agent, never the raw header.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	Action    Action          `json:"action"`
	GroupID   *domain.GroupID `json:"group_id,omitempty"`
	UserID    *domain.UserID  `json:"user_id,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Client    string          `json:"client,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
}
