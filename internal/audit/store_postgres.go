package audit

import (
	"context"
	"database/sql"
	"fmt"

	"dadcircles/pkg/platform/tx"
)

// PostgresStore persists events in the audit_events table. Insert-only; the
// trail has no update path. Writes participate in a surrounding transaction
// when one is in the context, so an audit row commits or rolls back with the
// action it describes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, occurred_at, actor, action, group_id, user_id, detail, request_id, client, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var groupID, userID any
	if event.GroupID != nil {
		groupID = event.GroupID.String()
	}
	if event.UserID != nil {
		userID = event.UserID.String()
	}
	_, err := tx.Within(ctx, s.db).ExecContext(ctx, query,
		event.ID.String(), event.Timestamp, event.Actor, string(event.Action),
		groupID, userID, event.Detail, event.RequestID, event.Client, event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
