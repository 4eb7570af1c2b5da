package runs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore records runs on a dedicated pgx pool, off the primary
// database/sql pool so history writes never compete with matching
// transactions for connections. The table is insert-only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a run history store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert appends one run record.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	bucketErrors := rec.BucketErrors
	if bucketErrors == nil {
		bucketErrors = []BucketError{}
	}
	payload, err := json.Marshal(bucketErrors)
	if err != nil {
		return fmt.Errorf("marshal bucket errors: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO match_runs (
			id, started_at, finished_at, triggered_by, outcome,
			pool_size, groups_created, users_matched, users_unmatched,
			users_skipped, bucket_errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.StartedAt, rec.FinishedAt, rec.TriggeredBy, rec.Outcome,
		rec.PoolSize, rec.GroupsCreated, rec.UsersMatched, rec.UsersUnmatched,
		rec.UsersSkipped, payload)
	if err != nil {
		return fmt.Errorf("insert match run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, triggered_by, outcome,
		       pool_size, groups_created, users_matched, users_unmatched,
		       users_skipped, bucket_errors
		FROM match_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list match runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(
			&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.TriggeredBy, &rec.Outcome,
			&rec.PoolSize, &rec.GroupsCreated, &rec.UsersMatched, &rec.UsersUnmatched,
			&rec.UsersSkipped, &payload); err != nil {
			return nil, fmt.Errorf("scan match run: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.BucketErrors); err != nil {
			return nil, fmt.Errorf("decode bucket errors: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
