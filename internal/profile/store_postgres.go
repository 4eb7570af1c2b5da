package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/platform/tx"
)

const profileColumns = `id, email, first_name, city, region_code, children, eligible_for_matching, group_id, created_at, updated_at`

// PostgresStore persists profiles in PostgreSQL. Children are stored as
// JSONB. Every statement routes through tx.Within, so the store participates
// in a surrounding transaction when one is in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *Profile) error {
	children, err := json.Marshal(p.Children)
	if err != nil {
		return fmt.Errorf("marshal children: %w", err)
	}

	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Within(ctx, s.db).ExecContext(ctx, query,
		p.ID.String(), p.Email, p.FirstName, p.City, p.RegionCode,
		children, p.EligibleForMatching, groupIDArg(p.GroupID),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.UserID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(tx.Within(ctx, s.db).QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

// ListEligibleUnmatched returns the matching pool ordered by creation time,
// then ID, so runs over the same pool see the same order.
func (s *PostgresStore) ListEligibleUnmatched(ctx context.Context) ([]Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE eligible_for_matching AND group_id IS NULL
		ORDER BY created_at, id
	`
	rows, err := tx.Within(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list eligible profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible profile: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list eligible profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountEligibleUnmatched(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM profiles WHERE eligible_for_matching AND group_id IS NULL`
	var n int
	if err := tx.Within(ctx, s.db).QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligible profiles: %w", err)
	}
	return n, nil
}

// AssignGroup claims the user for a group in a single conditional statement.
// Zero rows with the user present means another run claimed them first.
func (s *PostgresStore) AssignGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error {
	q := tx.Within(ctx, s.db)
	query := `
		UPDATE profiles
		SET group_id = $2, updated_at = $3
		WHERE id = $1 AND group_id IS NULL
	`
	res, err := q.ExecContext(ctx, query, userID.String(), groupID.String(), now)
	if err != nil {
		return fmt.Errorf("assign group: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign group rows: %w", err)
	}
	if rows == 0 {
		exists, err := s.exists(ctx, q, userID)
		if err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

// ClearGroup releases the user only if they still belong to the given group.
// Clearing an already-cleared user is a no-op.
func (s *PostgresStore) ClearGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, now time.Time) error {
	q := tx.Within(ctx, s.db)
	query := `
		UPDATE profiles
		SET group_id = NULL, updated_at = $3
		WHERE id = $1 AND group_id = $2
	`
	res, err := q.ExecContext(ctx, query, userID.String(), groupID.String(), now)
	if err != nil {
		return fmt.Errorf("clear group: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear group rows: %w", err)
	}
	if rows == 0 {
		exists, err := s.exists(ctx, q, userID)
		if err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, q tx.Querier, userID domain.UserID) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, userID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("profile exists check: %w", err)
	}
	return exists, nil
}

func scanProfile(row interface{ Scan(dest ...any) error }) (*Profile, error) {
	var (
		p        Profile
		id       string
		children []byte
		groupID  sql.NullString
	)
	err := row.Scan(&id, &p.Email, &p.FirstName, &p.City, &p.RegionCode,
		&children, &p.EligibleForMatching, &groupID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	uid, err := domain.ParseUserID(id)
	if err != nil {
		return nil, fmt.Errorf("stored profile id: %w", err)
	}
	p.ID = uid

	if err := json.Unmarshal(children, &p.Children); err != nil {
		return nil, fmt.Errorf("unmarshal children: %w", err)
	}

	if groupID.Valid {
		gid, err := domain.ParseGroupID(groupID.String)
		if err != nil {
			return nil, fmt.Errorf("stored group id: %w", err)
		}
		p.GroupID = &gid
	}
	return &p, nil
}

func groupIDArg(id *domain.GroupID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
