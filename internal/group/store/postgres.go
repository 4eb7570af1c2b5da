package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dadcircles/internal/group/models"
	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/platform/tx"
)

const groupColumns = `id, name, city, region_code, life_stage, member_ids, notified_member_ids, status, version, created_at, updated_at, notified_at`

// Postgres persists groups in PostgreSQL. Member sets are TEXT[] columns;
// every statement routes through tx.Within so the store participates in a
// surrounding transaction when one is in the context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, g *models.Group) error {
	query := `
		INSERT INTO groups (` + groupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Within(ctx, s.db).ExecContext(ctx, query,
		g.ID.String(), g.Name, g.City, g.RegionCode, string(g.Stage),
		pq.Array(userIDStrings(g.MemberIDs)), pq.Array(userIDStrings(g.NotifiedMemberIDs)),
		string(g.Status), g.Version, g.CreatedAt, g.UpdatedAt, g.NotifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.GroupID) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	g, err := scanGroup(tx.Within(ctx, s.db).QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return g, nil
}

// ListByStatus returns groups in the given state, newest first.
func (s *Postgres) ListByStatus(ctx context.Context, status models.Status) ([]models.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE status = $1
		ORDER BY created_at DESC, id
	`
	rows, err := tx.Within(ctx, s.db).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

// UpdateStatus applies an optimistic transition in a single statement. Zero
// rows with the group present means a concurrent transition won.
func (s *Postgres) UpdateStatus(ctx context.Context, id domain.GroupID, from, to models.Status, version int64, now time.Time) error {
	q := tx.Within(ctx, s.db)
	query := `
		UPDATE groups
		SET status = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND status = $2 AND version = $5
	`
	res, err := q.ExecContext(ctx, query, id.String(), string(from), string(to), now, version)
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group status rows: %w", err)
	}
	if rows == 0 {
		exists, err := s.exists(ctx, q, id)
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

// AppendNotified adds the user to the notified set in one guarded statement.
// Appending twice is a no-op; appending a non-member fails the subset
// invariant.
func (s *Postgres) AppendNotified(ctx context.Context, id domain.GroupID, userID domain.UserID, now time.Time) error {
	q := tx.Within(ctx, s.db)
	query := `
		UPDATE groups
		SET notified_member_ids = array_append(notified_member_ids, $2), updated_at = $3
		WHERE id = $1
		  AND $2 = ANY(member_ids)
		  AND NOT ($2 = ANY(notified_member_ids))
	`
	res, err := q.ExecContext(ctx, query, id.String(), userID.String(), now)
	if err != nil {
		return fmt.Errorf("append notified: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append notified rows: %w", err)
	}
	if rows == 0 {
		var isMember, alreadyNotified bool
		err := q.QueryRowContext(ctx,
			`SELECT $2 = ANY(member_ids), $2 = ANY(notified_member_ids) FROM groups WHERE id = $1`,
			id.String(), userID.String(),
		).Scan(&isMember, &alreadyNotified)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("append notified check: %w", err)
		}
		if !isMember {
			return sentinel.ErrInvalidState
		}
		return nil
	}
	return nil
}

// SetNotifiedAt stamps the first successful dispatch. Later calls are no-ops.
func (s *Postgres) SetNotifiedAt(ctx context.Context, id domain.GroupID, now time.Time) error {
	q := tx.Within(ctx, s.db)
	query := `
		UPDATE groups
		SET notified_at = $2, updated_at = $2
		WHERE id = $1 AND notified_at IS NULL
	`
	res, err := q.ExecContext(ctx, query, id.String(), now)
	if err != nil {
		return fmt.Errorf("set notified at: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set notified at rows: %w", err)
	}
	if rows == 0 {
		exists, err := s.exists(ctx, q, id)
		if err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *Postgres) exists(ctx context.Context, q tx.Querier, id domain.GroupID) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("group exists check: %w", err)
	}
	return exists, nil
}

func scanGroup(row interface{ Scan(dest ...any) error }) (*models.Group, error) {
	var (
		g          models.Group
		id         string
		stage      string
		status     string
		memberIDs  pq.StringArray
		notified   pq.StringArray
		notifiedAt sql.NullTime
	)
	err := row.Scan(&id, &g.Name, &g.City, &g.RegionCode, &stage,
		&memberIDs, &notified, &status, &g.Version, &g.CreatedAt, &g.UpdatedAt, &notifiedAt)
	if err != nil {
		return nil, err
	}

	gid, err := domain.ParseGroupID(id)
	if err != nil {
		return nil, fmt.Errorf("stored group id: %w", err)
	}
	g.ID = gid

	g.Stage, err = domain.ParseLifeStage(stage)
	if err != nil {
		return nil, fmt.Errorf("stored life stage: %w", err)
	}
	g.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored status: %w", err)
	}

	g.MemberIDs, err = parseUserIDs(memberIDs)
	if err != nil {
		return nil, fmt.Errorf("stored member ids: %w", err)
	}
	g.NotifiedMemberIDs, err = parseUserIDs(notified)
	if err != nil {
		return nil, fmt.Errorf("stored notified ids: %w", err)
	}

	if notifiedAt.Valid {
		t := notifiedAt.Time
		g.NotifiedAt = &t
	}
	return &g, nil
}

func userIDStrings(ids []domain.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUserIDs(raw []string) ([]domain.UserID, error) {
	out := make([]domain.UserID, len(raw))
	for i, s := range raw {
		id, err := domain.ParseUserID(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
