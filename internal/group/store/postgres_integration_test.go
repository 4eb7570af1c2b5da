//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dadcircles/internal/group/models"
	"dadcircles/internal/group/store"
	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/testutil/containers"
)

type PostgresGroupStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresGroupStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresGroupStoreSuite))
}

func (s *PostgresGroupStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresGroupStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "groups"))
}

func newTestGroup(t *testing.T) *models.Group {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	g, err := models.NewGroup(models.NewGroupParams{
		Name:       models.GroupName("Berlin", domain.LifeStageNewborn, 1),
		City:       "Berlin",
		RegionCode: "BE",
		Stage:      domain.LifeStageNewborn,
		MemberIDs: []domain.UserID{
			domain.NewUserID(), domain.NewUserID(), domain.NewUserID(), domain.NewUserID(),
		},
		MinSize: 4,
		MaxSize: 6,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("new test group: %v", err)
	}
	return g
}

func (s *PostgresGroupStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	g := newTestGroup(s.T())
	s.Require().NoError(s.store.Create(ctx, g))

	found, err := s.store.FindByID(ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(g.ID, found.ID)
	s.Equal(g.Name, found.Name)
	s.Equal(domain.LifeStageNewborn, found.Stage)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(int64(1), found.Version)
	s.Equal(g.MemberIDs, found.MemberIDs)
	s.Empty(found.NotifiedMemberIDs)
	s.Nil(found.NotifiedAt)
}

func (s *PostgresGroupStoreSuite) TestCreateConflict() {
	ctx := context.Background()
	g := newTestGroup(s.T())
	s.Require().NoError(s.store.Create(ctx, g))
	s.ErrorIs(s.store.Create(ctx, g), sentinel.ErrConflict)
}

func (s *PostgresGroupStoreSuite) TestListByStatusNewestFirst() {
	ctx := context.Background()

	older := newTestGroup(s.T())
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newTestGroup(s.T())
	s.Require().NoError(s.store.Create(ctx, older))
	s.Require().NoError(s.store.Create(ctx, newer))

	pending, err := s.store.ListByStatus(ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(newer.ID, pending[0].ID)
	s.Equal(older.ID, pending[1].ID)
}

func (s *PostgresGroupStoreSuite) TestUpdateStatusOptimistic() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Run("transition bumps version", func() {
		g := newTestGroup(s.T())
		s.Require().NoError(s.store.Create(ctx, g))

		s.Require().NoError(s.store.UpdateStatus(ctx, g.ID, models.StatusPending, models.StatusActive, g.Version, now))

		found, err := s.store.FindByID(ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, found.Status)
		s.Equal(int64(2), found.Version)
	})

	s.Run("stale version conflicts", func() {
		g := newTestGroup(s.T())
		s.Require().NoError(s.store.Create(ctx, g))
		s.Require().NoError(s.store.UpdateStatus(ctx, g.ID, models.StatusPending, models.StatusActive, g.Version, now))

		err := s.store.UpdateStatus(ctx, g.ID, models.StatusPending, models.StatusDeleted, g.Version, now)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown group yields ErrNotFound", func() {
		err := s.store.UpdateStatus(ctx, domain.NewGroupID(), models.StatusPending, models.StatusActive, 1, now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exactly one racing transition wins", func() {
		g := newTestGroup(s.T())
		s.Require().NoError(s.store.Create(ctx, g))

		const racers = 10
		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.store.UpdateStatus(ctx, g.ID, models.StatusPending, models.StatusActive, g.Version, now); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), wins.Load())
	})
}

func (s *PostgresGroupStoreSuite) TestAppendNotified() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	g := newTestGroup(s.T())
	s.Require().NoError(s.store.Create(ctx, g))

	member := g.MemberIDs[2]
	s.Require().NoError(s.store.AppendNotified(ctx, g.ID, member, now))
	s.Require().NoError(s.store.AppendNotified(ctx, g.ID, member, now), "idempotent append")

	found, err := s.store.FindByID(ctx, g.ID)
	s.Require().NoError(err)
	s.Equal([]domain.UserID{member}, found.NotifiedMemberIDs)

	s.ErrorIs(s.store.AppendNotified(ctx, g.ID, domain.NewUserID(), now), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.AppendNotified(ctx, domain.NewGroupID(), member, now), sentinel.ErrNotFound)
}

func (s *PostgresGroupStoreSuite) TestSetNotifiedAtIsSetOnce() {
	ctx := context.Background()

	g := newTestGroup(s.T())
	s.Require().NoError(s.store.Create(ctx, g))

	first := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.SetNotifiedAt(ctx, g.ID, first))
	s.Require().NoError(s.store.SetNotifiedAt(ctx, g.ID, first.Add(time.Hour)))

	found, err := s.store.FindByID(ctx, g.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.NotifiedAt)
	s.True(found.NotifiedAt.Equal(first), "first dispatch timestamp is retained")

	s.ErrorIs(s.store.SetNotifiedAt(ctx, domain.NewGroupID(), first), sentinel.ErrNotFound)
}
