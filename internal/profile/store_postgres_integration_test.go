//go:build integration

package profile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dadcircles/internal/profile"
	"dadcircles/pkg/domain"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *profile.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = profile.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "profiles"))
}

func newTestProfile() *profile.Profile {
	now := time.Now().UTC().Truncate(time.Microsecond)
	month := 4
	gender := "boy"
	return &profile.Profile{
		ID:         domain.NewUserID(),
		Email:      "dad@example.com",
		FirstName:  "Tom",
		City:       "Berlin",
		RegionCode: "BE",
		Children: []profile.Child{
			{BirthYear: 2023, BirthMonth: &month, Gender: &gender},
			{BirthYear: 2021},
		},
		EligibleForMatching: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	p := newTestProfile()
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal(p.Email, found.Email)
	s.Equal(p.City, found.City)
	s.Equal(p.RegionCode, found.RegionCode)
	s.True(found.EligibleForMatching)
	s.Nil(found.GroupID)

	s.Require().Len(found.Children, 2)
	s.Require().NotNil(found.Children[0].BirthMonth)
	s.Equal(4, *found.Children[0].BirthMonth)
	s.Require().NotNil(found.Children[0].Gender)
	s.Equal("boy", *found.Children[0].Gender)
	s.Nil(found.Children[1].BirthMonth)
}

func (s *PostgresStoreSuite) TestCreateConflict() {
	ctx := context.Background()
	p := newTestProfile()
	s.Require().NoError(s.store.Create(ctx, p))
	s.ErrorIs(s.store.Create(ctx, p), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), domain.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListEligibleUnmatchedOrdering() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	second := newTestProfile()
	second.CreatedAt = base.Add(time.Minute)
	first := newTestProfile()
	first.CreatedAt = base

	ineligible := newTestProfile()
	ineligible.EligibleForMatching = false

	matched := newTestProfile()
	gid := domain.NewGroupID()
	matched.GroupID = &gid

	for _, p := range []*profile.Profile{second, first, ineligible, matched} {
		s.Require().NoError(s.store.Create(ctx, p))
	}

	pool, err := s.store.ListEligibleUnmatched(ctx)
	s.Require().NoError(err)
	s.Require().Len(pool, 2)
	s.Equal(first.ID, pool[0].ID)
	s.Equal(second.ID, pool[1].ID)

	n, err := s.store.CountEligibleUnmatched(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *PostgresStoreSuite) TestAssignGroupClaims() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Run("claims then rejects second claim", func() {
		p := newTestProfile()
		s.Require().NoError(s.store.Create(ctx, p))

		gid := domain.NewGroupID()
		s.Require().NoError(s.store.AssignGroup(ctx, p.ID, gid, now))

		found, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().NotNil(found.GroupID)
		s.Equal(gid, *found.GroupID)

		err = s.store.AssignGroup(ctx, p.ID, domain.NewGroupID(), now)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown user yields ErrNotFound", func() {
		err := s.store.AssignGroup(ctx, domain.NewUserID(), domain.NewGroupID(), now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exactly one concurrent claim wins", func() {
		p := newTestProfile()
		s.Require().NoError(s.store.Create(ctx, p))

		const claimers = 50
		var wg sync.WaitGroup
		var wins atomic.Int32
		var conflicts atomic.Int32
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.store.AssignGroup(ctx, p.ID, domain.NewGroupID(), now)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, sentinel.ErrConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), wins.Load())
		s.Equal(int32(claimers-1), conflicts.Load())
	})
}

func (s *PostgresStoreSuite) TestClearGroup() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := newTestProfile()
	s.Require().NoError(s.store.Create(ctx, p))
	gid := domain.NewGroupID()
	s.Require().NoError(s.store.AssignGroup(ctx, p.ID, gid, now))

	s.Run("wrong group is a no-op", func() {
		s.Require().NoError(s.store.ClearGroup(ctx, p.ID, domain.NewGroupID(), now))
		found, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.NotNil(found.GroupID)
	})

	s.Run("owning group clears the assignment", func() {
		s.Require().NoError(s.store.ClearGroup(ctx, p.ID, gid, now))
		found, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Nil(found.GroupID)
	})

	s.Run("already cleared is a no-op", func() {
		s.NoError(s.store.ClearGroup(ctx, p.ID, gid, now))
	})

	s.Run("unknown user yields ErrNotFound", func() {
		err := s.store.ClearGroup(ctx, domain.NewUserID(), gid, now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
