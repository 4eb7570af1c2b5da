//go:build integration

package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dadcircles/internal/matching/lease"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeaseSuite) TestAcquireReleaseCycle() {
	ctx := context.Background()
	l := lease.NewRedis(s.redis.Client, "test:matching:lease", time.Minute)

	release, err := l.Acquire(ctx)
	s.Require().NoError(err)

	_, err = l.Acquire(ctx)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(release(ctx))

	release, err = l.Acquire(ctx)
	s.Require().NoError(err)
	s.Require().NoError(release(ctx))
}

func (s *RedisLeaseSuite) TestContentionAcrossInstances() {
	// Two lease values with the same key model two server replicas.
	ctx := context.Background()
	a := lease.NewRedis(s.redis.Client, "test:matching:lease", time.Minute)
	b := lease.NewRedis(s.redis.Client, "test:matching:lease", time.Minute)

	release, err := a.Acquire(ctx)
	s.Require().NoError(err)

	_, err = b.Acquire(ctx)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(release(ctx))

	releaseB, err := b.Acquire(ctx)
	s.Require().NoError(err)
	s.Require().NoError(releaseB(ctx))
}

func (s *RedisLeaseSuite) TestExpiredHolderCannotReleaseSuccessor() {
	ctx := context.Background()
	short := lease.NewRedis(s.redis.Client, "test:matching:lease", 50*time.Millisecond)
	long := lease.NewRedis(s.redis.Client, "test:matching:lease", time.Minute)

	staleRelease, err := short.Acquire(ctx)
	s.Require().NoError(err)

	// Wait out the TTL so the lease falls to a new holder.
	s.Require().Eventually(func() bool {
		_, err := long.Acquire(ctx)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	// The stale holder's token no longer matches, so its release must not
	// free the successor's lease.
	s.Require().NoError(staleRelease(ctx))
	_, err = long.Acquire(ctx)
	s.ErrorIs(err, sentinel.ErrConflict)
}
