package matching

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dadcircles/pkg/requestcontext"
)

// Runner is the slice of the service the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler triggers a matching run on a fixed interval. It piggybacks on the
// run lease, so several replicas can all run a scheduler and exactly one run
// executes per tick.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewScheduler builds a scheduler that triggers a run every interval and
// cancels any run still going after runTimeout (zero leaves runs unbounded).
// The lease TTL is the right bound: a run that outlives its lease is no
// longer protected by it.
func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, interval: interval, runTimeout: runTimeout, logger: logger}
}

// Run ticks until ctx is cancelled. A zero or negative interval disables the
// scheduler; runs then only happen via the admin API.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "matching scheduler disabled")
		return nil
	}
	s.logger.InfoContext(ctx, "matching scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "matching scheduler stopped")
			return ctx.Err()
		}
	}
}

// tick triggers one run. Failures are logged and the loop keeps ticking; a
// lease held elsewhere just means another replica got there first.
func (s *Scheduler) tick(ctx context.Context) {
	ctx = requestcontext.WithActor(ctx, "scheduler")
	ctx = requestcontext.WithTime(ctx, time.Now())
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, ErrRunActive):
		s.logger.InfoContext(ctx, "matching run already active; skipping tick")
	case err != nil:
		s.logger.ErrorContext(ctx, "scheduled matching run failed", "error", err)
	default:
		s.logger.InfoContext(ctx, "scheduled matching run completed",
			"groups_created", len(summary.GroupsCreated),
			"users_matched", summary.UsersMatched)
	}
}
