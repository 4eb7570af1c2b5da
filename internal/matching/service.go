package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dadcircles/internal/audit"
	"dadcircles/internal/group/models"
	"dadcircles/internal/matching/metrics"
	"dadcircles/internal/matching/runs"
	"dadcircles/pkg/attrs"
	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/requestcontext"
)

// ErrRunActive reports that another matching run holds the lease. Callers
// get a conflict and retry once the active run finishes.
var ErrRunActive = dErrors.New(dErrors.CodeConflict, "a matching run is already active")

const (
	outcomeCompleted = runs.OutcomeCompleted
	outcomeFailed    = runs.OutcomeFailed
	outcomeSkipped   = "skipped"
)

// detachTimeout bounds cleanup writes that outlive a cancelled run.
const detachTimeout = 5 * time.Second

// detach severs ctx from the caller's cancellation so cleanup survives a
// cancelled run, while keeping the work itself bounded.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
}

// Summary reports one matching run: what was created, who was matched, and
// which buckets failed. Per-bucket and per-group failures are data here, not
// call errors.
type Summary struct {
	GroupsCreated    []GroupSummary `json:"groups_created"`
	UsersMatched     int            `json:"users_matched"`
	UsersUnmatched   int            `json:"users_unmatched"`
	PoolSize         int            `json:"pool_size"`
	BucketsProcessed int            `json:"buckets_processed"`
	Skipped          int            `json:"skipped"`
	BucketErrors     []BucketError  `json:"bucket_errors"`
}

// GroupSummary is one created group in the run summary.
type GroupSummary struct {
	ID          domain.GroupID `json:"id"`
	Name        string         `json:"name"`
	Bucket      string         `json:"bucket"`
	MemberCount int            `json:"member_count"`
}

// BucketError attributes a failure to one bucket.
type BucketError struct {
	Bucket string `json:"bucket"`
	Error  string `json:"error"`
}

// Preview shows what a run would create right now, without writing anything:
// no lease, no groups, no claims.
type Preview struct {
	PoolSize int             `json:"pool_size"`
	Skipped  int             `json:"skipped"`
	Buckets  []BucketPreview `json:"buckets"`
}

// BucketPreview lists one bucket's candidate group sizes.
type BucketPreview struct {
	Bucket     string `json:"bucket"`
	Members    int    `json:"members"`
	GroupSizes []int  `json:"group_sizes"`
	Unplaced   int    `json:"unplaced"`
}

// Service orchestrates matching runs against the stores.
type Service struct {
	profiles ProfileStore
	groups   GroupStore
	lease    Lease
	txRunner TxRunner
	cfg      Config

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	runs           RunStore
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRunStore enables run history recording.
func WithRunStore(store RunStore) Option {
	return func(s *Service) {
		s.runs = store
	}
}

// New constructs a Service. The config must have passed Validate.
func New(profiles ProfileStore, groups GroupStore, leaseStore Lease, txRunner TxRunner, cfg Config, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		groups:   groups,
		lease:    leaseStore,
		txRunner: txRunner,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("dadcircles/internal/matching"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one matching run under the cross-process lease: snapshot the
// pool, bucketize, partition, and claim each surviving window as a pending
// group. Buckets are isolated; only lease contention, a pool load failure, or
// cancellation fail the call.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "matching.run")
	defer span.End()
	start := time.Now()

	release, err := s.lease.Acquire(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.countRun(outcomeSkipped)
			return nil, ErrRunActive
		}
		s.countRun(outcomeFailed)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire run lease")
	}
	defer func() {
		relCtx, cancel := detach(ctx)
		defer cancel()
		if err := release(relCtx); err != nil {
			s.logger.WarnContext(ctx, "run lease release failed", "error", err)
		}
	}()

	summary, err := s.run(ctx, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "matching run failed")
		s.recordRun(ctx, start, summary, outcomeFailed)
		s.finishRun(start, outcomeFailed)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pool_size", summary.PoolSize),
		attribute.Int("groups_created", len(summary.GroupsCreated)),
		attribute.Int("users_matched", summary.UsersMatched),
		attribute.Int("bucket_errors", len(summary.BucketErrors)),
	)
	s.recordRun(ctx, start, summary, outcomeCompleted)
	s.finishRun(start, outcomeCompleted)
	return summary, nil
}

func (s *Service) run(ctx context.Context, start time.Time) (*Summary, error) {
	// One reference time for the whole run: classification, priorities, and
	// every timestamp written.
	now := requestcontext.Now(ctx)

	pool, err := s.profiles.ListEligibleUnmatched(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load matching pool")
	}
	s.setPoolSize(len(pool))

	summary := &Summary{
		PoolSize:      len(pool),
		GroupsCreated: []GroupSummary{},
		BucketErrors:  []BucketError{},
	}
	if len(pool) == 0 {
		s.logger.InfoContext(ctx, "matching pool is empty; nothing to match")
	}

	buckets, skips := Bucketize(pool, now)
	s.logSkips(ctx, skips)
	summary.Skipped = skips.Total()

	keys := make([]BucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	// Buckets share no state, so they process in parallel; results land in
	// per-bucket slots and merge in key order afterwards, keeping the summary
	// deterministic. A bucket failure never crosses into another bucket: the
	// group function returns an error only for cancellation.
	var mu sync.Mutex
	ordered := make([]bucketResult, len(keys))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)
	for i, key := range keys {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := s.processBucket(gctx, key, buckets[key], now)
			mu.Lock()
			ordered[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return summary, err
	}

	for i, key := range keys {
		res := ordered[i]
		summary.BucketsProcessed++
		if res.err != nil {
			summary.BucketErrors = append(summary.BucketErrors, BucketError{
				Bucket: key.String(),
				Error:  res.err.Error(),
			})
			s.addBucketErrors(1)
		}
		summary.GroupsCreated = append(summary.GroupsCreated, res.groups...)
		summary.UsersMatched += res.matched
	}
	summary.UsersUnmatched = summary.PoolSize - summary.UsersMatched

	s.addGroupsCreated(len(summary.GroupsCreated))
	s.addUsersMatched(summary.UsersMatched)
	s.addUsersSkipped(summary.Skipped)

	s.logAudit(ctx, audit.ActionMatchRunCompleted,
		fmt.Sprintf("pool=%d groups=%d matched=%d skipped=%d bucket_errors=%d",
			summary.PoolSize, len(summary.GroupsCreated), summary.UsersMatched,
			summary.Skipped, len(summary.BucketErrors)))
	s.logger.InfoContext(ctx, "matching run completed",
		"pool_size", summary.PoolSize,
		"buckets", summary.BucketsProcessed,
		"groups_created", len(summary.GroupsCreated),
		"users_matched", summary.UsersMatched,
		"users_unmatched", summary.UsersUnmatched,
		"skipped", summary.Skipped,
		"bucket_errors", len(summary.BucketErrors),
		"duration", time.Since(start))
	return summary, nil
}

// Preview runs the pure half of the pipeline and reports the candidate
// groups each bucket would produce. Nothing is persisted and no lease is
// taken; a concurrent real run may make the answer stale by the time it is
// read.
func (s *Service) Preview(ctx context.Context) (*Preview, error) {
	now := requestcontext.Now(ctx)

	pool, err := s.profiles.ListEligibleUnmatched(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load matching pool")
	}

	buckets, skips := Bucketize(pool, now)
	preview := &Preview{
		PoolSize: len(pool),
		Skipped:  skips.Total(),
		Buckets:  []BucketPreview{},
	}

	keys := make([]BucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	for _, key := range keys {
		members := buckets[key]
		bp := BucketPreview{
			Bucket:     key.String(),
			Members:    len(members),
			GroupSizes: []int{},
		}
		placed := 0
		for _, window := range PartitionBucket(members, key.Stage, s.cfg) {
			bp.GroupSizes = append(bp.GroupSizes, len(window))
			placed += len(window)
		}
		bp.Unplaced = len(members) - placed
		preview.Buckets = append(preview.Buckets, bp)
	}
	return preview, nil
}

// PoolSize reports how many members are waiting to be matched.
func (s *Service) PoolSize(ctx context.Context) (int, error) {
	n, err := s.profiles.CountEligibleUnmatched(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count matching pool")
	}
	s.setPoolSize(n)
	return n, nil
}

type bucketResult struct {
	groups  []GroupSummary
	matched int
	err     error
}

// processBucket partitions one bucket and persists each surviving window.
// Failures stay inside the bucket: a failed window is recorded and the next
// one still gets its chance.
func (s *Service) processBucket(ctx context.Context, key BucketKey, members []Member, now time.Time) bucketResult {
	var res bucketResult
	for i, window := range PartitionBucket(members, key.Stage, s.cfg) {
		group, err := s.createGroup(ctx, key, window, i+1, now)
		if err != nil {
			res.err = errors.Join(res.err, fmt.Errorf("group %d: %w", i+1, err))
			continue
		}
		res.groups = append(res.groups, GroupSummary{
			ID:          group.ID,
			Name:        group.Name,
			Bucket:      key.String(),
			MemberCount: len(group.MemberIDs),
		})
		res.matched += len(group.MemberIDs)
		s.logAudit(ctx, audit.ActionGroupCreated,
			fmt.Sprintf("%d members", len(group.MemberIDs)),
			"group_id", group.ID.String(),
			"bucket", key.String())
		s.logger.DebugContext(ctx, "group created",
			"group_id", group.ID,
			"name", group.Name,
			"bucket", key.String(),
			"members", len(group.MemberIDs))
	}
	return res
}

// createGroup persists one window as a pending group: the group row and every
// member claim commit together. AssignGroup is a per-user CAS, so a member
// claimed by a concurrent run fails the whole window here rather than ending
// up in two groups.
func (s *Service) createGroup(ctx context.Context, key BucketKey, window []Member, n int, now time.Time) (*models.Group, error) {
	memberIDs := make([]domain.UserID, len(window))
	for i, m := range window {
		memberIDs[i] = m.Profile.ID
	}
	group, err := models.NewGroup(models.NewGroupParams{
		Name:       models.GroupName(key.City, key.Stage, n),
		City:       key.City,
		RegionCode: key.RegionCode,
		Stage:      key.Stage,
		MemberIDs:  memberIDs,
		MinSize:    s.cfg.MinGroupSize,
		MaxSize:    s.cfg.MaxGroupSize,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	var claimed []domain.UserID
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		claimed = claimed[:0]
		if err := s.groups.Create(ctx, group); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		for _, userID := range memberIDs {
			if err := s.profiles.AssignGroup(ctx, userID, group.ID, now); err != nil {
				return fmt.Errorf("claim member %s: %w", userID, err)
			}
			claimed = append(claimed, userID)
		}
		return nil
	})
	if err != nil {
		s.rollbackGroup(ctx, group, claimed, now, err)
		return nil, err
	}
	return group, nil
}

// rollbackGroup compensates a failed claim for stores without transactional
// rollback: release the members claimed so far and retire the group row to
// deleted, so no pending group with unclaimed members survives. Under the
// postgres runner the transaction already rolled back and every step here
// degrades to a no-op: ClearGroup only clears rows still pointing at this
// group, and retiring a never-persisted group is not found.
func (s *Service) rollbackGroup(ctx context.Context, group *models.Group, claimed []domain.UserID, now time.Time, cause error) {
	// Compensation still runs when the run itself is being cancelled.
	ctx, cancel := detach(ctx)
	defer cancel()

	for _, userID := range claimed {
		if err := s.profiles.ClearGroup(ctx, userID, group.ID, now); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "rollback left a member claimed",
				"group_id", group.ID,
				"user_id", userID,
				"error", err)
		}
	}

	err := s.groups.UpdateStatus(ctx, group.ID, models.StatusPending, models.StatusDeleted, group.Version, now)
	switch {
	case err == nil:
		s.logAudit(ctx, audit.ActionGroupRollback, cause.Error(), "group_id", group.ID.String())
	case errors.Is(err, sentinel.ErrNotFound):
		// The group row never landed; nothing to retire.
	default:
		s.logger.ErrorContext(ctx, "rollback left a pending group",
			"group_id", group.ID,
			"error", err)
	}
}

// logSkips reports excluded members. Operators read these when a member asks
// why they were never matched.
func (s *Service) logSkips(ctx context.Context, skips Skips) {
	if len(skips.MissingLocation) > 0 {
		s.logger.DebugContext(ctx, "skipped members without a location",
			"count", len(skips.MissingLocation),
			"user_ids", skips.MissingLocation)
	}
	if len(skips.NoChildren) > 0 {
		s.logger.DebugContext(ctx, "skipped members without children",
			"count", len(skips.NoChildren),
			"user_ids", skips.NoChildren)
	}
	if len(skips.AgedOut) > 0 {
		s.logger.DebugContext(ctx, "skipped members whose child aged out",
			"count", len(skips.AgedOut),
			"user_ids", skips.AgedOut)
	}
}

// recordRun appends the run to the history. History is bookkeeping: failures
// are logged and never fail the run.
func (s *Service) recordRun(ctx context.Context, start time.Time, summary *Summary, outcome string) {
	if s.runs == nil {
		return
	}
	rec := runs.Record{
		ID:          uuid.New(),
		StartedAt:   start,
		FinishedAt:  time.Now(),
		TriggeredBy: triggeredBy(ctx),
		Outcome:     outcome,
	}
	if summary != nil {
		rec.PoolSize = summary.PoolSize
		rec.GroupsCreated = len(summary.GroupsCreated)
		rec.UsersMatched = summary.UsersMatched
		rec.UsersUnmatched = summary.UsersUnmatched
		rec.UsersSkipped = summary.Skipped
		for _, be := range summary.BucketErrors {
			rec.BucketErrors = append(rec.BucketErrors, runs.BucketError{Bucket: be.Bucket, Error: be.Error})
		}
	}
	recCtx, cancel := detach(ctx)
	defer cancel()
	if err := s.runs.Insert(recCtx, rec); err != nil {
		s.logger.WarnContext(ctx, "run history not recorded", "error", err)
	}
}

// triggeredBy labels who started the run: the admin actor from the request,
// "api" for anonymous calls. The scheduler stamps its own actor.
func triggeredBy(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return "api"
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, detail string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{Action: action, Detail: detail}
	if raw := attrs.ExtractString(attributes, "group_id"); raw != "" {
		if id, err := domain.ParseGroupID(raw); err == nil {
			event.GroupID = &id
		}
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func (s *Service) countRun(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRuns(outcome)
	}
}

// finishRun records the outcome and duration of a run that held the lease.
func (s *Service) finishRun(start time.Time, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRuns(outcome)
		s.metrics.ObserveRunDuration(start)
	}
}

func (s *Service) setPoolSize(n int) {
	if s.metrics != nil {
		s.metrics.SetPoolSize(n)
	}
}

func (s *Service) addGroupsCreated(n int) {
	if s.metrics != nil {
		s.metrics.AddGroupsCreated(n)
	}
}

func (s *Service) addUsersMatched(n int) {
	if s.metrics != nil {
		s.metrics.AddUsersMatched(n)
	}
}

func (s *Service) addUsersSkipped(n int) {
	if s.metrics != nil {
		s.metrics.AddUsersSkipped(n)
	}
}

func (s *Service) addBucketErrors(n int) {
	if s.metrics != nil {
		s.metrics.AddBucketErrors(n)
	}
}
