// Package service owns the group lifecycle. Pending groups become active on
// admin approval, which fans out one introduction per member; deleting a
// group releases its members back to the matching pool in one transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dadcircles/internal/audit"
	"dadcircles/internal/group/metrics"
	"dadcircles/internal/group/models"
	"dadcircles/internal/notify"
	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/sentinel"
	"dadcircles/pkg/requestcontext"
)

const defaultDispatchTimeout = 5 * time.Second

// Service orchestrates group approval, deletion and introduction fan-out.
type Service struct {
	groups   Store
	members  MemberStore
	dispatch Dispatcher
	txRunner TxRunner

	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	dispatchTimeout time.Duration
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

// WithDispatchTimeout bounds each member's introduction dispatch.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// New constructs a Service.
func New(groups Store, members MemberStore, dispatch Dispatcher, txRunner TxRunner, opts ...Option) *Service {
	s := &Service{
		groups:          groups,
		members:         members,
		dispatch:        dispatch,
		txRunner:        txRunner,
		logger:          slog.Default(),
		tracer:          otel.Tracer("dadcircles/internal/group"),
		dispatchTimeout: defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApprovalResult reports the outcome of one Approve call. Notified and Failed
// cover only this call; members notified by an earlier approval are in
// neither.
type ApprovalResult struct {
	Group    *models.Group
	Notified []domain.UserID
	Failed   []domain.UserID
}

// DeleteResult reports the outcome of a Delete call. ReturnedToPool lists the
// members whose profiles were released; members who left the platform since
// the group formed are absent.
type DeleteResult struct {
	Group          *models.Group
	ReturnedToPool []domain.UserID
}

// Get returns a group by id.
func (s *Service) Get(ctx context.Context, id domain.GroupID) (*models.Group, error) {
	return s.loadGroup(ctx, id)
}

// ListByStatus returns groups in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]models.Group, error) {
	if !status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown group status %q", status)
	}
	groups, err := s.groups.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}
	return groups, nil
}

// Approve activates a pending group and dispatches introductions to its
// members. Approving an already active group resends to members who never
// received theirs and is a no-op success when none are left. A member whose
// dispatch fails lands in Failed without failing the approval; the next
// approval retries exactly those members.
func (s *Service) Approve(ctx context.Context, id domain.GroupID) (*ApprovalResult, error) {
	ctx, span := s.tracer.Start(ctx, "group.approve")
	defer span.End()
	start := time.Now()

	group, err := s.loadGroup(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group approval failed")
		return nil, err
	}
	now := requestcontext.Now(ctx)

	switch group.Status {
	case models.StatusActive:
		// Resend path: no transition, just the un-notified members.
	default:
		if err := group.CanApprove(); err != nil {
			s.incrementTransitionsRejected()
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "group approval failed")
			return nil, err
		}
		if err := s.groups.UpdateStatus(ctx, id, models.StatusPending, models.StatusActive, group.Version, now); err != nil {
			err = s.translateWrite(err, "activate group")
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "group approval failed")
			return nil, err
		}
		group.ApplyApproval(now)
		s.logAudit(ctx, audit.ActionGroupApproved, &group.ID, nil, "",
			"group_id", group.ID,
			"member_count", len(group.MemberIDs))
		s.incrementGroupsApproved()
	}

	result := s.dispatchIntroductions(ctx, group, now)
	span.SetAttributes(
		attribute.String("group_id", group.ID.String()),
		attribute.Int("notified", len(result.Notified)),
		attribute.Int("dispatch_failures", len(result.Failed)),
	)
	s.observeApprove(start)
	return result, nil
}

// Delete marks a group deleted and releases its members back to the matching
// pool. The transition and every member release commit in one transaction,
// so a failure leaves the group untouched. MemberIDs stays on the record for
// the audit trail.
func (s *Service) Delete(ctx context.Context, id domain.GroupID) (*DeleteResult, error) {
	ctx, span := s.tracer.Start(ctx, "group.delete")
	defer span.End()

	group, err := s.loadGroup(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group deletion failed")
		return nil, err
	}
	if err := group.CanDelete(); err != nil {
		s.incrementTransitionsRejected()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group deletion failed")
		return nil, err
	}
	now := requestcontext.Now(ctx)
	from := group.Status

	var released []domain.UserID
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		released = released[:0]
		if err := s.groups.UpdateStatus(ctx, id, from, models.StatusDeleted, group.Version, now); err != nil {
			return err
		}
		for _, userID := range group.MemberIDs {
			if err := s.members.ClearGroup(ctx, userID, id, now); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					// Member left the platform; nothing to release.
					continue
				}
				return fmt.Errorf("release member %s: %w", userID, err)
			}
			released = append(released, userID)
		}
		return nil
	})
	if err != nil {
		err = s.translateWrite(err, "delete group")
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group deletion failed")
		return nil, err
	}

	group.ApplyDeletion(now)
	span.SetAttributes(
		attribute.String("group_id", group.ID.String()),
		attribute.Int("members_released", len(released)),
	)
	s.logAudit(ctx, audit.ActionGroupDeleted, &group.ID, nil, "",
		"group_id", group.ID,
		"members_released", len(released))
	s.incrementGroupsDeleted()
	return &DeleteResult{Group: group, ReturnedToPool: released}, nil
}

func (s *Service) dispatchIntroductions(ctx context.Context, group *models.Group, now time.Time) *ApprovalResult {
	result := &ApprovalResult{Group: group}
	pending := group.PendingNotifications()
	if len(pending) == 0 {
		return result
	}

	for _, userID := range pending {
		if err := s.sendOne(ctx, group, userID); err != nil {
			s.logger.WarnContext(ctx, "introduction dispatch failed",
				"group_id", group.ID,
				"user_id", userID,
				"error", err)
			s.logAudit(ctx, audit.ActionNotificationFailed, &group.ID, &userID, err.Error())
			result.Failed = append(result.Failed, userID)
			continue
		}
		if err := s.groups.AppendNotified(ctx, group.ID, userID, now); err != nil {
			// The introduction went out; a lost bookkeeping write means the
			// member may get a duplicate on the next approval. Dispatch is
			// at-least-once, so log and move on.
			s.logger.WarnContext(ctx, "notified bookkeeping failed",
				"group_id", group.ID,
				"user_id", userID,
				"error", err)
		}
		_ = group.MarkNotified(userID, now)
		s.logAudit(ctx, audit.ActionMemberNotified, &group.ID, &userID, "")
		result.Notified = append(result.Notified, userID)
	}

	if len(result.Notified) > 0 {
		if err := s.groups.SetNotifiedAt(ctx, group.ID, now); err != nil {
			s.logger.WarnContext(ctx, "notified_at not recorded",
				"group_id", group.ID,
				"error", err)
		}
		if group.NotifiedAt == nil {
			group.NotifiedAt = &now
		}
	}
	s.addIntroductionOutcomes(len(result.Notified), len(result.Failed))
	return result
}

func (s *Service) sendOne(ctx context.Context, group *models.Group, userID domain.UserID) error {
	member, err := s.members.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	intro := notify.Introduction{
		GroupID:     group.ID,
		GroupName:   group.Name,
		City:        group.City,
		Stage:       group.Stage,
		UserID:      member.ID,
		Email:       member.Email,
		DisplayName: member.DisplayName(),
		MemberCount: len(group.MemberIDs),
	}
	if err := s.dispatch.SendIntroduction(dctx, intro); err != nil {
		return fmt.Errorf("send introduction: %w", err)
	}
	return nil
}

func (s *Service) loadGroup(ctx context.Context, id domain.GroupID) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	return group, nil
}

func (s *Service) translateWrite(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "group not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "group was modified concurrently")
	default:
		return dErrors.Wrapf(err, dErrors.CodeInternal, "failed to %s", action)
	}
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, groupID *domain.GroupID, userID *domain.UserID, detail string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:  action,
		GroupID: groupID,
		UserID:  userID,
		Detail:  detail,
	})
}

func (s *Service) incrementGroupsApproved() {
	if s.metrics != nil {
		s.metrics.IncrementGroupsApproved()
	}
}

func (s *Service) incrementGroupsDeleted() {
	if s.metrics != nil {
		s.metrics.IncrementGroupsDeleted()
	}
}

func (s *Service) incrementTransitionsRejected() {
	if s.metrics != nil {
		s.metrics.IncrementTransitionsRejected()
	}
}

func (s *Service) addIntroductionOutcomes(sent, failed int) {
	if s.metrics != nil {
		s.metrics.AddIntroductionOutcomes(sent, failed)
	}
}

func (s *Service) observeApprove(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveApprove(start)
	}
}
