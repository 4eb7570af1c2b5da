// Package handler exposes the admin group endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dadcircles/internal/group/models"
	"dadcircles/internal/group/service"
	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/httputil"
	"dadcircles/pkg/requestcontext"
)

// Service defines the group operations the admin surface needs.
type Service interface {
	Get(ctx context.Context, id domain.GroupID) (*models.Group, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Group, error)
	Approve(ctx context.Context, id domain.GroupID) (*service.ApprovalResult, error)
	Delete(ctx context.Context, id domain.GroupID) (*service.DeleteResult, error)
}

// Handler handles group lifecycle endpoints.
type Handler struct {
	logger *slog.Logger
	groups Service
}

// New creates a new group Handler.
func New(groups Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		groups: groups,
	}
}

// Register registers the group routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/groups", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{groupID}", h.handleGet)
		r.Post("/{groupID}/approve", h.handleApprove)
		r.Delete("/{groupID}", h.handleDelete)
	})
}

type listResponse struct {
	Groups []models.Group `json:"groups"`
}

type approveResponse struct {
	Group    *models.Group   `json:"group"`
	Notified []domain.UserID `json:"notified"`
	Failed   []domain.UserID `json:"failed"`
}

type deleteResponse struct {
	Group          *models.Group   `json:"group"`
	ReturnedToPool []domain.UserID `json:"returned_to_pool"`
}

// handleList lists groups in one status; the default view is the pending
// queue awaiting admin review.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.StatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = parsed
	}

	groups, err := h.groups.ListByStatus(ctx, status)
	if err != nil {
		h.logFailure(ctx, "list groups failed", err)
		httputil.WriteError(w, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Groups: groups})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	group, err := h.groups.Get(ctx, id)
	if err != nil {
		h.logFailure(ctx, "get group failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

// handleApprove activates a pending group or resends missing introductions on
// an active one. Partial dispatch failure still returns 200; the failed
// member ids are reported in the body.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.groups.Approve(ctx, id)
	if err != nil {
		h.logFailure(ctx, "group approval rejected", err)
		httputil.WriteError(w, err)
		return
	}

	resp := approveResponse{
		Group:    result.Group,
		Notified: result.Notified,
		Failed:   result.Failed,
	}
	if resp.Notified == nil {
		resp.Notified = []domain.UserID{}
	}
	if resp.Failed == nil {
		resp.Failed = []domain.UserID{}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleDelete dissolves a group. The response carries the final record plus
// the members that went back into the pool.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.groups.Delete(ctx, id)
	if err != nil {
		h.logFailure(ctx, "group deletion rejected", err)
		httputil.WriteError(w, err)
		return
	}

	resp := deleteResponse{
		Group:          result.Group,
		ReturnedToPool: result.ReturnedToPool,
	}
	if resp.ReturnedToPool == nil {
		resp.ReturnedToPool = []domain.UserID{}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// logFailure logs client mistakes at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
