// Package handler exposes the admin matching endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dadcircles/internal/matching"
	"dadcircles/internal/matching/runs"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/httputil"
	"dadcircles/pkg/requestcontext"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Service defines the matching operations the admin surface needs.
type Service interface {
	Run(ctx context.Context) (*matching.Summary, error)
	Preview(ctx context.Context) (*matching.Preview, error)
	PoolSize(ctx context.Context) (int, error)
}

// RunHistory lists past runs, newest first.
type RunHistory interface {
	List(ctx context.Context, limit int) ([]runs.Record, error)
}

// Handler handles matching run endpoints.
type Handler struct {
	logger   *slog.Logger
	matching Service
	history  RunHistory
}

// New creates a new matching Handler.
func New(matchingService Service, history RunHistory, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		matching: matchingService,
		history:  history,
	}
}

// Register registers the matching routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/matching", func(r chi.Router) {
		r.Post("/run", h.handleRun)
		r.Get("/preview", h.handlePreview)
		r.Get("/pool", h.handlePool)
		r.Get("/runs", h.handleRuns)
	})
}

type poolResponse struct {
	EligibleUnmatched int `json:"eligible_unmatched"`
}

type runsResponse struct {
	Runs []runs.Record `json:"runs"`
}

// handleRun triggers a matching run and blocks until it finishes. A run
// already in flight answers 409.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.matching.Run(ctx)
	if err != nil {
		h.logFailure(ctx, "matching run failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	preview, err := h.matching.Preview(ctx)
	if err != nil {
		h.logFailure(ctx, "matching preview failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}

func (h *Handler) handlePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.matching.PoolSize(ctx)
	if err != nil {
		h.logFailure(ctx, "pool size lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, poolResponse{EligibleUnmatched: n})
}

// handleRuns lists recent run records. ?limit= caps how many, 100 at most.
func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid limit %q", raw))
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	records, err := h.history.List(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "run history lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []runs.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, runsResponse{Runs: records})
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
