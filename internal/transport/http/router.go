// Package httptransport assembles the HTTP surface: shared middleware,
// health and metrics endpoints, and the token-guarded admin routes that
// feature handlers mount themselves.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dadcircles/internal/platform/metrics"
	"dadcircles/internal/platform/middleware"
	"dadcircles/pkg/platform/httputil"
	"dadcircles/pkg/platform/middleware/admin"
	"dadcircles/pkg/platform/middleware/metadata"
	"dadcircles/pkg/platform/middleware/requestid"
	"dadcircles/pkg/platform/middleware/requesttime"
)

const (
	defaultRequestTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
)

// Registrar mounts one feature's routes on the shared router.
type Registrar interface {
	Register(r chi.Router)
}

// Check reports the readiness of one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Config carries the cross-cutting pieces of the HTTP surface.
type Config struct {
	Logger *slog.Logger

	// AdminToken guards everything the registrars mount. Empty disables the
	// guard, which only makes sense in dev.
	AdminToken string

	// Metrics, when set, records per-route request counts and latency.
	Metrics *metrics.Metrics

	// RequestTimeout bounds each request's context. Zero selects the default.
	RequestTimeout time.Duration

	// Checks run on /healthz, keyed by dependency name.
	Checks map[string]Check

	// Registrars mount the admin routes, one per feature.
	Registrars []Registrar
}

// New assembles the router. Health and metrics stay outside the admin guard
// so probes and scrapers need no credentials.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", handleHealth(logger, cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
		for _, registrar := range cfg.Registrars {
			registrar.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth reports liveness plus the state of each registered
// dependency. Check failures are logged in full but reported only as
// "unavailable"; the endpoint is unauthenticated.
func handleHealth(logger *slog.Logger, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				healthy = false
				resp.Checks[name] = "unavailable"
				logger.WarnContext(ctx, "health check failed",
					"dependency", name,
					"error", err)
				continue
			}
			resp.Checks[name] = "ok"
		}
		status := http.StatusOK
		if !healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
