// Package testutil provides request-context helpers shared by handler and
// workflow tests.
package testutil

import (
	"net/http"
	"time"

	"dadcircles/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock on a request.
// This simulates what the requesttime middleware would do, letting handler
// tests control every timestamp the service writes.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}

// WithActor attaches an operator identity to the request context.
// This simulates the metadata middleware reading X-Admin-Actor.
func WithActor(req *http.Request, actor string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), actor)
	return req.WithContext(ctx)
}
