// Package requestid provides middleware that assigns every request a
// correlation ID, reusing an inbound X-Request-ID when the caller supplies one.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"dadcircles/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware stores the request ID in the context and echoes it on the
// response so callers can correlate responses with logs and audit events.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerName, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
