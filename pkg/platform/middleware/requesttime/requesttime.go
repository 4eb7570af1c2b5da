// Package requesttime pins one "now" per HTTP request. Everything a request
// touches (stage classification, status transitions, audit timestamps) reads
// the same instant, so a request that straddles midnight cannot classify a
// child into two different stages.
package requesttime

import (
	"net/http"
	"time"

	"dadcircles/pkg/requestcontext"
)

// Middleware stamps the request context with the arrival time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
