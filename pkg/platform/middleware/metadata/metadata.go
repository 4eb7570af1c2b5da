// Package metadata extracts client metadata from admin requests and exposes
// it through requestcontext for logging and audit attribution.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"dadcircles/pkg/requestcontext"
)

// actorHeader names the operator performing an admin action. The fronting
// proxy authenticates the operator and sets this header; the service only
// records it.
const actorHeader = "X-Admin-Actor"

// ClientMetadata stores the client IP, User-Agent, and admin actor on the
// context for handlers and services. It must run after chi's RealIP, which
// resolves the forwarding headers into RemoteAddr.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientMetadata(ctx, clientIP(r), r.Header.Get("User-Agent"))
		if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
			ctx = requestcontext.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP strips the port from RemoteAddr. RealIP leaves a bare IP when a
// forwarding header was present and ip:port on direct connections.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
