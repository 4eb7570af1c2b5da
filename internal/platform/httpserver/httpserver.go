// Package httpserver builds the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server hardened against slow clients. There is no
// WriteTimeout: POST /admin/matching/run holds the connection while the run
// executes, and the router's per-request timeout middleware already bounds
// every handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
