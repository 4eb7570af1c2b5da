// Package group re-exports the lifecycle service and its admin handler so
// wiring code imports one package instead of three.
package group

import (
	"log/slog"

	"dadcircles/internal/group/handler"
	"dadcircles/internal/group/service"
)

// Service runs the group lifecycle: approval, deletion, introductions.
type Service = service.Service

// Handler serves the admin group endpoints.
type Handler = handler.Handler

// NewService builds the lifecycle service. Stores, the dispatcher, and the
// transaction runner are required; logging, audit, metrics, and the dispatch
// timeout arrive as options.
func NewService(groups service.Store, members service.MemberStore, dispatch service.Dispatcher, txRunner service.TxRunner, opts ...service.Option) *Service {
	return service.New(groups, members, dispatch, txRunner, opts...)
}

// NewHandler builds the admin HTTP handler for group routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
