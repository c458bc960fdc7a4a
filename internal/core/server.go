// Package core provides the API chassis for the StudioPulse platform.
// It builds a chi router with the cross-cutting concerns every endpoint
// needs (panic recovery, request correlation, structured request logging,
// security headers) so domain handlers only deal with their own semantics.
package core

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studiopulse/internal/config"
	"studiopulse/internal/types"
)

// Server encapsulates the HTTP chassis dependencies, allowing injection
// during testing and distinct wiring per environment.
type Server struct {
	Config    *config.Config
	Logger    types.Logger
	Validator *Validator

	// HealthProbes are checked by GET /health. Registered by main before
	// MountRoutes.
	HealthProbes []HealthProbe

	// V1RouteRegistrars register domain handler routes under /v1. The
	// indirection keeps core free of handler package imports.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts routes afterwards so
// tests can customize registration.
func NewServer(cfg *config.Config, logger types.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = types.NopLogger()
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
