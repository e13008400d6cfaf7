// Package core provides the API chassis for the QR Studio backend.
// It creates the chi router and enforces cross-cutting concerns --
// recovery, timeouts, request IDs, logging, CORS, and authentication --
// before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qrstudio/internal/config"
)

// RouteRegistrar mounts a handler's routes on a chi router. The application
// entry point populates V1RouteRegistrars; this indirection avoids import
// cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the QR Studio API, allowing for
// easy injection during testing.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator

	// V1RouteRegistrars mount authenticated /v1 routes.
	V1RouteRegistrars []RouteRegistrar
	// PublicRouteRegistrars mount unauthenticated top-level routes
	// (the short-link redirect endpoint).
	PublicRouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It fails fast on missing critical dependencies; the caller is
// responsible for calling MountRoutes after populating the registrars.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MountRoutes registers the global middleware chain, the authenticated /v1
// group, public routes, and the health check.
//
// Middleware ordering: Recoverer is outermost to catch all failures; the
// timeout and request ID run before logging so log lines carry both; auth
// runs last so everything downstream sees the resolved Actor.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.Config.Server.CorsAllowedOrigins))
	s.router.Use(s.AuthMiddleware)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(RequireActor)
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	for _, registrar := range s.PublicRouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
}

// Shutdown performs a graceful termination of server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
