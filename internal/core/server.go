// Package core provides the API chassis for the pen-pal delivery service.
// It creates a chi router and enforces cross-cutting concerns (request
// correlation, logging, panic recovery, admin authentication and error
// formatting) before requests reach the domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"penpal/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a handler's routes onto a router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the API, allowing for easy
// injection during testing.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector // optional

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount public routes under /v1; AdminRouteRegistrars
	// mount routes under /v1/admin behind the admin key.
	V1RouteRegistrars    []RouteRegistrar
	AdminRouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller registers
// handlers and then calls MountRoutes.
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

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HTTPServer wraps the router in an http.Server using the configured port
// and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.router,
		ReadTimeout:       s.Config.Server.ReadTimeout,
		ReadHeaderTimeout: s.Config.Server.ReadTimeout,
		WriteTimeout:      s.Config.Server.WriteTimeout,
	}
}
