// Package main is the entry point for the pen-pal delivery API server.
//
// It loads configuration, connects to PostgreSQL and AWS, starts the
// background delivery runner and serves the HTTP API until SIGINT or
// SIGTERM, then drains requests and stops the runner.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"penpal/internal/api/handlers"
	"penpal/internal/app"
	"penpal/internal/config"
	"penpal/internal/core"
	"penpal/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("penpal API starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"port", cfg.Server.Port,
		"delay_mode", cfg.Delivery.DefaultMode,
		"events_backend", cfg.Events.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("closing dependencies", "error", err)
		}
	}()

	srv, err := buildServer(cfg, logger, serverDeps{
		Transits:  deps.Transits,
		Deliverer: deps.Deliveries,
		Ops:       deps.Runner,
		Probes: []core.HealthProbe{
			core.ProbeFunc{ProbeName: "database", Fn: deps.Ping},
			core.RunnerProbe{Running: deps.Runner.Running},
		},
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := deps.Runner.Start(ctx); err != nil {
		return fmt.Errorf("starting delivery runner: %w", err)
	}

	return serve(ctx, srv, cfg, logger, deps)
}

// serverDeps are the services the HTTP layer calls.
type serverDeps struct {
	Transits  handlers.TransitService
	Deliverer handlers.ManualDeliverer
	Ops       handlers.Operations
	Probes    []core.HealthProbe
	Clock     types.Clock
}

// buildServer wires the handlers into a core.Server and mounts its routes.
func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.HealthProbes = deps.Probes

	transitHandler := handlers.NewTransitHandler(deps.Transits, deps.Deliverer, srv.Validator, deps.Clock, logger)
	adminHandler := handlers.NewAdminHandler(deps.Ops, deps.Clock, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, transitHandler.RegisterRoutes)
	srv.AdminRouteRegistrars = append(srv.AdminRouteRegistrars, adminHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// runner is the part of the scheduler Runner that serve stops on shutdown.
type runner interface {
	Stop(ctx context.Context) error
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then shuts down within the configured timeout.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger, deps *app.App) error {
	httpServer := srv.HTTPServer()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	return shutdown(httpServer, deps.Runner, cfg, logger, runErr)
}

func shutdown(httpServer *http.Server, r runner, cfg *config.Config, logger *slog.Logger, runErr error) error {
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	errs := []error{runErr}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := r.Stop(ctx); err != nil {
		logger.Error("delivery runner shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("runner shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}
