// Package main is the entry point for the StudioPulse API server.
//
// It loads configuration, connects the database pool, runs pending
// migrations, builds the HTTP chassis, and serves the notification API
// until a shutdown signal arrives.
//
// The API binary only writes jobs to the store; delivery happens in the
// notifier binary, whose poll loop picks up anything the API queues.
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
	"time"

	"github.com/go-chi/chi/v5"

	"studiopulse/internal/api/handlers"
	"studiopulse/internal/config"
	"studiopulse/internal/core"
	"studiopulse/internal/db"
	notify "studiopulse/internal/notify/core"
	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := types.NewSlogLogger(newSlog(cfg.LogLevel))
	logger.Info("studiopulse API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.Database.URL.Unmask()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	jobRepo := db.NewJobRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)
	resolver := prefs.NewResolver(prefRepo, logger)

	// The API process has no delivery queue; the notifier's poll loop picks
	// up pending jobs from the store within one poll interval.
	service := notify.NewService(jobRepo, resolver, storeOnlyEnqueuer{}, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, core.PingProbe{
		ProbeName: "database",
		Ping:      pool.Ping,
	})

	notifHandler := handlers.NewNotificationHandler(service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		notifHandler.RegisterRoutes(r)
	})

	srv.MountRoutes()

	return serveHTTP(ctx, srv, cfg, logger)
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger types.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err.Error())
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// storeOnlyEnqueuer satisfies the service's Enqueuer without an in-process
// queue. Durability comes from the job row; timeliness from the notifier's
// poll loop.
type storeOnlyEnqueuer struct{}

func (storeOnlyEnqueuer) Enqueue(types.Channel, string, time.Time) {}

// newSlog creates a JSON structured logger at the configured level.
func newSlog(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
