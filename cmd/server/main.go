// Package main is the entrypoint for the textbrief API server.
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

	"github.com/joho/godotenv"

	"github.com/kiranshivaraju/textbrief/internal/ai"
	"github.com/kiranshivaraju/textbrief/internal/api"
	"github.com/kiranshivaraju/textbrief/internal/api/handler"
	"github.com/kiranshivaraju/textbrief/internal/api/response"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/internal/logging"
	"github.com/kiranshivaraju/textbrief/internal/upstream"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	slog.SetDefault(logger)

	if err := run(level); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(level *slog.LevelVar) error {
	// 1. Load .env when present, then config; fail fast on invalid config
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lvl, _ := cfg.Server.Level()
	level.Set(lvl)
	slog.Info("config loaded", "env", cfg.Server.Env, "policy", cfg.AI.Policy, "language", cfg.AI.Language)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build provider registry, cascade and router
	router := newRouter(cfg)

	// 3. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.CascadeTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRouter wires the registry, upstream client, cascade and handlers.
func newRouter(cfg *config.Config) http.Handler {
	registry := ai.NewRegistry(cfg.AI)
	for _, id := range models.PriorityOrder {
		slog.Info("provider", "provider", id, "configured", registry.IsAvailable(id))
	}

	client := upstream.NewClient(&http.Client{}, upstream.RetryPolicy{
		MaxRetries:      cfg.AI.RetryMax,
		InitialInterval: cfg.AI.RetryInitialInterval,
	})
	cascade := ai.NewCascade(registry, client, ai.CascadeOptions{
		Policy:         cfg.AI.Policy,
		CallTimeout:    cfg.AI.CallTimeout,
		CascadeTimeout: cfg.AI.CascadeTimeout,
	})

	return api.NewRouter(api.Dependencies{
		HealthHandler:  healthHandler(registry),
		AnalyzeHandler: handler.NewAnalyzeHandler(cascade, cfg.Server.MaxBodyBytes),
	})
}

// availabilityReporter is satisfied by *ai.Registry.
type availabilityReporter interface {
	Availability() map[models.ProviderID]bool
}

// healthHandler reports which providers have credentials. It never reveals them.
func healthHandler(reg availabilityReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := make(map[models.ProviderID]string)
		configured := 0
		for id, ok := range reg.Availability() {
			if ok {
				providers[id] = "configured"
				configured++
			} else {
				providers[id] = "missing"
			}
		}

		if configured == 0 {
			response.Status(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "degraded",
				"providers": providers,
			})
			return
		}

		response.JSON(w, map[string]any{
			"status":    "ok",
			"providers": providers,
		})
	}
}
