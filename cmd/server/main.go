// Package main is the entrypoint for the object counter API server.
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

	"github.com/kiranshivaraju/objcounter/internal/api"
	"github.com/kiranshivaraju/objcounter/internal/api/handler"
	mw "github.com/kiranshivaraju/objcounter/internal/api/middleware"
	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/internal/cache"
	"github.com/kiranshivaraju/objcounter/internal/config"
	"github.com/kiranshivaraju/objcounter/internal/counting"
	"github.com/kiranshivaraju/objcounter/internal/detector"
	"github.com/kiranshivaraju/objcounter/internal/monitor"
	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/internal/upload"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "detector", cfg.Detector.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	det, err := detector.New(cfg.Detector)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	slog.Info("detector initialized", "detector", det.Name())

	pgStore := store.NewPostgresStore(pool)
	uploads := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	counter := counting.NewService(det, pgStore, redisCache, uploads, cfg.Detector.Timeout, cfg.Redis.ObjectTypesTTL)

	perf := monitor.New(
		monitor.NewSystemSampler(cfg.Monitor.DiskPath),
		cfg.Monitor.Interval,
		cfg.Monitor.MaxHistory,
		monitor.WithCache(redisCache),
	)
	defer perf.Stop()

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),

		HealthHandler:      healthHandler(pgStore, redisCache, det),
		ObjectTypesHandler: handler.NewObjectTypesHandler(counter),
		CountHandler:       handler.NewCountHandler(counter, cfg.Upload.MaxBytes),
		CountAllHandler:    handler.NewCountAllHandler(counter, cfg.Upload.MaxBytes),
		CorrectHandler:     handler.NewCorrectHandler(counter),
		ListResults:        handler.NewListResultsHandler(counter),
		GetResult:          handler.NewGetResultHandler(counter),
		FeedbackHandler:    handler.NewFeedbackHandler(counter),
		DeleteResult:       handler.NewDeleteResultHandler(counter),
		BulkDelete:         handler.NewBulkDeleteHandler(counter),
		UploadsHandler:     handler.NewUploadsHandler(uploads),

		StartMonitoring: handler.NewStartMonitoringHandler(perf),
		StopMonitoring:  handler.NewStopMonitoringHandler(perf),
		Metrics:         handler.NewMetricsHandler(perf),
		UpdateStage:     handler.NewUpdateStageHandler(perf),
		Summary:         handler.NewSummaryHandler(perf),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// Counting blocks for up to the detector timeout.
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Detector.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler reports database reachability and the seeded catalogue size.
// A cache outage is logged but does not degrade the service, since every
// cached path falls back to the database.
func healthHandler(s store.Store, c cache.Cache, det models.Detector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health: cache unreachable", "error", err)
		}

		count, err := s.CountObjectTypes(r.Context())
		if err != nil {
			response.JSONStatus(w, http.StatusServiceUnavailable, models.HealthResponse{
				Status:            "degraded",
				Message:           "API running but database issue",
				Error:             err.Error(),
				PipelineAvailable: det != nil,
			})
			return
		}

		resp := models.HealthResponse{
			Status:            "healthy",
			Message:           "Object Counting API is running",
			Database:          "connected",
			ObjectTypes:       count,
			PipelineAvailable: det != nil,
		}
		if det != nil {
			resp.Detector = det.Name()
		}
		response.JSON(w, resp)
	}
}
