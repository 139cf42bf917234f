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

	"hirenotify/internal/config"
	"hirenotify/internal/domain/notification"
	"hirenotify/internal/infra/metrics"
	"hirenotify/internal/infra/queue"
	"hirenotify/internal/infra/store"
	"hirenotify/internal/logging"
	"hirenotify/internal/middleware"
	"hirenotify/internal/router"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, logCloser := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"env", cfg.App.Env,
		"store", cfg.Store.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Notification Store
	notifStore, err := store.Open(ctx, store.Config{
		Driver:             cfg.Store.Driver,
		SQLitePath:         cfg.Store.SQLitePath,
		PostgresURL:        cfg.Store.PostgresURL,
		Migrate:            cfg.Store.Migrate,
		SupabaseURL:        cfg.Supabase.URL,
		SupabaseServiceKey: cfg.Supabase.ServiceKey,
	}, logger)
	if err != nil {
		slog.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer notifStore.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Asynq Client (for enqueuing hiring events)
	enqueuer := queue.NewClient(queue.RedisOpt(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB), cfg.Queue.MaxRetry)
	defer enqueuer.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	// Redis connection for readiness probes
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Service and Handler
	notificationService := notification.NewService(notifStore, enqueuer, logger)
	notificationHandler := notification.NewHandler(notificationService, logger)

	// Per-key rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.RunEviction(ctx)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.New().Handler()
	}

	// Router
	r := router.New(cfg, logger, router.Deps{
		Notifications: notificationHandler,
		RateLimiter:   rateLimiter,
		Metrics:       metricsHandler,
		Checks: []router.Check{
			{Name: "store", Ping: notifStore.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
