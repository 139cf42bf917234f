package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hirenotify/internal/config"
	"hirenotify/internal/domain/notification"
	"hirenotify/internal/infra/console"
	"hirenotify/internal/infra/email"
	"hirenotify/internal/infra/kafka"
	"hirenotify/internal/infra/lock"
	"hirenotify/internal/infra/metrics"
	"hirenotify/internal/infra/queue"
	"hirenotify/internal/infra/store"
	"hirenotify/internal/infra/template"
	"hirenotify/internal/logging"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
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

	slog.Info("worker configuration loaded",
		"env", cfg.App.Env,
		"dev_mode", cfg.Dispatch.DevMode,
		"max_retries", cfg.Dispatch.MaxRetries,
		"store", cfg.Store.Driver,
		"email_transport", cfg.Email.Transport,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	prom := metrics.New()

	// Template Engine
	tmplEngine, err := template.NewEngine()
	if err != nil {
		return err
	}

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
		return err
	}
	defer notifStore.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Delivery Channels
	registry := notification.NewChannelRegistry(
		console.New(logger),
		newEmailChannel(cfg),
	)
	if err := registry.Validate(notification.RoutableChannels(cfg.Dispatch.DevMode)...); err != nil {
		return err
	}

	executor := notification.NewExecutor(
		notification.NewChannelRouter(logger),
		registry,
		notification.ExecutorConfig{
			DevMode:        cfg.Dispatch.DevMode,
			ChannelTimeout: cfg.Dispatch.ChannelTimeout(),
		},
		notification.WithExecutorMetrics(prom),
		notification.WithExecutorLogger(logger),
	)

	tracker := notification.NewTracker(notifStore,
		notification.TrackerConfig{
			MaxRetries: cfg.Dispatch.MaxRetries,
			RetryBase:  cfg.Dispatch.RetryBase(),
		},
		notification.WithTrackerMetrics(prom),
		notification.WithTrackerLogger(logger),
	)

	// Per-event lock shared by every worker process
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	consumer := notification.NewConsumer(notifStore, tmplEngine, executor, tracker,
		notification.WithLocker(lock.NewRedisLocker(redisClient, cfg.Dispatch.LockTTL(), logger)),
		notification.WithConsumerMetrics(prom),
		notification.WithConsumerLogger(logger),
	)

	// Asynq Client (for reaper redeliveries)
	redisOpt := queue.RedisOpt(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	enqueuer := queue.NewClient(redisOpt, cfg.Queue.MaxRetry)
	defer enqueuer.Close()

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(redisOpt, queue.ServerConfig{
		Concurrency: cfg.Queue.Concurrency,
		RetryBase:   time.Duration(cfg.Queue.RetryBaseSec) * time.Second,
	}, logger)

	slog.Info("worker starting",
		"concurrency", cfg.Queue.Concurrency,
		"redis", cfg.Redis.Address,
	)
	if err := asynqServer.Start(queue.NewServeMux(consumer)); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Retry Sweeper
	reaper := notification.NewReaper(notifStore, tracker, enqueuer, notification.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	}, logger)
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})

	// Optional Kafka source
	if cfg.Kafka.Enabled {
		reader := kafka.NewReader(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer reader.Close()

		source := kafka.NewSource(reader, consumer, logger)
		g.Go(func() error { return source.Run(gctx) })
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error { return prom.Serve(gctx, cfg.Metrics.Address, logger) })
	}

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	<-gctx.Done()
	slog.Info("shutting down worker...")
	asynqServer.Shutdown()
	return g.Wait()
}

func newEmailChannel(cfg *config.Config) notification.DeliveryChannel {
	switch cfg.Email.Transport {
	case "resend":
		return email.NewResendChannel(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName)
	default:
		return email.NewSMTPChannel(email.SMTPConfig{
			Host:        cfg.Email.SMTP.Host,
			Port:        cfg.Email.SMTP.Port,
			Username:    cfg.Email.SMTP.Username,
			Password:    cfg.Email.SMTP.Password,
			Encryption:  cfg.Email.SMTP.Encryption,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
		})
	}
}
