package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the retry sweeper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for retryable notifications.
	Interval time.Duration

	// StaleThreshold is how long a PENDING or FAILED notification must sit
	// untouched before the reaper looks at it.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of notifications re-enqueued per cycle.
	BatchSize int
}

// Reaper periodically scans the store for PENDING or FAILED notifications
// whose backoff has elapsed and enqueues a redelivery for each.
//
// The store is the source of truth; the reaper covers messages the queue lost
// (a wiped Redis, a worker crash, an exhausted queue retry budget).
type Reaper struct {
	store    NotificationStore
	tracker  *Tracker
	enqueuer Enqueuer
	config   ReaperConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewReaper creates a new retry sweeper.
func NewReaper(store NotificationStore, tracker *Tracker, enqueuer Enqueuer, cfg ReaperConfig, logger *slog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reaper{
		store:    store,
		tracker:  tracker,
		enqueuer: enqueuer,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one cycle and returns how many notifications were re-enqueued.
func (r *Reaper) Sweep(ctx context.Context) int {
	now := r.now()

	candidates, err := r.store.ListRetryable(ctx, now.Add(-r.config.StaleThreshold), r.config.BatchSize)
	if err != nil {
		r.logger.Error("reaper: failed to list retryable notifications", "error", err)
		return 0
	}
	if len(candidates) == 0 {
		return 0
	}

	recovered := 0
	for _, n := range candidates {
		if !r.tracker.Due(n, now) {
			continue
		}

		if err := r.enqueuer.EnqueueRedeliver(ctx, n.ID); err != nil {
			r.logger.Error("reaper: failed to enqueue redelivery",
				"notification_id", n.ID,
				"error", err,
			)
			continue
		}

		recovered++
		r.logger.Info("reaper: redelivery enqueued",
			"notification_id", n.ID,
			"status", n.Status,
			"retry_count", n.RetryCount,
			"age", now.Sub(n.UpdatedAt).Round(time.Second),
		)
	}

	if recovered > 0 {
		r.logger.Info("reaper: sweep complete", "recovered", recovered, "candidates", len(candidates))
	}
	return recovered
}
