package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hirenotify/internal/common"

	"github.com/google/uuid"
)

// DeliveryFailedError reports a delivery attempt that was recorded as FAILED.
// The inbound message should be redelivered so the attempt is retried.
type DeliveryFailedError struct {
	NotificationID string
	RetryCount     int
	Err            error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("notification %s delivery failed (attempt %d): %v", e.NotificationID, e.RetryCount, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error {
	return e.Err
}

// Consumer turns inbound hiring events into notifications and drives one
// delivery attempt per receipt.
//
// Handle returns nil when the message can be acknowledged: the notification is
// SENT or FAILED_PERMANENT, or the event was already processed to a terminal
// state. A *DeliveryFailedError or any other error means the message must be
// requeued; a *common.ValidationError means it can never succeed.
type Consumer struct {
	store    NotificationStore
	renderer TemplateRenderer
	executor *Executor
	tracker  *Tracker
	locker   KeyLocker
	metrics  Metrics
	logger   *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithLocker sets the per-event locker (defaults to an in-process LocalLocker).
func WithLocker(l KeyLocker) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithConsumerMetrics sets the metrics sink.
func WithConsumerMetrics(m Metrics) ConsumerOption {
	return func(c *Consumer) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConsumer creates a queue consumer adapter.
func NewConsumer(store NotificationStore, renderer TemplateRenderer, executor *Executor, tracker *Tracker, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		store:    store,
		renderer: renderer,
		executor: executor,
		tracker:  tracker,
		locker:   NewLocalLocker(),
		metrics:  nopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one received event: find or create its notification,
// attempt delivery and record the outcome.
func (c *Consumer) Handle(ctx context.Context, event *HiringEvent) error {
	start := time.Now()

	kind, err := event.Validate()
	if err != nil {
		c.metrics.ObserveEvent(Kind(event.Type), "invalid")
		c.logger.Warn("dropping invalid hiring event", "type", event.Type, "error", err)
		return err
	}

	key := event.CorrelationKey()
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		c.metrics.ObserveEvent(kind, "error")
		return fmt.Errorf("locking event %s: %w", key, err)
	}
	defer unlock()

	n, err := c.findOrCreate(ctx, kind, key, event)
	if err != nil {
		c.metrics.ObserveEvent(kind, "error")
		c.logger.Error("failed to prepare notification",
			"correlation_key", key,
			"kind", kind,
			"error", err,
		)
		return err
	}

	if n.Status.IsTerminal() {
		c.metrics.ObserveEvent(kind, "duplicate")
		c.logger.Info("duplicate event ignored",
			"correlation_key", key,
			"notification_id", n.ID,
			"status", n.Status,
		)
		return nil
	}

	err = c.attempt(ctx, n)
	c.metrics.ObserveEvent(kind, eventResult(err))
	c.logger.Debug("hiring event processed",
		"correlation_key", key,
		"notification_id", n.ID,
		"duration", time.Since(start),
	)
	return err
}

// Redeliver attempts delivery of an existing non-terminal notification again.
func (c *Consumer) Redeliver(ctx context.Context, id string) error {
	n, err := c.store.GetByID(ctx, id)
	if err != nil {
		return common.NewStoreError("get", err)
	}
	if n == nil {
		return common.NewNotFoundError("notification", id)
	}

	key := n.CorrelationKey
	if key == "" {
		key = n.ID
	}
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("locking notification %s: %w", id, err)
	}
	defer unlock()

	// Re-read under the lock; another worker may have finished it meanwhile.
	n, err = c.store.GetByID(ctx, id)
	if err != nil {
		return common.NewStoreError("get", err)
	}
	if n == nil {
		return common.NewNotFoundError("notification", id)
	}
	if n.Status.IsTerminal() {
		c.logger.Info("redelivery skipped for terminal notification", "notification_id", id, "status", n.Status)
		return nil
	}

	err = c.attempt(ctx, n)
	c.metrics.ObserveEvent(n.Kind, eventResult(err))
	return err
}

// findOrCreate returns the notification for key, creating it PENDING if needed.
func (c *Consumer) findOrCreate(ctx context.Context, kind Kind, key string, event *HiringEvent) (*Notification, error) {
	existing, err := c.store.GetByCorrelationKey(ctx, key)
	if err != nil {
		return nil, common.NewStoreError("get by correlation key", err)
	}
	if existing != nil {
		return existing, nil
	}

	subject, text, html, err := c.renderer.Render(kind, event.TemplateData())
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", kind, err)
	}

	n := &Notification{
		ID:             uuid.NewString(),
		CorrelationKey: key,
		Kind:           kind,
		RecipientID:    event.RecipientID(),
		RecipientEmail: event.CandidateEmail,
		Subject:        subject,
		Content:        text,
		HTMLContent:    html,
		Metadata:       event.Metadata(),
		Status:         StatusPending,
	}

	if err := c.store.Create(ctx, n); err != nil {
		var conflict *common.ConflictError
		if !errors.As(err, &conflict) {
			return nil, common.NewStoreError("create", err)
		}
		// Another process created it first.
		existing, err := c.store.GetByCorrelationKey(ctx, key)
		if err != nil {
			return nil, common.NewStoreError("get by correlation key", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("notification for %s vanished after conflict", key)
		}
		return existing, nil
	}

	c.logger.Info("notification created",
		"notification_id", n.ID,
		"correlation_key", key,
		"kind", kind,
		"recipient_id", n.RecipientID,
	)
	return n, nil
}

// attempt runs one delivery and records its outcome.
func (c *Consumer) attempt(ctx context.Context, n *Notification) error {
	outcome, err := c.executor.Deliver(ctx, n)
	if err != nil {
		c.logger.Error("delivery aborted by configuration error",
			"notification_id", n.ID,
			"error", err,
		)
		return err
	}

	updated, err := c.tracker.Record(ctx, n.ID, outcome)
	if err != nil {
		c.logger.Error("failed to record delivery outcome",
			"notification_id", n.ID,
			"outcome", outcome.Status,
			"error", err,
		)
		return err
	}

	switch updated.Status {
	case StatusSent:
		c.logger.Info("notification sent",
			"notification_id", n.ID,
			"kind", n.Kind,
			"channels", outcome.Succeeded(),
		)
		return nil
	case StatusFailedPermanent:
		c.logger.Error("notification failed permanently",
			"notification_id", n.ID,
			"kind", n.Kind,
			"retry_count", updated.RetryCount,
			"last_error", updated.LastError,
		)
		return nil
	case StatusFailed:
		c.logger.Warn("notification delivery failed",
			"notification_id", n.ID,
			"kind", n.Kind,
			"retry_count", updated.RetryCount,
			"failed_channels", outcome.Failed(),
			"succeeded_channels", outcome.Succeeded(),
		)
		return &DeliveryFailedError{
			NotificationID: n.ID,
			RetryCount:     updated.RetryCount,
			Err:            outcome.Err(),
		}
	}
	return nil
}

func eventResult(err error) string {
	var failed *DeliveryFailedError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &failed):
		return "failed"
	default:
		return "error"
	}
}
