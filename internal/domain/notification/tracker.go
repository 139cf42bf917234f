package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hirenotify/internal/common"
)

const (
	DefaultMaxRetries = 3

	defaultRetryBase = 30 * time.Second
	maxCASAttempts   = 5
)

// ErrTerminalState is returned when a transition is requested from SENT or FAILED_PERMANENT.
var ErrTerminalState = errors.New("notification is in a terminal state")

// Transition is a computed status change, guarded by the state it was computed from.
type Transition struct {
	NotificationID string
	FromStatus     Status
	FromRetryCount int

	ToStatus   Status
	RetryCount int
	LastError  string
	SentAt     *time.Time
	UpdatedAt  time.Time
}

// Apply copies the transition's target fields onto n.
func (t *Transition) Apply(n *Notification) {
	n.Status = t.ToStatus
	n.RetryCount = t.RetryCount
	n.LastError = t.LastError
	n.SentAt = t.SentAt
	n.UpdatedAt = t.UpdatedAt
}

// NextState computes the transition that follows a delivery attempt on cur.
//
//	PENDING|FAILED --success--> SENT              (sentAt=now, lastError cleared)
//	PENDING|FAILED --failure--> FAILED            (retryCount+1, lastError set)
//	PENDING|FAILED --failure--> FAILED_PERMANENT  (when retryCount+1 >= maxRetries)
func NextState(cur *Notification, outcome *DeliveryOutcome, maxRetries int, now time.Time) (*Transition, error) {
	if cur.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if cur.Status != StatusPending && cur.Status != StatusFailed {
		return nil, fmt.Errorf("unexpected status %q", cur.Status)
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	t := &Transition{
		NotificationID: cur.ID,
		FromStatus:     cur.Status,
		FromRetryCount: cur.RetryCount,
		UpdatedAt:      now,
	}

	if outcome.Status == StatusSent {
		sentAt := now
		t.ToStatus = StatusSent
		t.RetryCount = cur.RetryCount
		t.SentAt = &sentAt
		return t, nil
	}

	t.RetryCount = cur.RetryCount + 1
	t.LastError = outcome.ErrorMessage()
	if t.LastError == "" {
		t.LastError = "delivery failed"
	}
	t.ToStatus = StatusFailed
	if t.RetryCount >= maxRetries {
		t.ToStatus = StatusFailedPermanent
	}
	return t, nil
}

// TrackerConfig holds retry bookkeeping settings.
type TrackerConfig struct {
	// MaxRetries is the failed-attempt count at which a notification becomes FAILED_PERMANENT.
	MaxRetries int

	// RetryBase is the first backoff step; each further failure doubles it.
	RetryBase time.Duration
}

// Tracker owns the status and retry counter of every notification. It is the
// only writer of those fields.
type Tracker struct {
	store   NotificationStore
	config  TrackerConfig
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerMetrics sets the metrics sink.
func WithTrackerMetrics(m Metrics) TrackerOption {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a retry/state tracker.
func NewTracker(store NotificationStore, cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	t := &Tracker{
		store:   store,
		config:  cfg,
		metrics: nopMetrics{},
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxRetries returns the configured permanent-failure threshold.
func (t *Tracker) MaxRetries() int {
	return t.config.MaxRetries
}

// Record applies the outcome of a delivery attempt to the stored notification.
//
// The transition is always computed from a fresh read and written with a
// compare-and-set on (status, retry_count); a lost race re-reads and recomputes,
// so concurrent attempts never lose or double an increment. A notification
// already in a terminal state is returned unchanged.
//
// Store failures come back as *common.StoreError, never as a delivery failure.
func (t *Tracker) Record(ctx context.Context, id string, outcome *DeliveryOutcome) (*Notification, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := t.store.GetByID(ctx, id)
		if err != nil {
			return nil, common.NewStoreError("get", err)
		}
		if cur == nil {
			return nil, common.NewNotFoundError("notification", id)
		}

		tr, err := NextState(cur, outcome, t.config.MaxRetries, t.now())
		if errors.Is(err, ErrTerminalState) {
			t.logger.Warn("outcome ignored for terminal notification",
				"notification_id", id,
				"status", cur.Status,
				"outcome", outcome.Status,
			)
			return cur, nil
		}
		if err != nil {
			return nil, fmt.Errorf("computing transition for %s: %w", id, err)
		}

		applied, err := t.store.ApplyTransition(ctx, tr)
		if err != nil {
			return nil, common.NewStoreError("apply transition", err)
		}
		if !applied {
			t.logger.Debug("transition lost race, retrying",
				"notification_id", id,
				"from_status", tr.FromStatus,
				"from_retry_count", tr.FromRetryCount,
			)
			continue
		}

		tr.Apply(cur)
		t.metrics.ObserveTransition(cur.Status)
		t.logger.Info("notification status updated",
			"notification_id", id,
			"from", tr.FromStatus,
			"to", tr.ToStatus,
			"retry_count", tr.RetryCount,
		)
		return cur, nil
	}

	return nil, common.NewConflictError("notification", id)
}

// NextAttemptAt returns when a FAILED notification becomes due again:
// UpdatedAt + RetryBase * 2^(RetryCount-1). Other statuses are due at UpdatedAt.
func (t *Tracker) NextAttemptAt(n *Notification) time.Time {
	if n.Status != StatusFailed || n.RetryCount < 1 {
		return n.UpdatedAt
	}
	shift := n.RetryCount - 1
	if shift > 16 {
		shift = 16
	}
	return n.UpdatedAt.Add(t.config.RetryBase * time.Duration(1<<uint(shift)))
}

// Due reports whether n may be attempted again at now.
func (t *Tracker) Due(n *Notification, now time.Time) bool {
	if n.Status.IsTerminal() {
		return false
	}
	return !now.Before(t.NextAttemptAt(n))
}
