package notification

import (
	"context"
	"time"
)

// NotificationStore defines the contract for persisting notification records.
// Implementations live in infra/store/ (Supabase, Postgres, SQLite).
type NotificationStore interface {
	// Create inserts a new notification. It assigns ID when empty, sets CreatedAt and UpdatedAt,
	// and returns a *common.ConflictError when the correlation key already exists.
	Create(ctx context.Context, n *Notification) error

	// GetByID retrieves a notification by its ID. Returns nil, nil if absent.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// GetByCorrelationKey retrieves the notification created for an inbound event.
	// Returns nil, nil if absent.
	GetByCorrelationKey(ctx context.Context, key string) (*Notification, error)

	// ApplyTransition writes t only if the stored status and retry count still
	// equal t.FromStatus and t.FromRetryCount. It reports whether the row was updated.
	ApplyTransition(ctx context.Context, t *Transition) (bool, error)

	// List retrieves notifications with pagination and filtering.
	List(ctx context.Context, filter ListFilter) ([]*Notification, int, error)

	// ListRetryable retrieves PENDING or FAILED notifications last updated
	// before olderThan, oldest first.
	ListRetryable(ctx context.Context, olderThan time.Time, limit int) ([]*Notification, error)

	// CountByStatus returns the number of notifications per status.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
