// Package store holds the NotificationStore backends: Supabase (PostgREST),
// Postgres (pgx) and SQLite (modernc).
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hirenotify/internal/domain/notification"

	"github.com/google/uuid"
)

const tableName = "notifications"

// Config selects and configures a store backend.
type Config struct {
	Driver      string // supabase, postgres or sqlite
	SQLitePath  string
	PostgresURL string
	Migrate     bool

	SupabaseURL        string
	SupabaseServiceKey string
}

// Backend is a NotificationStore that owns a connection.
type Backend interface {
	notification.NotificationStore
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend, running migrations when asked.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Driver {
	case "supabase":
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresURL, cfg.Migrate, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

// prepareInsert fills the fields Create owns.
func prepareInsert(n *notification.Notification, now time.Time) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = notification.StatusPending
	}
	n.CreatedAt = now
	n.UpdatedAt = now
}
