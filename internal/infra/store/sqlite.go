package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

var _ notification.NotificationStore = (*SQLiteStore)(nil)

// sqliteTime is a fixed-width UTC layout, so string order is time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// migration represents a single schema migration step.
type migration struct {
	version int
	sql     string
}

// sqliteMigrations holds all schema migrations in order. Each is applied
// exactly once, tracked by the schema_migrations table.
var sqliteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE notifications (
    id              TEXT PRIMARY KEY,
    correlation_key TEXT UNIQUE,
    kind            TEXT NOT NULL,
    recipient_id    TEXT NOT NULL,
    recipient_email TEXT,
    subject         TEXT NOT NULL,
    content         TEXT NOT NULL,
    html_content    TEXT,
    metadata        TEXT NOT NULL DEFAULT '{}',
    status          TEXT NOT NULL DEFAULT 'PENDING'
                    CHECK (status IN ('PENDING', 'SENT', 'FAILED', 'FAILED_PERMANENT')),
    last_error      TEXT,
    retry_count     INTEGER NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    sent_at         TEXT
);
CREATE INDEX idx_notifications_status_updated ON notifications(status, updated_at);
CREATE INDEX idx_notifications_recipient ON notifications(recipient_id);
CREATE INDEX idx_notifications_created ON notifications(created_at);
`,
	},
}

// SQLiteStore implements NotificationStore on a single SQLite connection.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer; serialize all access through one connection.
	// This also keeps a ":memory:" database alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := runSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("querying current schema version: %w", err)
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if err := applySQLiteMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

// applySQLiteMigration runs a single schema migration inside a transaction.
func applySQLiteMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}

// Ping checks the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new notification.
func (s *SQLiteStore) Create(ctx context.Context, n *notification.Notification) error {
	prepareInsert(n, time.Now().UTC())

	metadata, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, correlation_key, kind, recipient_id, recipient_email, subject,
			content, html_content, metadata, status, last_error, retry_count, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?, ?)`,
		n.ID, n.CorrelationKey, string(n.Kind), n.RecipientID, n.RecipientEmail, n.Subject,
		n.Content, n.HTMLContent, string(metadata), string(n.Status), n.LastError, n.RetryCount,
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.NewConflictError("notification", n.CorrelationKey)
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil if absent.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = ?`, id)
	return scanSQLiteOne(row)
}

// GetByCorrelationKey retrieves the notification created for an event.
func (s *SQLiteStore) GetByCorrelationKey(ctx context.Context, key string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notifications WHERE correlation_key = ?`, key)
	return scanSQLiteOne(row)
}

// ApplyTransition performs a compare-and-set on (status, retry_count).
func (s *SQLiteStore) ApplyTransition(ctx context.Context, t *notification.Transition) (bool, error) {
	var sentAt any
	if t.SentAt != nil {
		sentAt = formatTime(*t.SentAt)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, retry_count = ?, last_error = NULLIF(?, ''), sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND retry_count = ?`,
		string(t.ToStatus), t.RetryCount, t.LastError, sentAt, formatTime(t.UpdatedAt),
		t.NotificationID, string(t.FromStatus), t.FromRetryCount,
	)
	if err != nil {
		return false, fmt.Errorf("updating notification status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected == 1, nil
}

// List retrieves notifications with pagination and filtering.
func (s *SQLiteStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	filter.Normalize()
	where, args := listWhere(filter, func(int) string { return "?" })

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM notifications`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	items, err := scanSQLiteRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListRetryable retrieves PENDING or FAILED notifications untouched since olderThan.
func (s *SQLiteStore) ListRetryable(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM notifications
		WHERE status IN ('PENDING', 'FAILED') AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?`, formatTime(olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("listing retryable notifications: %w", err)
	}
	return scanSQLiteRows(rows)
}

// CountByStatus returns the number of notifications per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[notification.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting notifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[notification.Status]int, len(notification.AllStatuses))
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[notification.Status(status)] = count
	}
	return counts, rows.Err()
}

func scanSQLiteOne(row *sql.Row) (*notification.Notification, error) {
	n, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}
	return n, nil
}

func scanSQLiteRows(rows *sql.Rows) ([]*notification.Notification, error) {
	defer rows.Close()

	var items []*notification.Notification
	for rows.Next() {
		n, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*notification.Notification, error) {
	var (
		n                                              notification.Notification
		correlationKey, email, html, lastError, sentAt sql.NullString
		kind, status, metadata, createdAt, updatedAt   string
	)
	err := row.Scan(&n.ID, &correlationKey, &kind, &n.RecipientID, &email, &n.Subject, &n.Content,
		&html, &metadata, &status, &lastError, &n.RetryCount, &createdAt, &updatedAt, &sentAt)
	if err != nil {
		return nil, err
	}

	n.CorrelationKey = correlationKey.String
	n.RecipientEmail = email.String
	n.HTMLContent = html.String
	n.LastError = lastError.String
	n.Kind = notification.Kind(kind)
	n.Status = notification.Status(status)

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return nil, err
		}
		n.SentAt = &t
	}
	if n.Metadata, err = unmarshalMetadata([]byte(metadata)); err != nil {
		return nil, err
	}
	return &n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
