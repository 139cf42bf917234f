package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ notification.NotificationStore = (*PostgresStore)(nil)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

const (
	connectAttempts = 3
	connectInterval = 2 * time.Second

	selectColumns = `id, correlation_key, kind, recipient_id, recipient_email, subject, content,
		html_content, metadata, status, last_error, retry_count, created_at, updated_at, sent_at`
)

// PostgresStore implements NotificationStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects with retry and optionally applies the embedded migrations.
func NewPostgresStore(ctx context.Context, connString string, migrate bool, logger *slog.Logger) (*PostgresStore, error) {
	if connString == "" {
		return nil, errors.New("empty postgres connection string")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := connectPostgres(ctx, connString)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := migratePostgres(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresStore{pool: pool}, nil
}

func connectPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}

	var lastErr error
	for i := range connectAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * connectInterval):
		}
	}
	return nil, fmt.Errorf("connecting to postgres: %w", lastErr)
}

// migratePostgres runs goose against the pool through a database/sql bridge.
func migratePostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	goose.SetBaseFS(postgresMigrations)
	goose.SetLogger(&gooseLogger{log: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose's Printf-style output through slog.
type gooseLogger struct {
	log *slog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Ping checks a pooled connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Create inserts a new notification.
func (s *PostgresStore) Create(ctx context.Context, n *notification.Notification) error {
	prepareInsert(n, time.Now().UTC())

	metadata, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, correlation_key, kind, recipient_id, recipient_email, subject,
			content, html_content, metadata, status, last_error, retry_count, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, NULLIF($11, ''), $12, $13, $14)`,
		n.ID, n.CorrelationKey, string(n.Kind), n.RecipientID, n.RecipientEmail, n.Subject,
		n.Content, n.HTMLContent, metadata, string(n.Status), n.LastError, n.RetryCount, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return common.NewConflictError("notification", n.CorrelationKey)
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil if absent.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = $1`, id)
	return scanPostgresOne(row)
}

// GetByCorrelationKey retrieves the notification created for an event.
func (s *PostgresStore) GetByCorrelationKey(ctx context.Context, key string) (*notification.Notification, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM notifications WHERE correlation_key = $1`, key)
	return scanPostgresOne(row)
}

// ApplyTransition performs a compare-and-set on (status, retry_count).
func (s *PostgresStore) ApplyTransition(ctx context.Context, t *notification.Transition) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, retry_count = $2, last_error = NULLIF($3, ''), sent_at = $4, updated_at = $5
		WHERE id = $6 AND status = $7 AND retry_count = $8`,
		string(t.ToStatus), t.RetryCount, t.LastError, t.SentAt, t.UpdatedAt,
		t.NotificationID, string(t.FromStatus), t.FromRetryCount,
	)
	if err != nil {
		return false, fmt.Errorf("updating notification status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List retrieves notifications with pagination and filtering.
func (s *PostgresStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	filter.Normalize()
	where, args := listWhere(filter, func(i int) string { return fmt.Sprintf("$%d", i) })

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM notifications%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	items, err := scanPostgresRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListRetryable retrieves PENDING or FAILED notifications untouched since olderThan.
func (s *PostgresStore) ListRetryable(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+` FROM notifications
		WHERE status IN ('PENDING', 'FAILED') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing retryable notifications: %w", err)
	}
	return scanPostgresRows(rows)
}

// CountByStatus returns the number of notifications per status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[notification.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
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

func scanPostgresOne(row pgx.Row) (*notification.Notification, error) {
	n, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}
	return n, nil
}

func scanPostgresRows(rows pgx.Rows) ([]*notification.Notification, error) {
	defer rows.Close()

	var items []*notification.Notification
	for rows.Next() {
		n, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func scanPostgres(row pgx.Row) (*notification.Notification, error) {
	var (
		n                                      notification.Notification
		correlationKey, email, html, lastError *string
		kind, status                           string
		metadata                               []byte
		sentAt                                 *time.Time
	)
	err := row.Scan(&n.ID, &correlationKey, &kind, &n.RecipientID, &email, &n.Subject, &n.Content,
		&html, &metadata, &status, &lastError, &n.RetryCount, &n.CreatedAt, &n.UpdatedAt, &sentAt)
	if err != nil {
		return nil, err
	}

	n.CorrelationKey = deref(correlationKey)
	n.RecipientEmail = deref(email)
	n.HTMLContent = deref(html)
	n.LastError = deref(lastError)
	n.Kind = notification.Kind(kind)
	n.Status = notification.Status(status)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	if sentAt != nil {
		t := sentAt.UTC()
		n.SentAt = &t
	}
	if n.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &n, nil
}

// isDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// listWhere builds the WHERE clause shared by the SQL backends; placeholder
// renders the i-th (1-based) bind parameter.
func listWhere(filter notification.ListFilter, placeholder func(i int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = "+placeholder(len(args)))
	}
	add("status", filter.Status)
	add("kind", filter.Kind)
	add("recipient_id", filter.RecipientID)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
