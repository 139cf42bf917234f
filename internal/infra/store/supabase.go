package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

var _ notification.NotificationStore = (*SupabaseStore)(nil)

// SupabaseStore implements NotificationStore using the Supabase Go SDK.
// The table schema matches migrations/postgres.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed notification store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// Ping issues a head-only request against the notifications table.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if _, _, err := s.client.From(tableName).Select("id", "", true).Limit(1, "").Execute(); err != nil {
		return fmt.Errorf("supabase unreachable: %w", err)
	}
	return nil
}

// Close is a no-op; PostgREST calls are plain HTTP.
func (s *SupabaseStore) Close() error { return nil }

// supabaseRow is the internal representation for Supabase PostgREST insert/update.
type supabaseRow struct {
	ID             string         `json:"id"`
	CorrelationKey *string        `json:"correlation_key,omitempty"`
	Kind           string         `json:"kind"`
	RecipientID    string         `json:"recipient_id"`
	RecipientEmail *string        `json:"recipient_email,omitempty"`
	Subject        string         `json:"subject"`
	Content        string         `json:"content"`
	HTMLContent    *string        `json:"html_content,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         string         `json:"status"`
	LastError      *string        `json:"last_error,omitempty"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	SentAt         *string        `json:"sent_at,omitempty"`
}

// Create inserts a new notification record.
func (s *SupabaseStore) Create(ctx context.Context, n *notification.Notification) error {
	prepareInsert(n, time.Now().UTC())

	row := supabaseRow{
		ID:          n.ID,
		Kind:        string(n.Kind),
		RecipientID: n.RecipientID,
		Subject:     n.Subject,
		Content:     n.Content,
		Metadata:    n.Metadata,
		Status:      string(n.Status),
		RetryCount:  n.RetryCount,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   n.UpdatedAt.Format(time.RFC3339Nano),
	}
	if n.CorrelationKey != "" {
		row.CorrelationKey = &n.CorrelationKey
	}
	if n.RecipientEmail != "" {
		row.RecipientEmail = &n.RecipientEmail
	}
	if n.HTMLContent != "" {
		row.HTMLContent = &n.HTMLContent
	}

	_, _, err := s.client.From(tableName).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		if isPostgrestDuplicate(err) {
			return common.NewConflictError("notification", n.CorrelationKey)
		}
		return fmt.Errorf("inserting notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil if absent.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	return s.getOne("id", id)
}

// GetByCorrelationKey retrieves the notification created for an event.
// Returns nil, nil if absent.
func (s *SupabaseStore) GetByCorrelationKey(ctx context.Context, key string) (*notification.Notification, error) {
	return s.getOne("correlation_key", key)
}

func (s *SupabaseStore) getOne(column, value string) (*notification.Notification, error) {
	data, _, err := s.client.From(tableName).Select("*", "", false).Eq(column, value).Limit(1, "").Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification by %s: %w", column, err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ApplyTransition updates the row only while status and retry_count still
// match the transition's origin.
func (s *SupabaseStore) ApplyTransition(ctx context.Context, t *notification.Transition) (bool, error) {
	update := map[string]any{
		"status":      string(t.ToStatus),
		"retry_count": t.RetryCount,
		"last_error":  nullable(t.LastError),
		"updated_at":  t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"sent_at":     nil,
	}
	if t.SentAt != nil {
		update["sent_at"] = t.SentAt.UTC().Format(time.RFC3339Nano)
	}

	data, _, err := s.client.From(tableName).
		Update(update, "representation", "").
		Eq("id", t.NotificationID).
		Eq("status", string(t.FromStatus)).
		Eq("retry_count", strconv.Itoa(t.FromRetryCount)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("updating notification status: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("parsing update response: %w", err)
	}
	return len(rows) == 1, nil
}

// List retrieves notifications with pagination and filtering.
func (s *SupabaseStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	filter.Normalize()
	offset := filter.Offset()

	query := s.client.From(tableName).Select("*", "exact", false)

	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Eq("kind", filter.Kind)
	}
	if filter.RecipientID != "" {
		query = query.Eq("recipient_id", filter.RecipientID)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	items, err := decodeRows(data)
	if err != nil {
		return nil, 0, err
	}
	return items, int(count), nil
}

// ListRetryable retrieves PENDING or FAILED notifications untouched since olderThan.
func (s *SupabaseStore) ListRetryable(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	data, _, err := s.client.From(tableName).
		Select("*", "", false).
		In("status", []string{string(notification.StatusPending), string(notification.StatusFailed)}).
		Lt("updated_at", olderThan.UTC().Format(time.RFC3339Nano)).
		Order("updated_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing retryable notifications: %w", err)
	}

	return decodeRows(data)
}

// CountByStatus issues one head-only count query per status.
func (s *SupabaseStore) CountByStatus(ctx context.Context) (map[notification.Status]int, error) {
	counts := make(map[notification.Status]int, len(notification.AllStatuses))
	for _, st := range notification.AllStatuses {
		_, count, err := s.client.From(tableName).Select("id", "exact", true).Eq("status", string(st)).Execute()
		if err != nil {
			return nil, fmt.Errorf("counting %s notifications: %w", st, err)
		}
		counts[st] = int(count)
	}
	return counts, nil
}

func decodeRows(data []byte) ([]*notification.Notification, error) {
	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notifications: %w", err)
	}

	items := make([]*notification.Notification, len(rows))
	for i := range rows {
		items[i] = rowToNotification(&rows[i])
	}
	return items, nil
}

// rowToNotification converts a supabaseRow to a Notification.
func rowToNotification(row *supabaseRow) *notification.Notification {
	n := &notification.Notification{
		ID:          row.ID,
		Kind:        notification.Kind(row.Kind),
		RecipientID: row.RecipientID,
		Subject:     row.Subject,
		Content:     row.Content,
		Metadata:    row.Metadata,
		Status:      notification.Status(row.Status),
		RetryCount:  row.RetryCount,
	}

	if row.CorrelationKey != nil {
		n.CorrelationKey = *row.CorrelationKey
	}
	if row.RecipientEmail != nil {
		n.RecipientEmail = *row.RecipientEmail
	}
	if row.HTMLContent != nil {
		n.HTMLContent = *row.HTMLContent
	}
	if row.LastError != nil {
		n.LastError = *row.LastError
	}

	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		n.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		n.UpdatedAt = t
	}
	if row.SentAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.SentAt); err == nil {
			n.SentAt = &t
		}
	}

	return n
}

// isPostgrestDuplicate reports a unique-constraint violation surfaced by PostgREST.
func isPostgrestDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
