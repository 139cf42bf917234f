package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newNotification(key string) *notification.Notification {
	return &notification.Notification{
		CorrelationKey: key,
		Kind:           notification.KindApplicationReceived,
		RecipientID:    "cand-1",
		RecipientEmail: "ana@example.test",
		Subject:        "Application Received - Engineer at Acme",
		Content:        "Dear Ana",
		Metadata:       map[string]any{"position": "Engineer"},
	}
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := newNotification("evt-1")
	require.NoError(t, s.Create(ctx, n))
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, notification.StatusPending, n.Status)

	got, err := s.GetByID(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "evt-1", got.CorrelationKey)
	assert.Equal(t, notification.KindApplicationReceived, got.Kind)
	assert.Equal(t, "ana@example.test", got.RecipientEmail)
	assert.Equal(t, "Engineer", got.Metadata["position"])
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.SentAt)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))

	byKey, err := s.GetByCorrelationKey(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, n.ID, byKey.ID)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetByCorrelationKey(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_CreateDuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newNotification("evt-1")))

	err := s.Create(ctx, newNotification("evt-1"))
	var conflict *common.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestSQLiteStore_ApplyTransitionCompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := newNotification("evt-1")
	require.NoError(t, s.Create(ctx, n))

	now := time.Now().UTC()
	tr := &notification.Transition{
		NotificationID: n.ID,
		FromStatus:     notification.StatusPending,
		FromRetryCount: 0,
		ToStatus:       notification.StatusFailed,
		RetryCount:     1,
		LastError:      "email: boom",
		UpdatedAt:      now,
	}

	ok, err := s.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same origin again: the row has moved on.
	ok, err = s.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.False(t, ok)

	sentAt := now.Add(time.Second)
	ok, err = s.ApplyTransition(ctx, &notification.Transition{
		NotificationID: n.ID,
		FromStatus:     notification.StatusFailed,
		FromRetryCount: 1,
		ToStatus:       notification.StatusSent,
		RetryCount:     1,
		SentAt:         &sentAt,
		UpdatedAt:      sentAt,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.LastError)
	require.NotNil(t, got.SentAt)
	assert.True(t, sentAt.Equal(*got.SentAt))
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		n := newNotification(fmt.Sprintf("evt-%d", i))
		if i%2 == 1 {
			n.Kind = notification.KindOfferExtended
		}
		require.NoError(t, s.Create(ctx, n))
	}

	items, total, err := s.List(ctx, notification.ListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 2)

	items, total, err = s.List(ctx, notification.ListFilter{Kind: string(notification.KindOfferExtended)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, counts[notification.StatusPending])
	assert.Zero(t, counts[notification.StatusSent])
}

func TestSQLiteStore_ListRetryable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := newNotification("evt-pending")
	require.NoError(t, s.Create(ctx, pending))

	sent := newNotification("evt-sent")
	require.NoError(t, s.Create(ctx, sent))
	now := time.Now().UTC()
	ok, err := s.ApplyTransition(ctx, &notification.Transition{
		NotificationID: sent.ID,
		FromStatus:     notification.StatusPending,
		ToStatus:       notification.StatusSent,
		SentAt:         &now,
		UpdatedAt:      now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	items, err := s.ListRetryable(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)

	items, err = s.ListRetryable(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteStore_ConcurrentTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := newNotification("evt-1")
	require.NoError(t, s.Create(ctx, n))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ApplyTransition(ctx, &notification.Transition{
				NotificationID: n.ID,
				FromStatus:     notification.StatusPending,
				ToStatus:       notification.StatusFailed,
				RetryCount:     1,
				LastError:      "boom",
				UpdatedAt:      time.Now().UTC(),
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Config{Driver: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.NoError(t, b.Ping(ctx))

	_, err = Open(ctx, Config{Driver: "mongo"}, nil)
	assert.ErrorContains(t, err, `unknown store driver: "mongo"`)
}
