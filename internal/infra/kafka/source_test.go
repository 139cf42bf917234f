package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hirenotify/internal/domain/notification"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (h *flakyHandler) Handle(ctx context.Context, e *notification.HiringEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return &notification.DeliveryFailedError{NotificationID: "n-1", RetryCount: h.calls, Err: errors.New("boom")}
	}
	return nil
}

const validEvent = `{"type":"application.received","candidateEmail":"ana@example.test","position":"Engineer","company":"Acme"}`

func runSource(t *testing.T, s *Source, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, until, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSource_RetriesUntilAcknowledged(t *testing.T) {
	reader := &fakeReader{msgs: []kafkago.Message{{Offset: 7, Value: []byte(validEvent)}}}
	handler := &flakyHandler{failures: 2}

	s := NewSource(reader, handler, nil)
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	runSource(t, s, func() bool { return len(reader.Committed()) == 1 })

	assert.Equal(t, []int64{7}, reader.Committed())
	assert.Equal(t, 3, handler.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestSource_CommitsInvalidEvents(t *testing.T) {
	reader := &fakeReader{msgs: []kafkago.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: []byte(`{"type":"offer.extended"}`)},
		{Offset: 3, Value: []byte(validEvent)},
	}}
	handler := &flakyHandler{}

	runSource(t, NewSource(reader, handler, nil), func() bool { return len(reader.Committed()) == 3 })

	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())
	assert.Equal(t, 1, handler.calls)
}
