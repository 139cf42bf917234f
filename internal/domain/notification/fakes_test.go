package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"hirenotify/internal/common"

	"github.com/google/uuid"
)

// memStore is an in-memory NotificationStore with real compare-and-set semantics.
type memStore struct {
	mu    sync.Mutex
	items map[string]*Notification

	getErr   error
	applyErr error
	// lose makes the next N ApplyTransition calls report a lost race.
	lose int
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*Notification)}
}

func clone(n *Notification) *Notification {
	c := *n
	if n.SentAt != nil {
		t := *n.SentAt
		c.SentAt = &t
	}
	return &c
}

func (s *memStore) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if n.CorrelationKey != "" && existing.CorrelationKey == n.CorrelationKey {
			return common.NewConflictError("notification", n.CorrelationKey)
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	s.items[n.ID] = clone(n)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	n, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return clone(n), nil
}

func (s *memStore) GetByCorrelationKey(ctx context.Context, key string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, n := range s.items {
		if n.CorrelationKey == key {
			return clone(n), nil
		}
	}
	return nil, nil
}

func (s *memStore) ApplyTransition(ctx context.Context, t *Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return false, s.applyErr
	}
	if s.lose > 0 {
		s.lose--
		return false, nil
	}
	n, ok := s.items[t.NotificationID]
	if !ok || n.Status != t.FromStatus || n.RetryCount != t.FromRetryCount {
		return false, nil
	}
	t.Apply(n)
	return true, nil
}

func (s *memStore) List(ctx context.Context, f ListFilter) ([]*Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.Normalize()
	var all []*Notification
	for _, n := range s.items {
		if f.Status != "" && string(n.Status) != f.Status {
			continue
		}
		if f.Kind != "" && string(n.Kind) != f.Kind {
			continue
		}
		if f.RecipientID != "" && n.RecipientID != f.RecipientID {
			continue
		}
		all = append(all, clone(n))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := min(f.Offset(), total)
	end := min(start+f.PageSize, total)
	return all[start:end], total, nil
}

func (s *memStore) ListRetryable(ctx context.Context, olderThan time.Time, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.items {
		if (n.Status == StatusPending || n.Status == StatusFailed) && n.UpdatedAt.Before(olderThan) {
			out = append(out, clone(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Status]int)
	for _, n := range s.items {
		counts[n.Status]++
	}
	return counts, nil
}

func (s *memStore) only() *Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		return clone(n)
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// fakeChannel records sends and fails according to fail.
type fakeChannel struct {
	kind         ChannelKind
	needsAddress bool
	delay        time.Duration
	fail         func(call int) error

	calls    atomic.Int32
	inflight atomic.Int32
	maxConc  atomic.Int32
}

func (c *fakeChannel) CanHandle(k ChannelKind) bool { return k == c.kind }

func (c *fakeChannel) RequiresRecipientEmail() bool { return c.needsAddress }

func (c *fakeChannel) Send(ctx context.Context, p *Payload) error {
	call := int(c.calls.Add(1))
	cur := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		m := c.maxConc.Load()
		if cur <= m || c.maxConc.CompareAndSwap(m, cur) {
			break
		}
	}

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.fail != nil {
		return c.fail(call)
	}
	return nil
}

func alwaysFail(msg string) func(int) error {
	return func(call int) error { return errors.New(msg) }
}

// fakeRenderer returns fixed content.
type fakeRenderer struct {
	err error
}

func (r *fakeRenderer) Render(kind Kind, d *TemplateData) (string, string, string, error) {
	if r.err != nil {
		return "", "", "", r.err
	}
	return string(kind) + " - " + d.Position, "Dear " + d.CandidateName, "<p>Dear " + d.CandidateName + "</p>", nil
}

// recordingMetrics counts observations.
type recordingMetrics struct {
	mu          sync.Mutex
	sends       map[ChannelKind]int
	transitions map[Status]int
	events      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		sends:       make(map[ChannelKind]int),
		transitions: make(map[Status]int),
		events:      make(map[string]int),
	}
}

func (m *recordingMetrics) ObserveChannelSend(c ChannelKind, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends[c]++
}

func (m *recordingMetrics) ObserveTransition(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[s]++
}

func (m *recordingMetrics) ObserveEvent(k Kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[result]++
}
