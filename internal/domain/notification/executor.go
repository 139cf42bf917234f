package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hirenotify/internal/common"

	"golang.org/x/sync/errgroup"
)

const defaultChannelTimeout = 30 * time.Second

// ChannelResult is the outcome of one channel within a delivery attempt.
type ChannelResult struct {
	Channel ChannelKind   `json:"channel"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// DeliveryOutcome aggregates every channel result of one delivery attempt.
// Status is SENT only when every routed channel succeeded.
type DeliveryOutcome struct {
	Status  Status
	Results []ChannelResult
}

// Err joins the per-channel errors, or returns nil on success.
func (o *DeliveryOutcome) Err() error {
	var errs []error
	for _, r := range o.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// ErrorMessage flattens the joined error onto one line for persistence.
func (o *DeliveryOutcome) ErrorMessage() string {
	err := o.Err()
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

// Succeeded lists the channels that accepted the payload.
func (o *DeliveryOutcome) Succeeded() []ChannelKind {
	var out []ChannelKind
	for _, r := range o.Results {
		if r.Err == nil {
			out = append(out, r.Channel)
		}
	}
	return out
}

// Failed lists the channels that rejected the payload.
func (o *DeliveryOutcome) Failed() []ChannelKind {
	var out []ChannelKind
	for _, r := range o.Results {
		if r.Err != nil {
			out = append(out, r.Channel)
		}
	}
	return out
}

// ExecutorConfig holds delivery executor settings.
type ExecutorConfig struct {
	// DevMode prepends the console channel to every routing decision.
	DevMode bool

	// ChannelTimeout bounds a single channel send; a channel still running
	// after it is counted as failed.
	ChannelTimeout time.Duration
}

// Executor fans a notification out to its routed channels and aggregates the results.
// It never persists anything; callers hand the outcome to the Tracker.
type Executor struct {
	router   *ChannelRouter
	registry *ChannelRegistry
	roles    RoleResolver
	config   ExecutorConfig
	metrics  Metrics
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRoleResolver replaces the kind-based recipient role lookup.
func WithRoleResolver(r RoleResolver) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.roles = r
		}
	}
}

// WithExecutorMetrics sets the metrics sink.
func WithExecutorMetrics(m Metrics) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates a delivery executor.
func NewExecutor(router *ChannelRouter, registry *ChannelRegistry, cfg ExecutorConfig, opts ...ExecutorOption) *Executor {
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = defaultChannelTimeout
	}
	e := &Executor{
		router:   router,
		registry: registry,
		roles:    KindRoleResolver,
		config:   cfg,
		metrics:  nopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver sends the notification to every routed channel concurrently and waits
// for all of them. The returned error is reserved for configuration defects
// (an unresolvable channel); channel failures are reported in the outcome.
func (e *Executor) Deliver(ctx context.Context, n *Notification) (*DeliveryOutcome, error) {
	payload := n.Payload()
	role := e.roles(n)
	kinds := e.router.Route(role, n.Kind, e.config.DevMode)

	channels := make([]DeliveryChannel, len(kinds))
	for i, k := range kinds {
		ch, err := e.registry.Resolve(k)
		if err != nil {
			return nil, fmt.Errorf("resolving channels for notification %s: %w", n.ID, err)
		}
		channels[i] = ch
	}

	// The group is fan-in only: each send records its error in results and
	// returns nil, so one failing channel never cancels the others.
	results := make([]ChannelResult, len(kinds))
	var g errgroup.Group
	for i := range kinds {
		g.Go(func() error {
			results[i] = e.send(ctx, kinds[i], channels[i], payload)
			return nil
		})
	}
	_ = g.Wait()

	outcome := &DeliveryOutcome{Status: StatusSent, Results: results}
	for _, r := range results {
		if r.Err != nil {
			outcome.Status = StatusFailed
			break
		}
	}

	e.logger.Debug("delivery attempt finished",
		"notification_id", n.ID,
		"role", role,
		"channels", kinds,
		"status", outcome.Status,
		"failed", outcome.Failed(),
	)

	return outcome, nil
}

// send runs one channel under the per-channel timeout.
func (e *Executor) send(ctx context.Context, kind ChannelKind, ch DeliveryChannel, payload *Payload) ChannelResult {
	start := time.Now()
	result := ChannelResult{Channel: kind}

	if ac, ok := ch.(AddressedChannel); ok && ac.RequiresRecipientEmail() && payload.RecipientEmail == "" {
		result.Err = common.NewMissingRecipientAddressError(string(kind), "recipient_email")
		e.metrics.ObserveChannelSend(kind, result.Err, 0)
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.config.ChannelTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("channel panicked: %v", p)
			}
		}()
		done <- ch.Send(sendCtx, payload)
	}()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = fmt.Errorf("send aborted: %w", sendCtx.Err())
	}

	if err != nil {
		var missing *common.MissingRecipientAddressError
		if !errors.As(err, &missing) {
			err = common.NewChannelSendError(string(kind), err)
		}
		result.Err = err
	}
	result.Elapsed = time.Since(start)
	e.metrics.ObserveChannelSend(kind, result.Err, result.Elapsed)

	return result
}
