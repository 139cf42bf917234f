package notification

import (
	"context"
	"time"
)

// DeliveryChannel defines the contract for a notification transport.
// Implementations live in infra/ (console, email, ...). Channels must be
// idempotent on an identical payload: a retried attempt re-sends to channels
// that already succeeded.
type DeliveryChannel interface {
	// Send delivers the payload over this channel's transport.
	Send(ctx context.Context, payload *Payload) error

	// CanHandle reports whether this channel serves the given channel kind.
	CanHandle(kind ChannelKind) bool
}

// AddressedChannel is implemented by channels that need a recipient email.
// The executor fails such a channel without calling Send when the payload has none.
type AddressedChannel interface {
	RequiresRecipientEmail() bool
}

// TemplateRenderer renders the fixed per-kind content of a notification.
// Implementations live in infra/template/.
type TemplateRenderer interface {
	// Render produces the subject, plain-text body and HTML body for an event.
	Render(kind Kind, data *TemplateData) (subject, text, html string, err error)
}

// Metrics receives dispatch observations. Implementations live in infra/metrics/.
type Metrics interface {
	ObserveChannelSend(channel ChannelKind, err error, elapsed time.Duration)
	ObserveTransition(to Status)
	ObserveEvent(kind Kind, result string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveChannelSend(ChannelKind, error, time.Duration) {}
func (nopMetrics) ObserveTransition(Status) {}
func (nopMetrics) ObserveEvent(Kind, string) {}
