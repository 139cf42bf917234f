package console

import (
	"context"
	"log/slog"

	"hirenotify/internal/domain/notification"
)

var _ notification.DeliveryChannel = (*Channel)(nil)

// Channel writes notifications to the structured log. It is routed first in
// dev mode and never needs a recipient address.
type Channel struct {
	logger *slog.Logger
}

// New creates a console channel that logs through logger.
func New(logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{logger: logger.With("channel", string(notification.ChannelConsole))}
}

// CanHandle reports whether kind is the console channel.
func (c *Channel) CanHandle(kind notification.ChannelKind) bool {
	return kind == notification.ChannelConsole
}

// Send logs the rendered notification.
func (c *Channel) Send(ctx context.Context, p *notification.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "notification delivered",
		"notification_id", p.NotificationID,
		"recipient_id", p.RecipientID,
		"recipient_email", p.RecipientEmail,
		"subject", p.Subject,
		"content", p.Content,
	)
	return nil
}
