package email

import (
	"context"
	"fmt"
	"strings"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	"github.com/wneessen/go-mail"
)

var (
	_ notification.DeliveryChannel  = (*SMTPChannel)(nil)
	_ notification.AddressedChannel = (*SMTPChannel)(nil)
)

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Encryption  string // none, starttls or ssl_tls
	FromAddress string
	FromName    string
}

// SMTPChannel delivers email over SMTP using go-mail.
type SMTPChannel struct {
	config SMTPConfig
}

// NewSMTPChannel creates an SMTP email channel.
func NewSMTPChannel(cfg SMTPConfig) *SMTPChannel {
	return &SMTPChannel{config: cfg}
}

// CanHandle reports whether kind is the email channel.
func (c *SMTPChannel) CanHandle(kind notification.ChannelKind) bool {
	return kind == notification.ChannelEmail
}

// RequiresRecipientEmail is always true for email.
func (c *SMTPChannel) RequiresRecipientEmail() bool { return true }

// Send builds a multipart message and delivers it in one SMTP session.
func (c *SMTPChannel) Send(ctx context.Context, p *notification.Payload) error {
	m, err := c.buildMessage(p)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(c.config.Port),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(c.config.Encryption)),
	}
	if c.config.Encryption == "ssl_tls" {
		opts = append(opts, mail.WithSSL())
	}
	if c.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.config.Username),
			mail.WithPassword(c.config.Password),
		)
	}

	client, err := mail.NewClient(c.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return common.NewProviderError("smtp", err.Error())
	}
	return nil
}

func (c *SMTPChannel) buildMessage(p *notification.Payload) (*mail.Msg, error) {
	m := mail.NewMsg()
	if c.config.FromName != "" {
		if err := m.FromFormat(c.config.FromName, c.config.FromAddress); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(c.config.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	if err := m.To(strings.TrimSpace(p.RecipientEmail)); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", p.RecipientEmail, err)
	}

	m.Subject(p.Subject)
	if p.NotificationID != "" {
		m.SetGenHeader(mail.Header("X-Entity-Ref-ID"), p.NotificationID)
	}

	m.SetBodyString(mail.TypeTextPlain, p.Content)
	if p.HTMLContent != "" {
		m.AddAlternativeString(mail.TypeTextHTML, p.HTMLContent)
	}
	return m, nil
}

// tlsPolicyFromEncryption converts the encryption setting to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
