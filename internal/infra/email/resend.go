package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"
)

var (
	_ notification.DeliveryChannel  = (*ResendChannel)(nil)
	_ notification.AddressedChannel = (*ResendChannel)(nil)
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendChannel sends emails using the Resend API.
type ResendChannel struct {
	apiKey      string
	fromAddress string
	fromName    string
	endpoint    string
	httpClient  *http.Client
}

// NewResendChannel creates a new Resend email channel.
func NewResendChannel(apiKey, fromAddress, fromName string) *ResendChannel {
	return &ResendChannel{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		fromName:    fromName,
		endpoint:    resendEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CanHandle reports whether kind is the email channel.
func (c *ResendChannel) CanHandle(kind notification.ChannelKind) bool {
	return kind == notification.ChannelEmail
}

// RequiresRecipientEmail is always true for email.
func (c *ResendChannel) RequiresRecipientEmail() bool { return true }

// Send delivers an email via the Resend API. The notification id is passed as
// the idempotency key so a retried attempt does not send a second copy.
func (c *ResendChannel) Send(ctx context.Context, p *notification.Payload) error {
	from := c.fromAddress
	if c.fromName != "" {
		from = fmt.Sprintf("%s <%s>", c.fromName, c.fromAddress)
	}

	body := map[string]any{
		"from":    from,
		"to":      []string{p.RecipientEmail},
		"subject": p.Subject,
		"text":    p.Content,
	}
	if p.HTMLContent != "" {
		body["html"] = p.HTMLContent
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if p.NotificationID != "" {
		req.Header.Set("Idempotency-Key", p.NotificationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return common.NewProviderError("resend", msg)
	}

	return nil
}
