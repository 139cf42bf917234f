package notification

import "time"

// Status represents the delivery lifecycle state of a notification.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSent            Status = "SENT"
	StatusFailed          Status = "FAILED"
	StatusFailedPermanent Status = "FAILED_PERMANENT"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusSent, StatusFailed, StatusFailedPermanent}

// IsTerminal reports whether no further delivery attempts follow this status.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailedPermanent
}

// IsValid checks whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusFailedPermanent:
		return true
	}
	return false
}

// Notification is the persisted unit of outbound communication.
//
// Status, RetryCount, LastError and SentAt are owned by the Tracker; nothing
// else writes them once the record exists.
type Notification struct {
	ID             string         `json:"id"`
	CorrelationKey string         `json:"correlation_key,omitempty"`
	Kind           Kind           `json:"kind"`
	RecipientID    string         `json:"recipient_id"`
	RecipientEmail string         `json:"recipient_email,omitempty"`
	Subject        string         `json:"subject"`
	Content        string         `json:"content"`
	HTMLContent    string         `json:"html_content,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         Status         `json:"status"`
	LastError      string         `json:"last_error,omitempty"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
}

// Payload builds the channel-agnostic payload handed to delivery channels.
func (n *Notification) Payload() *Payload {
	return &Payload{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		RecipientEmail: n.RecipientEmail,
		Subject:        n.Subject,
		Content:        n.Content,
		HTMLContent:    n.HTMLContent,
		Metadata:       n.Metadata,
	}
}

// ListFilter defines pagination and filtering options for listing notifications.
type ListFilter struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	Status      string `form:"status"`
	Kind        string `form:"kind"`
	RecipientID string `form:"recipient_id"`
}

// Normalize applies the default page and page size.
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
}

// Offset returns the zero-based row offset of the current page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ListResponse wraps a paginated list of notifications.
type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

// StatsResponse reports how many notifications sit in each status.
type StatsResponse struct {
	Counts map[Status]int `json:"counts"`
	Total  int            `json:"total"`
}
