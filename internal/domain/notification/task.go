package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeHiringEvent carries one inbound hiring event.
	TaskTypeHiringEvent = "hiring:event"

	// TaskTypeRedeliver asks a worker to retry delivery of a stored notification.
	TaskTypeRedeliver = "notification:redeliver"
)

// RedeliverPayload is the serialized payload for a redeliver task.
type RedeliverPayload struct {
	NotificationID string `json:"notification_id"`
}

// NewHiringEventTask creates an asynq task for a hiring event.
func NewHiringEventTask(event *HiringEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling hiring event: %w", err)
	}
	return asynq.NewTask(TaskTypeHiringEvent, payload), nil
}

// NewRedeliverTask creates an asynq task that retries delivery of a notification.
func NewRedeliverTask(notificationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RedeliverPayload{NotificationID: notificationID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeRedeliver, payload), nil
}

// ParseRedeliverPayload deserializes a redeliver task payload.
func ParseRedeliverPayload(data []byte) (*RedeliverPayload, error) {
	var p RedeliverPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.NotificationID == "" {
		return nil, fmt.Errorf("redeliver payload has no notification_id")
	}
	return &p, nil
}
