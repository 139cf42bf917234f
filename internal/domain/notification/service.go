package notification

import (
	"context"
	"fmt"
	"log/slog"

	"hirenotify/internal/common"
)

// Enqueuer defines the contract for enqueuing hiring work.
// This allows the service to be decoupled from the specific queue implementation.
type Enqueuer interface {
	EnqueueHiringEvent(ctx context.Context, event *HiringEvent) error
	EnqueueRedeliver(ctx context.Context, notificationID string) error
}

// PublishResponse is returned when an event is accepted for processing.
type PublishResponse struct {
	CorrelationKey string `json:"correlation_key"`
	Kind           Kind   `json:"kind"`
	Status         string `json:"status"`
}

// Service exposes the query side of the engine and the event intake.
type Service struct {
	store    NotificationStore
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService creates a new notification service.
func NewService(store NotificationStore, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// PublishEvent validates a hiring event and enqueues it for the workers.
func (s *Service) PublishEvent(ctx context.Context, event *HiringEvent) (*PublishResponse, error) {
	kind, err := event.Validate()
	if err != nil {
		return nil, err
	}

	if err := s.enqueuer.EnqueueHiringEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("enqueuing hiring event: %w", err)
	}

	key := event.CorrelationKey()
	s.logger.Info("hiring event enqueued",
		"correlation_key", key,
		"kind", kind,
		"recipient_id", event.RecipientID(),
	)

	return &PublishResponse{
		CorrelationKey: key,
		Kind:           kind,
		Status:         "accepted",
	}, nil
}

// GetNotification retrieves a notification by ID.
func (s *Service) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", id)
	}
	return n, nil
}

// ListNotifications retrieves notifications with pagination and filtering.
func (s *Service) ListNotifications(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.Normalize()
	if filter.Status != "" && !Status(filter.Status).IsValid() {
		return nil, common.NewValidationError(fmt.Sprintf("unknown status: %s", filter.Status))
	}
	if filter.Kind != "" && !IsValidKind(Kind(filter.Kind)) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown kind: %s", filter.Kind))
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if items == nil {
		items = []*Notification{}
	}

	return &ListResponse{
		Notifications: items,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}

// Stats returns the number of notifications in each status.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting notifications: %w", err)
	}

	resp := &StatsResponse{Counts: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		resp.Counts[st] = counts[st]
		resp.Total += counts[st]
	}
	return resp, nil
}
