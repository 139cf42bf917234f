// Package kafka consumes hiring events from a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	minBackoff = time.Second
	maxBackoff = 5 * time.Minute
)

// Config holds the reader settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Reader is the subset of *kafkago.Reader the source uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventHandler processes one hiring event.
type EventHandler interface {
	Handle(ctx context.Context, event *notification.HiringEvent) error
}

// Source feeds Kafka messages to an EventHandler.
//
// A message is committed once the handler acknowledges it (nil) or rejects it
// as invalid. Any other error keeps the offset where it is and the same
// message is handled again after a capped exponential backoff.
type Source struct {
	reader  Reader
	handler EventHandler
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewReader creates a consumer-group reader.
func NewReader(cfg Config) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// NewSource creates a Source.
func NewSource(reader Reader, handler EventHandler, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		reader:  reader,
		handler: handler,
		logger:  logger.With("component", "kafka"),
		sleep:   sleepCtx,
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (s *Source) Run(ctx context.Context) error {
	s.logger.Info("kafka source started")
	defer s.logger.Info("kafka source stopped")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process handles msg until it can be committed.
func (s *Source) process(ctx context.Context, msg kafkago.Message) error {
	backoff := minBackoff
	for {
		err := s.handle(ctx, msg)
		if err == nil {
			return s.reader.CommitMessages(ctx, msg)
		}

		s.logger.Warn("hiring event will be retried",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"backoff", backoff,
			"error", err,
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// handle returns nil when msg may be committed.
func (s *Source) handle(ctx context.Context, msg kafkago.Message) error {
	event, err := notification.ParseHiringEvent(msg.Value)
	if err == nil {
		err = s.handler.Handle(ctx, event)
	}

	var validation *common.ValidationError
	if errors.As(err, &validation) {
		s.logger.Error("dropping invalid hiring event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
