package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/domain/notification"

	"github.com/hibiken/asynq"
)

const (
	queueName = "notifications"

	maxRetryDelay = time.Hour
)

// RedisOpt builds the asynq connection options.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
}

// ServerConfig holds asynq worker settings.
type ServerConfig struct {
	Concurrency int
	RetryBase   time.Duration
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(opt asynq.RedisClientOpt, cfg ServerConfig, logger *slog.Logger) *asynq.Server {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 30 * time.Second
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			queueName: 10,
			"default": 1,
		},
		RetryDelayFunc: retryDelayFunc(cfg.RetryBase),
		IsFailure: func(err error) bool {
			// A recorded FAILED attempt is expected traffic, not a worker fault.
			var failed *notification.DeliveryFailedError
			return !errors.As(err, &failed)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("task attempt returned error",
				"type", task.Type(),
				"error", err,
			)
		}),
		Logger: newAsynqLogger(logger),
	})
}

// retryDelayFunc backs off on the notification's stored retry count for
// delivery failures. asynq does not count those as failures, so its own
// retried counter stays at zero for them.
func retryDelayFunc(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, _ *asynq.Task) time.Duration {
		var failed *notification.DeliveryFailedError
		if errors.As(err, &failed) && failed.RetryCount > 0 {
			return RetryDelay(base, failed.RetryCount-1)
		}
		return RetryDelay(base, n)
	}
}

// RetryDelay is base * 2^retried, capped at one hour. retried is the number of
// times the task has already been retried.
func RetryDelay(base time.Duration, retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}
	if retried > 16 {
		return maxRetryDelay
	}
	d := base * time.Duration(1<<uint(retried))
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// Client enqueues hiring work. It implements notification.Enqueuer.
type Client struct {
	client   *asynq.Client
	maxRetry int
}

var _ notification.Enqueuer = (*Client)(nil)

// NewClient creates a new asynq client connected to Redis.
func NewClient(opt asynq.RedisClientOpt, maxRetry int) *Client {
	return &Client{client: asynq.NewClient(opt), maxRetry: maxRetry}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueHiringEvent enqueues an inbound hiring event.
func (c *Client) EnqueueHiringEvent(ctx context.Context, event *notification.HiringEvent) error {
	task, err := notification.NewHiringEventTask(event)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	if _, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(c.maxRetry),
		asynq.Queue(queueName),
	); err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return nil
}

// EnqueueRedeliver enqueues a redelivery. At most one redelivery per
// notification is queued at a time.
func (c *Client) EnqueueRedeliver(ctx context.Context, notificationID string) error {
	task, err := notification.NewRedeliverTask(notificationID)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(c.maxRetry),
		asynq.Queue(queueName),
		asynq.TaskID("redeliver:"+notificationID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return nil
}

// EventHandler is the consumer side the mux dispatches to.
type EventHandler interface {
	Handle(ctx context.Context, event *notification.HiringEvent) error
	Redeliver(ctx context.Context, id string) error
}

// NewServeMux registers the task handlers. Errors that can never succeed on
// retry are wrapped with asynq.SkipRetry; everything else is retried by asynq.
func NewServeMux(h EventHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(notification.TaskTypeHiringEvent, func(ctx context.Context, task *asynq.Task) error {
		event, err := notification.ParseHiringEvent(task.Payload())
		if err != nil {
			return skipRetry(err)
		}
		return classify(h.Handle(ctx, event))
	})

	mux.HandleFunc(notification.TaskTypeRedeliver, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseRedeliverPayload(task.Payload())
		if err != nil {
			return skipRetry(err)
		}
		return classify(h.Redeliver(ctx, payload.NotificationID))
	})

	return mux
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var validation *common.ValidationError
	var notFound *common.NotFoundError
	if errors.As(err, &validation) || errors.As(err, &notFound) {
		return skipRetry(err)
	}
	return err
}

func skipRetry(err error) error {
	return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	if l == nil {
		l = slog.Default()
	}
	return &asynqLogger{log: l.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
