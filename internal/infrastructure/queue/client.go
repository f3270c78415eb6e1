package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the reminder client uses
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// ClientConfig holds enqueue options
type ClientConfig struct {
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// ReminderClient enqueues reminder tasks
type ReminderClient struct {
	enqueuer Enqueuer
	codec    *event.Codec
	config   ClientConfig
	logger   *zap.Logger
}

// NewReminderClient creates a client around an asynq client
func NewReminderClient(enqueuer Enqueuer, codec *event.Codec, cfg ClientConfig, logger *zap.Logger) *ReminderClient {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &ReminderClient{enqueuer: enqueuer, codec: codec, config: cfg, logger: logger}
}

// NewAsynqReminderClient connects an asynq client to Redis
func NewAsynqReminderClient(redis asynq.RedisClientOpt, codec *event.Codec, cfg ClientConfig, logger *zap.Logger) *ReminderClient {
	return NewReminderClient(asynq.NewClient(redis), codec, cfg, logger)
}

// EnqueueReminder enqueues a reminder for evt. A task with the same key
// already known to the queue is not an error; it reports false.
func (c *ReminderClient) EnqueueReminder(ctx context.Context, evt *ledger.DocumentOverdueEvent) (bool, error) {
	task, err := NewReminderTask(c.codec, evt)
	if err != nil {
		return false, err
	}

	opts := []asynq.Option{asynq.Queue(c.config.Queue), asynq.Retention(c.config.Retention)}
	if c.config.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.config.MaxRetry))
	}

	log := logger.WithLogger(ctx, c.logger).With(
		zap.String("idempotency_key", evt.IdempotencyKey()),
		zap.String("document_number", evt.DocumentNumber),
	)
	info, err := c.enqueuer.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		log.Debug("Reminder already enqueued")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	log.Info("Reminder enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return true, nil
}

// Close releases the underlying client
func (c *ReminderClient) Close() error {
	return c.enqueuer.Close()
}

// InlineDispatcher sends reminders synchronously when no queue is configured
type InlineDispatcher struct {
	sender ReminderSender
}

// NewInlineDispatcher creates a dispatcher that calls sender directly
func NewInlineDispatcher(sender ReminderSender) *InlineDispatcher {
	return &InlineDispatcher{sender: sender}
}

// EnqueueReminder sends the reminder now
func (d *InlineDispatcher) EnqueueReminder(ctx context.Context, evt *ledger.DocumentOverdueEvent) (bool, error) {
	if err := d.sender.SendReminder(ctx, ReminderFromEvent(evt)); err != nil {
		return false, err
	}
	return true, nil
}
