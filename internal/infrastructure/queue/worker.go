package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReminderHandler processes TaskTypeReminderSend tasks
type ReminderHandler struct {
	codec  *event.Codec
	sender ReminderSender
	logger *zap.Logger
}

// NewReminderHandler creates the task handler
func NewReminderHandler(codec *event.Codec, sender ReminderSender, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{codec: codec, sender: sender, logger: logger}
}

// ProcessTask decodes the overdue event and hands it to the sender.
// Undecodable payloads are not retried.
func (h *ReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	ctx = logger.WithJob(ctx, TaskTypeReminderSend)
	evt, err := decodeReminder(h.codec, t)
	if err != nil {
		logger.WithLogger(ctx, h.logger).Error("Dropping malformed reminder task", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	ctx = logger.WithTenantID(ctx, evt.TenantID())
	ctx, span := telemetry.StartSpan(ctx, "ledger.reminder.send",
		telemetry.AttrDocumentID.String(evt.DocumentID.String()),
		attribute.String("ledger.idempotency_key", evt.IdempotencyKey()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	return h.sender.SendReminder(ctx, ReminderFromEvent(evt))
}

// WorkerConfig configures the asynq server
type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Queue       string
	Concurrency int
}

// Worker runs the asynq server for reminder tasks
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker builds the asynq server and registers the reminder handler
func NewWorker(cfg WorkerConfig, handler *ReminderHandler, logger *zap.Logger) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      asynqLogger{logger.Sugar()},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("Task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeReminderSend, handler)
	return &Worker{server: server, mux: mux, logger: logger}
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start reminder worker: %w", err)
	}
	w.logger.Info("Reminder worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("Reminder worker stopped")
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

type asynqLogger struct {
	s *zap.SugaredLogger
}

func (l asynqLogger) Debug(args ...any) { l.s.Debug(args...) }
func (l asynqLogger) Info(args ...any)  { l.s.Info(args...) }
func (l asynqLogger) Warn(args ...any)  { l.s.Warn(args...) }
func (l asynqLogger) Error(args ...any) { l.s.Error(args...) }
func (l asynqLogger) Fatal(args ...any) { l.s.Fatal(args...) }
