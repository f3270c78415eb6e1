package queue

import (
	"context"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogReminderSender writes each reminder as a structured log line. It is
// the default sender when no notification channel is configured.
type LogReminderSender struct {
	logger *zap.Logger
}

// NewLogReminderSender creates a LogReminderSender
func NewLogReminderSender(logger *zap.Logger) *LogReminderSender {
	return &LogReminderSender{logger: logger}
}

// SendReminder logs r
func (s *LogReminderSender) SendReminder(ctx context.Context, r Reminder) error {
	logger.WithLogger(ctx, s.logger).Info("Overdue reminder",
		zap.String("idempotency_key", r.IdempotencyKey),
		zap.String("document_id", r.DocumentID),
		zap.String("document_number", r.DocumentNumber),
		zap.String("kind", string(r.Kind)),
		zap.String("counterparty_ref", r.CounterpartyRef),
		zap.String("balance", r.BalanceAmount),
		zap.String("currency", r.Currency),
		zap.Time("due_date", r.DueDate),
		zap.Int("days_overdue", r.DaysOverdue),
	)
	return nil
}
