package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReminderDispatcher hands an overdue reminder to whatever delivers it. It
// returns false when the reminder had already been dispatched.
type ReminderDispatcher interface {
	EnqueueReminder(ctx context.Context, evt *ledger.DocumentOverdueEvent) (bool, error)
}

// OverdueReminderHandler handles DocumentOverdueEvent and dispatches one
// reminder per overdue transition. It is meant to be wrapped in an
// idempotent handler keyed on the event's IdempotencyKey.
type OverdueReminderHandler struct {
	dispatcher ReminderDispatcher
	metrics    *telemetry.LedgerMetrics
	logger     *zap.Logger
}

// NewOverdueReminderHandler creates a new handler for overdue events
func NewOverdueReminderHandler(dispatcher ReminderDispatcher, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *OverdueReminderHandler {
	return &OverdueReminderHandler{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *OverdueReminderHandler) EventTypes() []string {
	return []string{ledger.EventTypeDocumentOverdue}
}

// Handle dispatches the reminder for one overdue transition
func (h *OverdueReminderHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	overdue, ok := event.(*ledger.DocumentOverdueEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", ledger.EventTypeDocumentOverdue),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeDocumentOverdue, event.EventType())
	}

	enqueued, err := h.dispatcher.EnqueueReminder(ctx, overdue)
	if err != nil {
		h.logger.Error("failed to dispatch overdue reminder",
			zap.String("document_number", overdue.DocumentNumber),
			zap.String("idempotency_key", overdue.IdempotencyKey()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to dispatch reminder: %w", err)
	}
	if !enqueued {
		h.logger.Info("reminder already dispatched, skipping",
			zap.String("document_number", overdue.DocumentNumber),
			zap.String("idempotency_key", overdue.IdempotencyKey()),
		)
		return nil
	}

	h.metrics.ReminderEnqueued(ctx)
	h.logger.Info("overdue reminder dispatched",
		zap.String("document_id", overdue.DocumentID.String()),
		zap.String("document_number", overdue.DocumentNumber),
		zap.String("counterparty_ref", overdue.CounterpartyRef),
		zap.Int("days_overdue", overdue.DaysOverdue),
	)
	return nil
}

var _ shared.EventHandler = (*OverdueReminderHandler)(nil)
