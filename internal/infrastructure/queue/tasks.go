// Package queue delivers overdue reminders through an asynq task queue.
// Tasks carry the overdue event as a codec envelope and use the event's
// idempotency key as the asynq task ID.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/hibiken/asynq"
)

const (
	// TaskTypeReminderSend is the asynq task type for overdue reminders
	TaskTypeReminderSend = "ledger:reminder:send"

	// DefaultQueue is the queue reminders are enqueued on
	DefaultQueue = "reminders"

	// DefaultRetention keeps completed tasks so a repeated task ID is still
	// rejected after the first delivery finished
	DefaultRetention = 7 * 24 * time.Hour
)

// Reminder is what a ReminderSender needs to notify a counterparty
type Reminder struct {
	IdempotencyKey  string
	TenantID        string
	DocumentID      string
	DocumentNumber  string
	Kind            ledger.DocumentKind
	CounterpartyRef string
	Currency        string
	BalanceAmount   string
	DueDate         time.Time
	DaysOverdue     int
}

// ReminderFromEvent builds a Reminder from an overdue event
func ReminderFromEvent(evt *ledger.DocumentOverdueEvent) Reminder {
	return Reminder{
		IdempotencyKey:  evt.IdempotencyKey(),
		TenantID:        evt.TenantID().String(),
		DocumentID:      evt.DocumentID.String(),
		DocumentNumber:  evt.DocumentNumber,
		Kind:            evt.Kind,
		CounterpartyRef: evt.CounterpartyRef,
		Currency:        evt.Currency,
		BalanceAmount:   evt.BalanceAmount.StringFixed(2),
		DueDate:         evt.DueDate,
		DaysOverdue:     evt.DaysOverdue,
	}
}

// ReminderSender delivers a reminder to the counterparty
type ReminderSender interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// NewReminderTask wraps evt in an asynq task keyed by its idempotency key
func NewReminderTask(codec *event.Codec, evt *ledger.DocumentOverdueEvent, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := codec.Encode(evt)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.TaskID(evt.IdempotencyKey())}, opts...)
	return asynq.NewTask(TaskTypeReminderSend, payload, opts...), nil
}

func decodeReminder(codec *event.Codec, t *asynq.Task) (*ledger.DocumentOverdueEvent, error) {
	decoded, err := codec.Decode(t.Payload())
	if err != nil {
		return nil, err
	}
	evt, ok := decoded.(*ledger.DocumentOverdueEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected event %s in %s task", decoded.EventType(), TaskTypeReminderSend)
	}
	return evt, nil
}
