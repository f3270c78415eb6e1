package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names published by the ledger
const (
	EventTypeDocumentCreated       = "ledger.document.created"
	EventTypeDocumentCancelled     = "ledger.document.cancelled"
	EventTypeDocumentStatusChanged = "ledger.document.status_changed"
	EventTypeDocumentOverdue       = "ledger.document.overdue"
	EventTypePaymentReceived       = "ledger.payment.received"
	EventTypePaymentAllocated      = "ledger.payment.allocated"
	EventTypeAllocationReversed    = "ledger.allocation.reversed"
	EventTypeReturnRecorded        = "ledger.return.recorded"
)

// Aggregate type names carried on events
const (
	AggregateTypeDocument = "Document"
	AggregateTypePayment  = "Payment"
)

// DocumentCreatedEvent is raised once a numbered document is persisted
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentID      uuid.UUID       `json:"document_id"`
	DocumentNumber  string          `json:"document_number"`
	Kind            DocumentKind    `json:"kind"`
	CounterpartyRef string          `json:"counterparty_ref"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DueDate         time.Time       `json:"due_date"`
}

// NewDocumentCreatedEvent creates a DocumentCreatedEvent
func NewDocumentCreatedEvent(d *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCreated, AggregateTypeDocument, d.ID, d.TenantID, d.Version),
		DocumentID:      d.ID,
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		CounterpartyRef: d.CounterpartyRef,
		Currency:        d.Currency.String(),
		TotalAmount:     d.TotalAmount,
		DueDate:         d.DueDate,
	}
}

// DocumentStatusChangedEvent is raised on every workflow transition that
// changes the status
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID      `json:"document_id"`
	DocumentNumber string         `json:"document_number"`
	Kind           DocumentKind   `json:"kind"`
	Trigger        DocumentEvent  `json:"trigger"`
	FromStatus     DocumentStatus `json:"from_status"`
	ToStatus       DocumentStatus `json:"to_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
}

// NewDocumentStatusChangedEvent creates a DocumentStatusChangedEvent
func NewDocumentStatusChangedEvent(d *Document, trigger DocumentEvent, from DocumentStatus) *DocumentStatusChangedEvent {
	return &DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStatusChanged, AggregateTypeDocument, d.ID, d.TenantID, d.Version),
		DocumentID:      d.ID,
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		Trigger:         trigger,
		FromStatus:      from,
		ToStatus:        d.Status,
		PaymentStatus:   d.PaymentStatus,
	}
}

// DocumentCancelledEvent is raised when a document is cancelled
type DocumentCancelledEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	Reason         string          `json:"reason"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
}

// NewDocumentCancelledEvent creates a DocumentCancelledEvent
func NewDocumentCancelledEvent(d *Document) *DocumentCancelledEvent {
	return &DocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCancelled, AggregateTypeDocument, d.ID, d.TenantID, d.Version),
		DocumentID:      d.ID,
		DocumentNumber:  d.DocumentNumber,
		Reason:          d.CancelReason,
		PaidAmount:      d.PaidAmount,
	}
}

// DocumentOverdueEvent is raised when the overdue scan transitions a
// document. Reminder handlers key on its IdempotencyKey.
type DocumentOverdueEvent struct {
	shared.BaseDomainEvent
	DocumentID      uuid.UUID       `json:"document_id"`
	DocumentNumber  string          `json:"document_number"`
	Kind            DocumentKind    `json:"kind"`
	CounterpartyRef string          `json:"counterparty_ref"`
	Currency        string          `json:"currency"`
	BalanceAmount   decimal.Decimal `json:"balance_amount"`
	DueDate         time.Time       `json:"due_date"`
	DaysOverdue     int             `json:"days_overdue"`
}

// NewDocumentOverdueEvent creates a DocumentOverdueEvent
func NewDocumentOverdueEvent(d *Document, now time.Time) *DocumentOverdueEvent {
	return &DocumentOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentOverdue, AggregateTypeDocument, d.ID, d.TenantID, d.Version),
		DocumentID:      d.ID,
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		CounterpartyRef: d.CounterpartyRef,
		Currency:        d.Currency.String(),
		BalanceAmount:   d.BalanceAmount,
		DueDate:         d.DueDate,
		DaysOverdue:     d.DaysOverdue(now),
	}
}

// PaymentReceivedEvent is raised when money enters the pool
type PaymentReceivedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID       `json:"payment_id"`
	PayerRef     string          `json:"payer_ref"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Method       PaymentMethod   `json:"method"`
	ReceivedDate time.Time       `json:"received_date"`
}

// NewPaymentReceivedEvent creates a PaymentReceivedEvent
func NewPaymentReceivedEvent(p *Payment) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReceived, AggregateTypePayment, p.ID, p.TenantID, p.Version),
		PaymentID:       p.ID,
		PayerRef:        p.PayerRef,
		Amount:          p.Amount,
		Currency:        p.Currency.String(),
		Method:          p.Method,
		ReceivedDate:    p.ReceivedDate,
	}
}

// PaymentAllocatedEvent is raised when part of a payment is bound to a document
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	AllocationID      uuid.UUID       `json:"allocation_id"`
	PaymentID         uuid.UUID       `json:"payment_id"`
	DocumentID        uuid.UUID       `json:"document_id"`
	DocumentNumber    string          `json:"document_number"`
	Amount            decimal.Decimal `json:"amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	DocumentBalance   decimal.Decimal `json:"document_balance"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, d *Document, a *Allocation) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID, p.TenantID, p.Version),
		AllocationID:      a.ID,
		PaymentID:         p.ID,
		DocumentID:        d.ID,
		DocumentNumber:    d.DocumentNumber,
		Amount:            a.Amount,
		UnallocatedAmount: p.UnallocatedAmount,
		DocumentBalance:   d.BalanceAmount,
		PaymentStatus:     d.PaymentStatus,
	}
}

// AllocationReversedEvent is raised when a compensating allocation is appended
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	AllocationID         uuid.UUID       `json:"allocation_id"`
	ReversedAllocationID uuid.UUID       `json:"reversed_allocation_id"`
	PaymentID            uuid.UUID       `json:"payment_id"`
	DocumentID           uuid.UUID       `json:"document_id"`
	Amount               decimal.Decimal `json:"amount"`
	Reason               string          `json:"reason"`
}

// NewAllocationReversedEvent creates an AllocationReversedEvent
func NewAllocationReversedEvent(p *Payment, reversal *Allocation) *AllocationReversedEvent {
	var original uuid.UUID
	if reversal.ReversesID != nil {
		original = *reversal.ReversesID
	}
	return &AllocationReversedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeAllocationReversed, AggregateTypePayment, p.ID, p.TenantID, p.Version),
		AllocationID:         reversal.ID,
		ReversedAllocationID: original,
		PaymentID:            p.ID,
		DocumentID:           reversal.DocumentID,
		Amount:               reversal.Amount,
		Reason:               reversal.Reason,
	}
}

// ReturnRecordedEvent is raised when a return is appended to a document.
// The document is the aggregate and the return sequence number is the
// event sequence.
type ReturnRecordedEvent struct {
	shared.BaseDomainEvent
	ReturnID     uuid.UUID       `json:"return_id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	SequenceNo   int             `json:"sequence_no"`
	ReturnType   ReturnType      `json:"return_type"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// NewReturnRecordedEvent creates a ReturnRecordedEvent
func NewReturnRecordedEvent(r *Return) *ReturnRecordedEvent {
	return &ReturnRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnRecorded, AggregateTypeDocument, r.DocumentID, r.TenantID, r.SequenceNo),
		ReturnID:        r.ID,
		DocumentID:      r.DocumentID,
		SequenceNo:      r.SequenceNo,
		ReturnType:      r.ReturnType,
		RefundAmount:    r.RefundAmount,
	}
}
