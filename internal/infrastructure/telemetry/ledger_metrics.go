package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by ledger spans and metrics
const (
	AttrTenantID     = attribute.Key("ledger.tenant_id")
	AttrDocumentID   = attribute.Key("ledger.document_id")
	AttrDocumentKind = attribute.Key("ledger.document_kind")
	AttrPaymentID    = attribute.Key("ledger.payment_id")
	AttrStatusFrom   = attribute.Key("ledger.status_from")
	AttrStatusTo     = attribute.Key("ledger.status_to")
	AttrEvent        = attribute.Key("ledger.event")
	AttrMethod       = attribute.Key("ledger.payment_method")
	AttrCurrency     = attribute.Key("ledger.currency")
	AttrAllocKind    = attribute.Key("ledger.allocation_kind")
	AttrReturnType   = attribute.Key("ledger.return_type")
	AttrOutcome      = attribute.Key("ledger.outcome")
)

// LedgerMetrics holds the business instruments of the ledger. A nil
// *LedgerMetrics records nothing.
type LedgerMetrics struct {
	documentsCreated  metric.Int64Counter
	transitions       metric.Int64Counter
	paymentsReceived  metric.Int64Counter
	allocations       metric.Int64Counter
	allocationAmount  metric.Float64Histogram
	returnsRecorded   metric.Int64Counter
	overdueMarked     metric.Int64Counter
	scanDuration      metric.Float64Histogram
	remindersEnqueued metric.Int64Counter
	numberingRetries  metric.Int64Counter
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			err = fmt.Errorf("failed to create counter %s: %w", name, err)
		}
	}

	counter(&m.documentsCreated, "ledger.documents.created", "Documents created")
	counter(&m.transitions, "ledger.documents.transitions", "Document status transitions")
	counter(&m.paymentsReceived, "ledger.payments.received", "Payments received")
	counter(&m.allocations, "ledger.allocations", "Allocation rows written")
	counter(&m.returnsRecorded, "ledger.returns.recorded", "Returns recorded")
	counter(&m.overdueMarked, "ledger.overdue.marked", "Documents marked overdue")
	counter(&m.remindersEnqueued, "ledger.reminders.enqueued", "Overdue reminders enqueued")
	counter(&m.numberingRetries, "ledger.numbering.retries", "Document number collisions retried")
	if err != nil {
		return nil, err
	}

	if m.allocationAmount, err = meter.Float64Histogram("ledger.allocation.amount",
		metric.WithDescription("Allocated amount per allocation row"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000, 10000, 50000),
	); err != nil {
		return nil, fmt.Errorf("failed to create histogram ledger.allocation.amount: %w", err)
	}
	if m.scanDuration, err = meter.Float64Histogram("ledger.overdue.scan.duration",
		metric.WithDescription("Duration of an overdue scan run"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create histogram ledger.overdue.scan.duration: %w", err)
	}
	return m, nil
}

func (m *LedgerMetrics) DocumentCreated(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.documentsCreated.Add(ctx, 1, metric.WithAttributes(AttrDocumentKind.String(kind)))
}

func (m *LedgerMetrics) Transition(ctx context.Context, kind, from, to, event string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		AttrDocumentKind.String(kind),
		AttrStatusFrom.String(from),
		AttrStatusTo.String(to),
		AttrEvent.String(event),
	))
}

func (m *LedgerMetrics) PaymentReceived(ctx context.Context, method, currency string) {
	if m == nil {
		return
	}
	m.paymentsReceived.Add(ctx, 1, metric.WithAttributes(AttrMethod.String(method), AttrCurrency.String(currency)))
}

// Allocation counts one allocation row and records its amount
func (m *LedgerMetrics) Allocation(ctx context.Context, kind, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrAllocKind.String(kind), AttrCurrency.String(currency))
	m.allocations.Add(ctx, 1, attrs)
	m.allocationAmount.Record(ctx, amount.InexactFloat64(), attrs)
}

func (m *LedgerMetrics) ReturnRecorded(ctx context.Context, returnType string) {
	if m == nil {
		return
	}
	m.returnsRecorded.Add(ctx, 1, metric.WithAttributes(AttrReturnType.String(returnType)))
}

// OverdueScan records one scan run
func (m *LedgerMetrics) OverdueScan(ctx context.Context, marked int, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.overdueMarked.Add(ctx, int64(marked))
	m.scanDuration.Record(ctx, took.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
}

func (m *LedgerMetrics) ReminderEnqueued(ctx context.Context) {
	if m == nil {
		return
	}
	m.remindersEnqueued.Add(ctx, 1)
}

func (m *LedgerMetrics) NumberingRetry(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.numberingRetries.Add(ctx, 1, metric.WithAttributes(AttrDocumentKind.String(kind)))
}
