package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultNumberingRetries bounds how often document creation retries after
// a numbering collision
const DefaultNumberingRetries = 3

// DefaultOverdueBatchSize bounds the candidates one scan pass loads
const DefaultOverdueBatchSize = 500

type serviceOptions struct {
	catalog          ledger.CatalogLookup
	counterparties   ledger.CounterpartyLookup
	metrics          *telemetry.LedgerMetrics
	numberingRetries int
	overdueBatchSize int
	defaultCurrency  valueobject.Currency
	allowOverpay     bool
	now              func() time.Time
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		numberingRetries: DefaultNumberingRetries,
		overdueBatchSize: DefaultOverdueBatchSize,
		defaultCurrency:  valueobject.DefaultCurrency,
		now:              time.Now,
	}
}

// ServiceOption configures the ledger services
type ServiceOption func(*serviceOptions)

// WithCatalog resolves product snapshots for line items
func WithCatalog(c ledger.CatalogLookup) ServiceOption {
	return func(o *serviceOptions) { o.catalog = c }
}

// WithCounterparties verifies counterparty and payer references
func WithCounterparties(c ledger.CounterpartyLookup) ServiceOption {
	return func(o *serviceOptions) { o.counterparties = c }
}

// WithMetrics records business metrics
func WithMetrics(m *telemetry.LedgerMetrics) ServiceOption {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithNumberingRetries sets how often a numbering collision is retried
func WithNumberingRetries(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.numberingRetries = n
		}
	}
}

// WithOverdueBatchSize caps the candidates loaded per scan
func WithOverdueBatchSize(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.overdueBatchSize = n
		}
	}
}

// WithDefaultCurrency is used when a request omits the currency
func WithDefaultCurrency(c valueobject.Currency) ServiceOption {
	return func(o *serviceOptions) {
		if c != "" {
			o.defaultCurrency = c
		}
	}
}

// WithAllocationOverpay lets a single allocation exceed the document balance
func WithAllocationOverpay(allow bool) ServiceOption {
	return func(o *serviceOptions) { o.allowOverpay = allow }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []ServiceOption) serviceOptions {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// eventSource is an aggregate that collects domain events
type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// drainEvents takes the pending events off the aggregates
func drainEvents(sources ...eventSource) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, s := range sources {
		if s == nil {
			continue
		}
		events = append(events, s.GetDomainEvents()...)
		s.ClearDomainEvents()
	}
	return events
}

// publishCommitted hands events to the publisher once the transaction has
// committed. A publishing failure never fails the operation.
func publishCommitted(ctx context.Context, publisher shared.EventPublisher, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("Failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.String("first_idempotency_key", events[0].IdempotencyKey()),
			zap.Error(err),
		)
	}
}

// resolveCurrency parses code or falls back to the configured default
func resolveCurrency(code string, fallback valueobject.Currency) (valueobject.Currency, error) {
	if code == "" {
		return fallback, nil
	}
	c, err := valueobject.ParseCurrency(code)
	if err != nil {
		return "", shared.NewDomainError(shared.ErrValidation.Code, err.Error())
	}
	return c, nil
}

// recordTransitions counts every status change among events
func recordTransitions(ctx context.Context, metrics *telemetry.LedgerMetrics, events []shared.DomainEvent) {
	for _, e := range events {
		if sc, ok := e.(*ledger.DocumentStatusChangedEvent); ok {
			metrics.Transition(ctx, sc.Kind.String(), sc.FromStatus.String(), sc.ToStatus.String(), sc.Trigger.String())
		}
	}
}
