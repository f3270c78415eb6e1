package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService receives payments and allocates them against documents.
//
// Every write that touches a payment and a document locks the payment row
// first, then the document row, and saves both with a version check in the
// same transaction as the allocation insert.
type PaymentService struct {
	txScope     TransactionScope
	payments    ledger.PaymentRepository
	documents   ledger.DocumentRepository
	allocations ledger.AllocationRepository
	publisher   shared.EventPublisher
	engine      *ledger.AllocationEngine
	opts        serviceOptions
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	txScope TransactionScope,
	payments ledger.PaymentRepository,
	documents ledger.DocumentRepository,
	allocations ledger.AllocationRepository,
	publisher shared.EventPublisher,
	opts ...ServiceOption,
) *PaymentService {
	o := applyOptions(opts)
	return &PaymentService{
		txScope:     txScope,
		payments:    payments,
		documents:   documents,
		allocations: allocations,
		publisher:   publisher,
		engine:      ledger.NewAllocationEngine(ledger.WithAllocationOverpay(o.allowOverpay)),
		opts:        o,
	}
}

// Receive records money from a payer with nothing allocated
func (s *PaymentService) Receive(ctx context.Context, tenantID uuid.UUID, req ReceivePaymentRequest) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.payment.receive",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrMethod.String(req.Method),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	currency, err := resolveCurrency(req.Currency, s.opts.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := verifyCounterparty(ctx, s.opts.counterparties, tenantID, req.PayerRef); err != nil {
		return nil, err
	}
	params := ledger.ReceivePaymentParams{
		PayerRef:  req.PayerRef,
		Amount:    req.Amount,
		Currency:  currency,
		Method:    ledger.PaymentMethod(strings.ToUpper(req.Method)),
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	if req.ReceivedDate != nil {
		params.ReceivedDate = *req.ReceivedDate
	}
	payment, err := ledger.NewPayment(tenantID, params)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Payments().Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	publishCommitted(ctx, s.publisher, drainEvents(payment))
	s.opts.metrics.PaymentReceived(ctx, payment.Method.String(), payment.Currency.String())
	logger.L(ctx).Info("Payment received",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payer_ref", payment.PayerRef),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", payment.Method.String()),
	)
	out := ToPaymentResponse(payment)
	return &out, nil
}

// GetByID returns a payment
func (s *PaymentService) GetByID(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.payments.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	out := ToPaymentResponse(payment)
	return &out, nil
}

// List returns one page of payments and the total count
func (s *PaymentService) List(ctx context.Context, tenantID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := ledger.PaymentFilter{
		Pagination:      shared.Pagination{Page: filter.Page, PageSize: filter.PageSize}.Normalize(),
		ReceivedFrom:    filter.ReceivedFrom,
		ReceivedTo:      filter.ReceivedTo,
		OnlyUnallocated: filter.OnlyUnallocated,
		MinAmount:       filter.MinAmount,
	}
	if ref := strings.TrimSpace(filter.PayerRef); ref != "" {
		domainFilter.PayerRef = &ref
	}
	for _, m := range filter.Methods {
		domainFilter.Methods = append(domainFilter.Methods, ledger.PaymentMethod(strings.ToUpper(m)))
	}
	if err := domainFilter.Validate(); err != nil {
		return nil, 0, err
	}
	payments, total, err := s.payments.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToPaymentResponses(payments), total, nil
}

// ListPaymentAllocations returns every allocation row of a payment
func (s *PaymentService) ListPaymentAllocations(ctx context.Context, tenantID, paymentID uuid.UUID) ([]AllocationResponse, error) {
	rows, err := s.allocations.FindByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	return ToAllocationResponses(rows), nil
}

// ListDocumentAllocations returns every allocation row of a document
func (s *PaymentService) ListDocumentAllocations(ctx context.Context, tenantID, documentID uuid.UUID) ([]AllocationResponse, error) {
	rows, err := s.allocations.FindByDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	return ToAllocationResponses(rows), nil
}

// Allocate binds amount of a payment to a document
func (s *PaymentService) Allocate(ctx context.Context, tenantID, paymentID uuid.UUID, req AllocateRequest) (resp *AllocationResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.payment.allocate",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrPaymentID.String(paymentID.String()),
		telemetry.AttrDocumentID.String(req.DocumentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		payment *ledger.Payment
		doc     *ledger.Document
		alloc   *ledger.Allocation
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "allocate"}, func(c context.Context) {
		err = s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			var err error
			payment, err = repos.Payments().FindByIDForUpdate(c, tenantID, paymentID)
			if err != nil {
				return err
			}
			doc, err = repos.Documents().FindByIDForUpdate(c, tenantID, req.DocumentID)
			if err != nil {
				return err
			}
			alloc, err = s.applyAllocation(c, repos, payment, doc, req.Amount)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterAllocation(ctx, payment, doc, alloc)
	return &AllocationResult{
		Allocation: ToAllocationResponse(alloc),
		Payment:    ToPaymentResponse(payment),
		Document:   ToDocumentResponse(doc),
	}, nil
}

// applyAllocation runs the engine on two locked aggregates and writes the
// result. Both rows must already be locked by the caller.
func (s *PaymentService) applyAllocation(
	ctx context.Context,
	repos TransactionalRepositories,
	payment *ledger.Payment,
	doc *ledger.Document,
	amount decimal.Decimal,
) (*ledger.Allocation, error) {
	alloc, err := s.engine.Allocate(payment, doc, amount)
	if err != nil {
		return nil, err
	}
	if err := repos.Payments().SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
		return nil, err
	}
	if err := repos.Allocations().Create(ctx, alloc); err != nil {
		return nil, fmt.Errorf("failed to store allocation: %w", err)
	}
	return alloc, nil
}

// afterAllocation publishes and records an allocation once committed
func (s *PaymentService) afterAllocation(ctx context.Context, payment *ledger.Payment, doc *ledger.Document, alloc *ledger.Allocation) {
	events := drainEvents(payment, doc)
	recordTransitions(ctx, s.opts.metrics, events)
	publishCommitted(ctx, s.publisher, events)
	s.opts.metrics.Allocation(ctx, string(alloc.Kind), payment.Currency.String(), alloc.Amount)
	logger.L(ctx).Info("Allocation recorded",
		zap.String("allocation_id", alloc.ID.String()),
		zap.String("kind", string(alloc.Kind)),
		zap.String("payment_id", payment.ID.String()),
		zap.String("document_number", doc.DocumentNumber),
		zap.String("amount", alloc.Amount.StringFixed(2)),
		zap.String("payment_status", doc.PaymentStatus.String()),
	)
}

// AllocateFIFO spreads the payment's unallocated amount over the payer's
// open documents, oldest due date first
func (s *PaymentService) AllocateFIFO(ctx context.Context, tenantID, paymentID uuid.UUID) (resp *FIFOResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.payment.allocate_fifo",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrPaymentID.String(paymentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		payment *ledger.Payment
		created []ledger.Allocation
		touched []*ledger.Document
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = repos.Payments().FindByIDForUpdate(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		open, err := repos.Documents().FindOpenByCounterparty(ctx, tenantID, payment.PayerRef, payment.Currency.String())
		if err != nil {
			return err
		}
		candidates := make([]*ledger.Document, len(open))
		for i := range open {
			candidates[i] = &open[i]
		}
		plan := s.engine.PlanFIFO(payment, candidates)

		for _, entry := range plan.Entries {
			// The plan was made from unlocked reads; the locked row decides.
			doc, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, entry.DocumentID)
			if err != nil {
				return err
			}
			amount := decimal.Min(entry.Amount, doc.BalanceAmount, payment.UnallocatedAmount)
			if !amount.IsPositive() || !doc.CanAcceptPayment() {
				continue
			}
			alloc, err := s.applyAllocation(ctx, repos, payment, doc, amount)
			if err != nil {
				return err
			}
			created = append(created, *alloc)
			touched = append(touched, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for i := range created {
		total = total.Add(created[i].Amount)
		s.opts.metrics.Allocation(ctx, string(created[i].Kind), payment.Currency.String(), created[i].Amount)
	}
	sources := make([]eventSource, 0, len(touched)+1)
	sources = append(sources, payment)
	for _, d := range touched {
		sources = append(sources, d)
	}
	events := drainEvents(sources...)
	recordTransitions(ctx, s.opts.metrics, events)
	publishCommitted(ctx, s.publisher, events)

	logger.L(ctx).Info("FIFO allocation finished",
		zap.String("payment_id", paymentID.String()),
		zap.Int("allocations", len(created)),
		zap.String("total", total.StringFixed(2)),
		zap.String("unallocated", payment.UnallocatedAmount.StringFixed(2)),
	)
	return &FIFOResult{
		Allocations: ToAllocationResponses(created),
		Total:       total,
		Payment:     ToPaymentResponse(payment),
	}, nil
}

// PayInFull receives a payment equal to the document's balance and
// allocates it in the same transaction
func (s *PaymentService) PayInFull(ctx context.Context, tenantID, documentID uuid.UUID, req DocumentPaymentRequest) (*DocumentPaymentResult, error) {
	return s.payDocument(ctx, tenantID, documentID, req, true)
}

// PayPartially receives a payment of req.Amount for a document and
// allocates it. An amount above the balance fails with EXCEEDS_BALANCE.
func (s *PaymentService) PayPartially(ctx context.Context, tenantID, documentID uuid.UUID, req DocumentPaymentRequest) (*DocumentPaymentResult, error) {
	return s.payDocument(ctx, tenantID, documentID, req, false)
}

func (s *PaymentService) payDocument(
	ctx context.Context,
	tenantID, documentID uuid.UUID,
	req DocumentPaymentRequest,
	full bool,
) (resp *DocumentPaymentResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.payment.pay_document",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
		telemetry.AttrMethod.String(req.Method),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		payment *ledger.Payment
		doc     *ledger.Document
		alloc   *ledger.Allocation
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		// The payment is new, so locking the document alone keeps the
		// payment-then-document order.
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		if !doc.BalanceAmount.IsPositive() {
			return shared.NewDomainErrorf(ledger.CodeExceedsBalance,
				"document %s has no outstanding balance", doc.DocumentNumber)
		}
		amount := doc.BalanceAmount
		if !full {
			if !req.Amount.IsPositive() {
				return shared.NewDomainError(shared.ErrValidation.Code, "payment amount must be positive")
			}
			if req.Amount.GreaterThan(doc.BalanceAmount) {
				return shared.NewDomainErrorf(ledger.CodeExceedsBalance,
					"payment %s exceeds balance %s of document %s",
					req.Amount.StringFixed(2), doc.BalanceAmount.StringFixed(2), doc.DocumentNumber)
			}
			amount = req.Amount
		}

		payer := strings.TrimSpace(req.PayerRef)
		if payer == "" {
			payer = doc.CounterpartyRef
		}
		params := ledger.ReceivePaymentParams{
			PayerRef:  payer,
			Amount:    amount,
			Currency:  doc.Currency,
			Method:    ledger.PaymentMethod(strings.ToUpper(req.Method)),
			Reference: req.Reference,
			Notes:     req.Notes,
		}
		if req.ReceivedDate != nil {
			params.ReceivedDate = *req.ReceivedDate
		}
		payment, err = ledger.NewPayment(tenantID, params)
		if err != nil {
			return err
		}
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return err
		}
		alloc, err = s.applyAllocation(ctx, repos, payment, doc, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.metrics.PaymentReceived(ctx, payment.Method.String(), payment.Currency.String())
	s.afterAllocation(ctx, payment, doc, alloc)
	return &DocumentPaymentResult{
		Payment:    ToPaymentResponse(payment),
		Allocation: ToAllocationResponse(alloc),
		Document:   ToDocumentResponse(doc),
	}, nil
}

// Reverse appends a compensating allocation for allocationID
func (s *PaymentService) Reverse(ctx context.Context, tenantID, allocationID uuid.UUID, req ReverseAllocationRequest) (resp *AllocationResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.allocation.reverse",
		telemetry.AttrTenantID.String(tenantID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		payment  *ledger.Payment
		doc      *ledger.Document
		reversal *ledger.Allocation
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		original, err := repos.Allocations().FindByIDForTenant(ctx, tenantID, allocationID)
		if err != nil {
			return err
		}
		payment, err = repos.Payments().FindByIDForUpdate(ctx, tenantID, original.PaymentID)
		if err != nil {
			return err
		}
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, original.DocumentID)
		if err != nil {
			return err
		}
		reversal, err = s.applyReversal(ctx, repos, original, payment, doc, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterAllocation(ctx, payment, doc, reversal)
	return &AllocationResult{
		Allocation: ToAllocationResponse(reversal),
		Payment:    ToPaymentResponse(payment),
		Document:   ToDocumentResponse(doc),
	}, nil
}

func (s *PaymentService) applyReversal(
	ctx context.Context,
	repos TransactionalRepositories,
	original *ledger.Allocation,
	payment *ledger.Payment,
	doc *ledger.Document,
	reason string,
) (*ledger.Allocation, error) {
	reversed, err := repos.Allocations().ExistsReversalOf(ctx, original.TenantID, original.ID)
	if err != nil {
		return nil, err
	}
	reversal, err := s.engine.Reverse(original, reversed, payment, doc, reason)
	if err != nil {
		return nil, err
	}
	if err := repos.Payments().SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
		return nil, err
	}
	if err := repos.Allocations().Create(ctx, reversal); err != nil {
		return nil, fmt.Errorf("failed to store reversal: %w", err)
	}
	return reversal, nil
}

// Reallocate reverses an allocation and applies an amount of the same
// payment to another document in one transaction
func (s *PaymentService) Reallocate(ctx context.Context, tenantID, allocationID uuid.UUID, req ReallocateRequest) (resp *ReallocationResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.allocation.reallocate",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(req.TargetDocumentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		payment  *ledger.Payment
		source   *ledger.Document
		target   *ledger.Document
		reversal *ledger.Allocation
		alloc    *ledger.Allocation
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		original, err := repos.Allocations().FindByIDForTenant(ctx, tenantID, allocationID)
		if err != nil {
			return err
		}
		if original.DocumentID == req.TargetDocumentID {
			return shared.NewDomainError(shared.ErrValidation.Code, "target document is the allocation's own document")
		}
		payment, err = repos.Payments().FindByIDForUpdate(ctx, tenantID, original.PaymentID)
		if err != nil {
			return err
		}
		source, target, err = lockDocumentPair(ctx, repos, tenantID, original.DocumentID, req.TargetDocumentID)
		if err != nil {
			return err
		}

		reversal, err = s.applyReversal(ctx, repos, original, payment, source, req.Reason)
		if err != nil {
			return err
		}
		amount := req.Amount
		if amount.IsZero() {
			amount = original.Amount
		}
		alloc, err = s.applyAllocation(ctx, repos, payment, target, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	events := drainEvents(payment, source, target)
	recordTransitions(ctx, s.opts.metrics, events)
	publishCommitted(ctx, s.publisher, events)
	s.opts.metrics.Allocation(ctx, string(reversal.Kind), payment.Currency.String(), reversal.Amount)
	s.opts.metrics.Allocation(ctx, string(alloc.Kind), payment.Currency.String(), alloc.Amount)
	logger.L(ctx).Info("Allocation moved",
		zap.String("reversed_allocation_id", allocationID.String()),
		zap.String("from_document", source.DocumentNumber),
		zap.String("to_document", target.DocumentNumber),
		zap.String("amount", alloc.Amount.StringFixed(2)),
	)
	return &ReallocationResult{
		Reversal:   ToAllocationResponse(reversal),
		Allocation: ToAllocationResponse(alloc),
		Payment:    ToPaymentResponse(payment),
	}, nil
}

// lockDocumentPair locks two documents in id order so two reallocations
// in opposite directions cannot deadlock
func lockDocumentPair(ctx context.Context, repos TransactionalRepositories, tenantID, a, b uuid.UUID) (*ledger.Document, *ledger.Document, error) {
	first, second := a, b
	if strings.Compare(b.String(), a.String()) < 0 {
		first, second = b, a
	}
	d1, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, first)
	if err != nil {
		return nil, nil, err
	}
	d2, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return d1, d2, nil
	}
	return d2, d1, nil
}
