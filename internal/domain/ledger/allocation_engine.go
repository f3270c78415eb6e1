package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationEngine is a domain service that binds payment amounts to
// document balances. Every check runs before either side is mutated, so a
// refused allocation leaves both aggregates untouched.
type AllocationEngine struct {
	allowOverpay bool
}

// AllocationEngineOption configures an AllocationEngine
type AllocationEngineOption func(*AllocationEngine)

// WithAllocationOverpay lets a single allocation exceed the document balance
func WithAllocationOverpay(allow bool) AllocationEngineOption {
	return func(e *AllocationEngine) {
		e.allowOverpay = allow
	}
}

// NewAllocationEngine creates an engine. By default no allocation may exceed
// the document's remaining balance.
func NewAllocationEngine(opts ...AllocationEngineOption) *AllocationEngine {
	e := &AllocationEngine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AllowsOverpay reports the configured policy
func (e *AllocationEngine) AllowsOverpay() bool {
	return e.allowOverpay
}

func checkPair(payment *Payment, doc *Document) error {
	if payment.TenantID != doc.TenantID {
		return shared.NewDomainError(shared.ErrNotFound.Code, "document not found for payment tenant")
	}
	if _, err := payment.UnallocatedMoney().Compare(doc.BalanceMoney()); err != nil {
		return shared.NewDomainErrorf(CodeCurrencyMismatch,
			"payment currency %s does not match document currency %s", payment.Currency, doc.Currency)
	}
	return nil
}

// Allocate binds amount of payment to doc and returns the new allocation row
func (e *AllocationEngine) Allocate(payment *Payment, doc *Document, amount decimal.Decimal) (*Allocation, error) {
	if err := checkPair(payment, doc); err != nil {
		return nil, err
	}
	if err := payment.CheckAllocation(amount); err != nil {
		return nil, err
	}
	if err := doc.CheckAllocation(amount, e.allowOverpay); err != nil {
		return nil, err
	}

	if err := payment.Allocate(amount); err != nil {
		return nil, err
	}
	if err := doc.ApplyAllocation(amount, e.allowOverpay); err != nil {
		return nil, err
	}

	alloc := &Allocation{
		ID:         uuid.New(),
		TenantID:   payment.TenantID,
		PaymentID:  payment.ID,
		DocumentID: doc.ID,
		Amount:     amount,
		Kind:       AllocationKindApplication,
		CreatedAt:  time.Now(),
	}
	payment.AddDomainEvent(NewPaymentAllocatedEvent(payment, doc, alloc))
	return alloc, nil
}

// Reverse appends a compensating allocation for original. alreadyReversed
// must be looked up by the caller inside the same transaction.
func (e *AllocationEngine) Reverse(original *Allocation, alreadyReversed bool, payment *Payment, doc *Document, reason string) (*Allocation, error) {
	if original.IsReversal() {
		return nil, validationError("a reversal cannot itself be reversed")
	}
	if alreadyReversed {
		return nil, shared.NewDomainErrorf(CodeAlreadyReversed, "allocation %s has already been reversed", original.ID)
	}
	if original.PaymentID != payment.ID || original.DocumentID != doc.ID {
		return nil, validationError("allocation %s does not link the given payment and document", original.ID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("reversal reason is required")
	}
	if err := payment.CheckRelease(original.Amount); err != nil {
		return nil, err
	}
	if err := doc.CheckReversal(original.Amount); err != nil {
		return nil, err
	}

	if err := doc.ReverseAllocation(original.Amount); err != nil {
		return nil, err
	}
	if err := payment.Release(original.Amount); err != nil {
		return nil, err
	}

	originalID := original.ID
	reversal := &Allocation{
		ID:         uuid.New(),
		TenantID:   original.TenantID,
		PaymentID:  original.PaymentID,
		DocumentID: original.DocumentID,
		Amount:     original.Amount,
		Kind:       AllocationKindReversal,
		ReversesID: &originalID,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	payment.AddDomainEvent(NewAllocationReversedEvent(payment, reversal))
	return reversal, nil
}

// AllocationPlanEntry is one step of a FIFO plan
type AllocationPlanEntry struct {
	DocumentID     uuid.UUID
	DocumentNumber string
	Amount         decimal.Decimal
	Settles        bool
}

// AllocationPlan is the result of PlanFIFO
type AllocationPlan struct {
	Entries   []AllocationPlanEntry
	Total     decimal.Decimal
	Remaining decimal.Decimal
}

// PlanFIFO distributes the payment's unallocated amount across the given
// documents, oldest due date first, then issue date, then number. Documents
// that cannot accept payments or have no balance are skipped. The plan does
// not mutate anything; each entry is executed with Allocate.
func (e *AllocationEngine) PlanFIFO(payment *Payment, docs []*Document) *AllocationPlan {
	sorted := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if checkPair(payment, d) == nil && d.CanAcceptPayment() && d.BalanceAmount.IsPositive() {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.Before(b.IssueDate)
		}
		return a.DocumentNumber < b.DocumentNumber
	})

	plan := &AllocationPlan{
		Entries:   make([]AllocationPlanEntry, 0),
		Total:     decimal.Zero,
		Remaining: payment.UnallocatedAmount,
	}
	for _, d := range sorted {
		if !plan.Remaining.IsPositive() {
			break
		}
		balance := d.BalanceMoney()
		step, err := valueobject.MustMoney(plan.Remaining, payment.Currency).Min(balance)
		if err != nil {
			continue
		}
		amount := step.Amount()
		plan.Entries = append(plan.Entries, AllocationPlanEntry{
			DocumentID:     d.ID,
			DocumentNumber: d.DocumentNumber,
			Amount:         amount,
			Settles:        amount.Equal(balance.Amount()),
		})
		plan.Total = plan.Total.Add(amount)
		plan.Remaining = plan.Remaining.Sub(amount)
	}
	return plan
}
