package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how money was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment is money received from a payer, independent of any one document.
// Amount never changes after creation; only the allocated part moves.
type Payment struct {
	shared.TenantAggregateRoot
	PayerRef          string
	Amount            decimal.Decimal
	Currency          valueobject.Currency
	ReceivedDate      time.Time
	Method            PaymentMethod
	Reference         string
	AllocatedAmount   decimal.Decimal
	UnallocatedAmount decimal.Decimal
	Notes             string
}

// ReceivePaymentParams holds the inputs for NewPayment
type ReceivePaymentParams struct {
	PayerRef     string
	Amount       decimal.Decimal
	Currency     valueobject.Currency
	ReceivedDate time.Time
	Method       PaymentMethod
	Reference    string
	Notes        string
}

// NewPayment creates a payment with nothing allocated
func NewPayment(tenantID uuid.UUID, p ReceivePaymentParams) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, validationError("tenant is required")
	}
	payer := strings.TrimSpace(p.PayerRef)
	if payer == "" {
		return nil, validationError("payer reference is required")
	}
	if !p.Amount.IsPositive() {
		return nil, validationError("payment amount must be positive")
	}
	if !p.Method.IsValid() {
		return nil, shared.NewDomainErrorf(CodeInvalidPaymentMethod, "unknown payment method %q", p.Method)
	}
	if p.Currency == "" {
		return nil, validationError("currency is required")
	}
	received := p.ReceivedDate
	if received.IsZero() {
		received = time.Now()
	}

	payment := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PayerRef:            payer,
		Amount:              p.Amount,
		Currency:            p.Currency,
		ReceivedDate:        received,
		Method:              p.Method,
		Reference:           strings.TrimSpace(p.Reference),
		AllocatedAmount:     decimal.Zero,
		UnallocatedAmount:   p.Amount,
		Notes:               p.Notes,
	}
	payment.AddDomainEvent(NewPaymentReceivedEvent(payment))
	return payment, nil
}

// CheckAllocation validates that amount fits into the unallocated part
func (p *Payment) CheckAllocation(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("allocation amount must be positive")
	}
	if amount.GreaterThan(p.UnallocatedAmount) {
		return shared.NewDomainErrorf(CodeOverAllocation,
			"allocation %s exceeds unallocated %s of payment %s (amount %s)",
			amount.StringFixed(2), p.UnallocatedAmount.StringFixed(2), p.ID, p.Amount.StringFixed(2))
	}
	return nil
}

// Allocate moves amount from unallocated to allocated
func (p *Payment) Allocate(amount decimal.Decimal) error {
	if err := p.CheckAllocation(amount); err != nil {
		return err
	}
	p.AllocatedAmount = p.AllocatedAmount.Add(amount)
	p.UnallocatedAmount = p.Amount.Sub(p.AllocatedAmount)
	p.IncrementVersion()
	return nil
}

// CheckRelease validates returning amount to the unallocated pool
func (p *Payment) CheckRelease(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("release amount must be positive")
	}
	if amount.GreaterThan(p.AllocatedAmount) {
		return shared.NewDomainErrorf(CodeOverAllocation,
			"release %s exceeds allocated %s of payment %s",
			amount.StringFixed(2), p.AllocatedAmount.StringFixed(2), p.ID)
	}
	return nil
}

// Release returns amount to the unallocated pool after a reversal
func (p *Payment) Release(amount decimal.Decimal) error {
	if err := p.CheckRelease(amount); err != nil {
		return err
	}
	p.AllocatedAmount = p.AllocatedAmount.Sub(amount)
	p.UnallocatedAmount = p.Amount.Sub(p.AllocatedAmount)
	p.IncrementVersion()
	return nil
}

// ApplyRecomputedAllocated overwrites the allocated amount with the sum
// derived from allocation rows
func (p *Payment) ApplyRecomputedAllocated(allocated decimal.Decimal) error {
	if allocated.IsNegative() || allocated.GreaterThan(p.Amount) {
		return shared.NewDomainErrorf(CodeLedgerDrift,
			"allocations on payment %s sum to %s outside [0, %s]",
			p.ID, allocated.StringFixed(2), p.Amount.StringFixed(2))
	}
	p.AllocatedAmount = allocated
	p.UnallocatedAmount = p.Amount.Sub(allocated)
	p.IncrementVersion()
	return nil
}

// IsFullyAllocated returns true when nothing is left to allocate
func (p *Payment) IsFullyAllocated() bool {
	return !p.UnallocatedAmount.IsPositive()
}

// UnallocatedMoney returns the unallocated amount as Money
func (p *Payment) UnallocatedMoney() valueobject.Money {
	return valueobject.MustMoney(p.UnallocatedAmount, p.Currency)
}
