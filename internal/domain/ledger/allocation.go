package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationKind distinguishes applications from compensating reversals
type AllocationKind string

const (
	AllocationKindApplication AllocationKind = "APPLICATION"
	AllocationKindReversal    AllocationKind = "REVERSAL"
)

// Allocation binds part of one payment to one document. Rows are append-only:
// a reversal is a new row of kind REVERSAL that references the original.
// Amount is always positive; the kind carries the sign.
type Allocation struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PaymentID  uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Kind       AllocationKind
	ReversesID *uuid.UUID
	Reason     string
	CreatedAt  time.Time
}

// SignedAmount is +Amount for applications and -Amount for reversals
func (a *Allocation) SignedAmount() decimal.Decimal {
	if a.Kind == AllocationKindReversal {
		return a.Amount.Neg()
	}
	return a.Amount
}

// IsReversal returns true for compensating rows
func (a *Allocation) IsReversal() bool {
	return a.Kind == AllocationKindReversal
}

// SumSigned folds a set of allocation rows into the effective amount
func SumSigned(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for i := range allocations {
		total = total.Add(allocations[i].SignedAmount())
	}
	return total
}
