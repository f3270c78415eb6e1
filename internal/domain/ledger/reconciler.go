package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Totals are the four document-level amounts
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ReconcileInput carries line items, the caller's declared totals and an
// optional document-level tax that replaces the per-line tax sum.
type ReconcileInput struct {
	Items       []LineItemInput
	Declared    Totals
	TaxOverride *decimal.Decimal
}

// Reconciliation is the accepted result: canonical line items and totals
type Reconciliation struct {
	Items  []LineItem
	Totals Totals
}

// Reconcile verifies that declared subtotal and total agree with the line
// items within valueobject.Tolerance and returns the canonical values. No
// partial state is produced on failure.
func Reconcile(in ReconcileInput) (*Reconciliation, error) {
	if len(in.Items) == 0 {
		return nil, shared.NewDomainError(CodeInvalidLineItem, "document must have at least one line item")
	}
	if in.TaxOverride != nil && in.TaxOverride.IsNegative() {
		return nil, validationError("tax override cannot be negative")
	}

	items := make([]LineItem, 0, len(in.Items))
	subtotal := decimal.Zero
	discount := decimal.Zero
	tax := decimal.Zero
	for i, input := range in.Items {
		if err := input.validate(i); err != nil {
			return nil, err
		}
		item := input.toLineItem()
		if item.LineTotal.IsNegative() {
			return nil, invalidLineItem(i, "discount exceeds line amount")
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.Gross())
		discount = discount.Add(item.DiscountAmount)
		tax = tax.Add(item.TaxAmount)
	}
	if in.TaxOverride != nil {
		tax = *in.TaxOverride
	}
	total := subtotal.Sub(discount).Add(tax)
	if total.IsNegative() {
		return nil, validationError("document total cannot be negative")
	}

	if !valueobject.WithinTolerance(in.Declared.Subtotal, subtotal) {
		return nil, inconsistentTotals("subtotal", in.Declared.Subtotal, subtotal)
	}
	if !valueobject.WithinTolerance(in.Declared.TotalAmount, total) {
		return nil, inconsistentTotals("total", in.Declared.TotalAmount, total)
	}

	return &Reconciliation{
		Items: items,
		Totals: Totals{
			Subtotal:       subtotal,
			TaxAmount:      tax,
			DiscountAmount: discount,
			TotalAmount:    total,
		},
	}, nil
}

// ComputeTotals derives totals from line items without a declared side.
// Callers that want the ledger to do the arithmetic use it to fill in
// Declared before calling Reconcile.
func ComputeTotals(items []LineItemInput, taxOverride *decimal.Decimal) Totals {
	var t Totals
	for _, in := range items {
		t.Subtotal = t.Subtotal.Add(in.Quantity.Mul(in.UnitPrice))
		t.DiscountAmount = t.DiscountAmount.Add(in.DiscountAmount)
		t.TaxAmount = t.TaxAmount.Add(in.TaxAmount)
	}
	if taxOverride != nil {
		t.TaxAmount = *taxOverride
	}
	t.TotalAmount = t.Subtotal.Sub(t.DiscountAmount).Add(t.TaxAmount)
	return t
}
