package ledger

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one priced row of a document. LineTotal is always the
// canonical value computed by Reconcile, never the caller's.
type LineItem struct {
	ID             uuid.UUID
	ProductRef     string
	ProductName    string
	ProductSKU     string
	Unit           string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

// Gross is quantity × unit price
func (l LineItem) Gross() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// LineItemInput is a caller-supplied line before reconciliation
type LineItemInput struct {
	ProductRef     string
	ProductName    string
	ProductSKU     string
	Unit           string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
}

func (in LineItemInput) validate(index int) error {
	if strings.TrimSpace(in.ProductRef) == "" {
		return invalidLineItem(index, "product reference is required")
	}
	if !in.Quantity.IsPositive() {
		return invalidLineItem(index, "quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return invalidLineItem(index, "unit price cannot be negative")
	}
	if in.DiscountAmount.IsNegative() {
		return invalidLineItem(index, "discount cannot be negative")
	}
	if in.TaxAmount.IsNegative() {
		return invalidLineItem(index, "tax cannot be negative")
	}
	return nil
}

func (in LineItemInput) toLineItem() LineItem {
	gross := in.Quantity.Mul(in.UnitPrice)
	return LineItem{
		ID:             uuid.New(),
		ProductRef:     strings.TrimSpace(in.ProductRef),
		ProductName:    in.ProductName,
		ProductSKU:     in.ProductSKU,
		Unit:           in.Unit,
		Quantity:       in.Quantity,
		UnitPrice:      in.UnitPrice,
		DiscountAmount: in.DiscountAmount,
		TaxAmount:      in.TaxAmount,
		LineTotal:      gross.Sub(in.DiscountAmount).Add(in.TaxAmount),
	}
}
