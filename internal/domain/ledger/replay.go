package ledger

import (
	"sort"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotLine is one surviving line in a replayed view
type SnapshotLine struct {
	LineItemID     uuid.UUID
	ProductRef     string
	ProductName    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

// Snapshot is the computed financial view of a document after the returns
// up to AsOfSequence were applied. It is never persisted.
type Snapshot struct {
	DocumentID     uuid.UUID
	AsOfSequence   int
	Items          []SnapshotLine
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// StateBefore folds every return strictly before returnID onto the original
// items. A nil returnID yields the original document.
func StateBefore(doc *Document, returns []Return, returnID *uuid.UUID) (*Snapshot, error) {
	ordered, err := orderReturns(doc, returns)
	if err != nil {
		return nil, err
	}
	upto := 0
	if returnID != nil {
		target, err := findReturn(doc, ordered, *returnID)
		if err != nil {
			return nil, err
		}
		upto = target.SequenceNo - 1
	}
	return replay(doc, ordered, upto)
}

// StateAfter folds every return up to and including returnID. A nil
// returnID folds the whole history.
func StateAfter(doc *Document, returns []Return, returnID *uuid.UUID) (*Snapshot, error) {
	ordered, err := orderReturns(doc, returns)
	if err != nil {
		return nil, err
	}
	upto := len(ordered)
	if returnID != nil {
		target, err := findReturn(doc, ordered, *returnID)
		if err != nil {
			return nil, err
		}
		upto = target.SequenceNo
	}
	return replay(doc, ordered, upto)
}

// CurrentState nets every returned quantity per line in one pass and prices
// the result. It is the live view a replay of the full history must match.
func CurrentState(doc *Document, returns []Return) (*Snapshot, error) {
	ordered, err := orderReturns(doc, returns)
	if err != nil {
		return nil, err
	}
	returned := make(map[uuid.UUID]decimal.Decimal, len(doc.Items))
	for _, r := range ordered {
		for _, item := range r.Items {
			returned[item.LineItemID] = returned[item.LineItemID].Add(item.QuantityReturned)
		}
	}
	remaining := make(map[uuid.UUID]decimal.Decimal, len(doc.Items))
	for _, line := range doc.Items {
		left := line.Quantity.Sub(returned[line.ID])
		if left.IsNegative() {
			return nil, shared.NewDomainErrorf(CodeReturnExceedsQty,
				"returns on line %s exceed its quantity %s", line.ProductRef, line.Quantity)
		}
		remaining[line.ID] = left
	}
	return price(doc, remaining, len(ordered)), nil
}

// RemainingQuantities returns the quantity left on every line after all
// returns
func RemainingQuantities(doc *Document, returns []Return) (map[uuid.UUID]decimal.Decimal, error) {
	ordered, err := orderReturns(doc, returns)
	if err != nil {
		return nil, err
	}
	return foldQuantities(doc, ordered, len(ordered))
}

// orderReturns keeps the document's returns sorted by sequence and rejects
// any gap or duplicate
func orderReturns(doc *Document, returns []Return) ([]Return, error) {
	ordered := make([]Return, 0, len(returns))
	for _, r := range returns {
		if r.DocumentID == doc.ID {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceNo < ordered[j].SequenceNo
	})
	for i, r := range ordered {
		if r.SequenceNo != i+1 {
			return nil, shared.NewDomainErrorf(CodeSequenceGap,
				"document %s: expected return sequence %d, found %d", doc.DocumentNumber, i+1, r.SequenceNo)
		}
	}
	return ordered, nil
}

func findReturn(doc *Document, ordered []Return, id uuid.UUID) (*Return, error) {
	for i := range ordered {
		if ordered[i].ID == id {
			return &ordered[i], nil
		}
	}
	return nil, shared.NewDomainErrorf(CodeReturnNotFound,
		"return %s does not belong to document %s", id, doc.DocumentNumber)
}

// foldQuantities applies returns with sequence <= upto, one at a time
func foldQuantities(doc *Document, ordered []Return, upto int) (map[uuid.UUID]decimal.Decimal, error) {
	remaining := make(map[uuid.UUID]decimal.Decimal, len(doc.Items))
	for _, line := range doc.Items {
		remaining[line.ID] = line.Quantity
	}
	for _, r := range ordered {
		if r.SequenceNo > upto {
			break
		}
		for _, item := range r.Items {
			left, ok := remaining[item.LineItemID]
			if !ok {
				return nil, shared.NewDomainErrorf(CodeInvalidLineItem,
					"return %d references line %s not on document %s", r.SequenceNo, item.LineItemID, doc.DocumentNumber)
			}
			left = left.Sub(item.QuantityReturned)
			if left.IsNegative() {
				return nil, shared.NewDomainErrorf(CodeReturnExceedsQty,
					"return %d takes line %s below zero", r.SequenceNo, item.LineItemID)
			}
			remaining[item.LineItemID] = left
		}
	}
	return remaining, nil
}

func replay(doc *Document, ordered []Return, upto int) (*Snapshot, error) {
	remaining, err := foldQuantities(doc, ordered, upto)
	if err != nil {
		return nil, err
	}
	return price(doc, remaining, upto), nil
}

// price recomputes amounts from surviving quantities using each line's
// original unit price and per-unit discount and tax. refund_amount plays no
// part. A document-level tax override is scaled by the surviving share of
// the original subtotal.
func price(doc *Document, remaining map[uuid.UUID]decimal.Decimal, asOf int) *Snapshot {
	snap := &Snapshot{
		DocumentID:     doc.ID,
		AsOfSequence:   asOf,
		Items:          make([]SnapshotLine, 0, len(doc.Items)),
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
	}
	for _, line := range doc.Items {
		qty := remaining[line.ID]
		if !qty.IsPositive() {
			continue
		}
		gross := qty.Mul(line.UnitPrice)
		discount, tax := line.DiscountAmount, line.TaxAmount
		if !qty.Equal(line.Quantity) {
			discount = line.DiscountAmount.Mul(qty).Div(line.Quantity)
			tax = line.TaxAmount.Mul(qty).Div(line.Quantity)
		}
		snap.Items = append(snap.Items, SnapshotLine{
			LineItemID:     line.ID,
			ProductRef:     line.ProductRef,
			ProductName:    line.ProductName,
			Quantity:       qty,
			UnitPrice:      line.UnitPrice,
			DiscountAmount: discount,
			TaxAmount:      tax,
			LineTotal:      gross.Sub(discount).Add(tax),
		})
		snap.Subtotal = snap.Subtotal.Add(gross)
		snap.DiscountAmount = snap.DiscountAmount.Add(discount)
		snap.TaxAmount = snap.TaxAmount.Add(tax)
	}
	if doc.TaxOverride != nil {
		switch {
		case len(snap.Items) == 0:
			snap.TaxAmount = decimal.Zero
		case snap.Subtotal.Equal(doc.Subtotal) || doc.Subtotal.IsZero():
			snap.TaxAmount = *doc.TaxOverride
		default:
			snap.TaxAmount = doc.TaxOverride.Mul(snap.Subtotal).Div(doc.Subtotal)
		}
	}
	snap.TotalAmount = snap.Subtotal.Sub(snap.DiscountAmount).Add(snap.TaxAmount)
	return snap
}
