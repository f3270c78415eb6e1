package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnType is FULL or PARTIAL
type ReturnType string

const (
	ReturnTypeFull    ReturnType = "FULL"
	ReturnTypePartial ReturnType = "PARTIAL"
)

// IsValid checks if the type is known
func (t ReturnType) IsValid() bool {
	return t == ReturnTypeFull || t == ReturnTypePartial
}

// ReturnItem is the quantity returned against one line
type ReturnItem struct {
	LineItemID       uuid.UUID
	QuantityReturned decimal.Decimal
}

// Return is an append-only event against a document. SequenceNo is strictly
// increasing per document starting at 1.
type Return struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	DocumentID   uuid.UUID
	SequenceNo   int
	ReturnType   ReturnType
	Items        []ReturnItem
	RefundAmount decimal.Decimal
	Reason       string
	CreatedAt    time.Time
}

// RecordReturnParams holds the inputs for NewReturn
type RecordReturnParams struct {
	ReturnType   ReturnType
	Items        []ReturnItem
	RefundAmount decimal.Decimal
	Reason       string
}

// NewReturn validates a return against the document and its existing history
// and assigns the next sequence number. history must be every return already
// recorded for the document, read under the document lock.
func NewReturn(doc *Document, history []Return, p RecordReturnParams) (*Return, error) {
	if doc.IsDraft() || doc.IsCancelled() {
		return nil, shared.NewDomainErrorf(shared.ErrInvalidState.Code,
			"document %s in status %s cannot take returns", doc.DocumentNumber, doc.Status)
	}
	if !p.ReturnType.IsValid() {
		return nil, validationError("unknown return type %q", p.ReturnType)
	}
	if p.RefundAmount.IsNegative() {
		return nil, validationError("refund amount cannot be negative")
	}

	ordered, err := orderReturns(doc, history)
	if err != nil {
		return nil, err
	}
	remaining, err := foldQuantities(doc, ordered, len(ordered))
	if err != nil {
		return nil, err
	}

	items := p.Items
	if p.ReturnType == ReturnTypeFull && len(items) == 0 {
		for _, line := range doc.Items {
			if qty := remaining[line.ID]; qty.IsPositive() {
				items = append(items, ReturnItem{LineItemID: line.ID, QuantityReturned: qty})
			}
		}
	}
	if len(items) == 0 {
		return nil, validationError("nothing to return on document %s", doc.DocumentNumber)
	}

	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		line := doc.GetItem(item.LineItemID)
		if line == nil {
			return nil, invalidLineItem(i, "line "+item.LineItemID.String()+" is not on the document")
		}
		if _, dup := seen[item.LineItemID]; dup {
			return nil, invalidLineItem(i, "line returned twice in the same return")
		}
		seen[item.LineItemID] = struct{}{}
		if !item.QuantityReturned.IsPositive() {
			return nil, invalidLineItem(i, "returned quantity must be positive")
		}
		left := remaining[item.LineItemID]
		if item.QuantityReturned.GreaterThan(left) {
			return nil, shared.NewDomainErrorf(CodeReturnExceedsQty,
				"line %s: returning %s but only %s remain", line.ProductRef, item.QuantityReturned, left)
		}
		if p.ReturnType == ReturnTypeFull && !item.QuantityReturned.Equal(left) {
			return nil, validationError("full return must return all %s remaining of %s", left, line.ProductRef)
		}
	}
	if p.ReturnType == ReturnTypeFull {
		for _, line := range doc.Items {
			if _, ok := seen[line.ID]; !ok && remaining[line.ID].IsPositive() {
				return nil, validationError("full return must include %s", line.ProductRef)
			}
		}
	}

	return &Return{
		ID:           uuid.New(),
		TenantID:     doc.TenantID,
		DocumentID:   doc.ID,
		SequenceNo:   len(ordered) + 1,
		ReturnType:   p.ReturnType,
		Items:        items,
		RefundAmount: p.RefundAmount,
		Reason:       strings.TrimSpace(p.Reason),
		CreatedAt:    time.Now(),
	}, nil
}
