package ledger

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(ref string, qty, price, discount, tax string) LineItemInput {
	return LineItemInput{
		ProductRef:     ref,
		ProductName:    "Product " + ref,
		Quantity:       dec(qty),
		UnitPrice:      dec(price),
		DiscountAmount: dec(discount),
		TaxAmount:      dec(tax),
	}
}

// newTestDocument creates a numbered draft whose declared totals are the
// computed ones
func newTestDocument(t *testing.T, tenantID uuid.UUID, kind DocumentKind, items ...LineItemInput) *Document {
	t.Helper()
	issue := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	doc, err := NewDocument(tenantID, NewDocumentParams{
		Kind:            kind,
		CounterpartyRef: "CUST-1",
		IssueDate:       issue,
		DueDate:         issue.AddDate(0, 0, 30),
		Currency:        valueobject.USD,
		Items:           items,
		Declared:        ComputeTotals(items, nil),
	})
	require.NoError(t, err)
	require.NoError(t, doc.AssignNumber(FormatDocumentNumber(kind, "202609", 1)))
	return doc
}

// newOpenInvoice creates an invoice with a single line totalling total and
// sends it
func newOpenInvoice(t *testing.T, tenantID uuid.UUID, total string) *Document {
	t.Helper()
	doc := newTestDocument(t, tenantID, KindInvoice, line("SKU-1", "1", total, "0", "0"))
	require.NoError(t, doc.ApplyEvent(EventSend))
	return doc
}

func newTestPayment(t *testing.T, tenantID uuid.UUID, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(tenantID, ReceivePaymentParams{
		PayerRef: "CUST-1",
		Amount:   dec(amount),
		Currency: valueobject.USD,
		Method:   PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	return p
}
