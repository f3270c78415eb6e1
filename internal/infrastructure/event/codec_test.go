package event

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCodec_OverdueEvent(t *testing.T) {
	docID := uuid.New()
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	evt := &ledger.DocumentOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(ledger.EventTypeDocumentOverdue, ledger.AggregateTypeDocument, docID, uuid.New(), 5),
		DocumentID:      docID,
		DocumentNumber:  "INV-202608-0007",
		Kind:            ledger.KindInvoice,
		CounterpartyRef: "cust-1",
		Currency:        "USD",
		BalanceAmount:   decimal.RequireFromString("75.50"),
		DueDate:         due,
		DaysOverdue:     12,
	}

	codec := NewLedgerCodec()
	payload, err := codec.Encode(evt)
	require.NoError(t, err)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	got, ok := decoded.(*ledger.DocumentOverdueEvent)
	require.True(t, ok)

	assert.Equal(t, evt.IdempotencyKey(), got.IdempotencyKey())
	assert.Equal(t, evt.EventID(), got.EventID())
	assert.Equal(t, "INV-202608-0007", got.DocumentNumber)
	assert.True(t, got.BalanceAmount.Equal(evt.BalanceAmount))
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, 12, got.DaysOverdue)
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := NewLedgerCodec()

	_, err := codec.Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = codec.Decode([]byte(`{"type":"ledger.unknown","data":{}}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = codec.Decode([]byte(`{"type":"ledger.document.overdue","data":{"days_overdue":"many"}}`))
	assert.Error(t, err)
}

func TestLedgerCodec_RegisteredTypes(t *testing.T) {
	types := NewLedgerCodec().RegisteredTypes()
	assert.Len(t, types, 8)
	assert.Contains(t, types, ledger.EventTypeAllocationReversed)
	assert.IsIncreasing(t, types)
}
