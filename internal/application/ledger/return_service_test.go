package ledger

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSale stores a sale with the given lines, submitted when submit is set
func seedSale(t *testing.T, store *memStore, tenantID uuid.UUID, submit bool, items ...ledger.LineItemInput) *ledger.Document {
	t.Helper()
	doc, err := ledger.NewDocument(tenantID, ledger.NewDocumentParams{
		Kind:            ledger.KindSale,
		CounterpartyRef: "CUST-1",
		IssueDate:       testIssueDate,
		DueDate:         testIssueDate,
		Currency:        valueobject.USD,
		Items:           items,
		Declared:        ledger.ComputeTotals(items, nil),
	})
	require.NoError(t, err)
	require.NoError(t, doc.AssignNumber("SAL-202609-0001"))
	if submit {
		require.NoError(t, doc.ApplyEvent(ledger.EventSubmit))
	}
	store.put(doc)
	return doc
}

func newReturnServiceForTest(store *memStore, pub *recordingPublisher) *ReturnService {
	return NewReturnService(store.scope(), memDocuments{store}, memReturns{store}, publisherOf(pub))
}

func TestReturnService_ReplayAroundReturn(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newReturnServiceForTest(store, pub)
	ctx := context.Background()
	tenantID := uuid.New()
	doc := seedSale(t, store, tenantID, true, ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("2"), UnitPrice: dec("50")})
	lineID := doc.Items[0].ID

	ret, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
		ReturnType: "partial",
		Items:      []ReturnItemRequest{{LineItemID: lineID, QuantityReturned: dec("1")}},
		Reason:     "damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ret.SequenceNo)
	assert.Equal(t, "PARTIAL", ret.ReturnType)
	assert.Len(t, pub.ofType(ledger.EventTypeReturnRecorded), 1)

	before, err := svc.StateBefore(ctx, tenantID, doc.ID, &ret.ID)
	require.NoError(t, err)
	require.Len(t, before.Items, 1)
	assert.True(t, before.Items[0].Quantity.Equal(dec("2")))
	assert.True(t, before.TotalAmount.Equal(dec("100")))
	assert.Zero(t, before.AsOfSequence)

	after, err := svc.StateAfter(ctx, tenantID, doc.ID, &ret.ID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	assert.True(t, after.Items[0].Quantity.Equal(dec("1")))
	assert.True(t, after.TotalAmount.Equal(dec("50")))
	assert.Equal(t, 1, after.AsOfSequence)

	// The stored document is untouched by returns
	assert.True(t, store.doc(doc.ID).TotalAmount.Equal(dec("100")))
}

func TestReturnService_FullReplayMatchesCurrent(t *testing.T) {
	store := newMemStore()
	svc := newReturnServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()
	doc := seedSale(t, store, tenantID, true,
		ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("4"), UnitPrice: dec("25"), DiscountAmount: dec("4"), TaxAmount: dec("8")},
		ledger.LineItemInput{ProductRef: "SKU-2", Quantity: dec("1"), UnitPrice: dec("10")},
	)
	first, second := doc.Items[0].ID, doc.Items[1].ID

	_, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
		ReturnType: "PARTIAL",
		Items:      []ReturnItemRequest{{LineItemID: first, QuantityReturned: dec("1")}},
	})
	require.NoError(t, err)
	_, err = svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
		ReturnType: "PARTIAL",
		Items:      []ReturnItemRequest{{LineItemID: first, QuantityReturned: dec("2")}, {LineItemID: second, QuantityReturned: dec("1")}},
	})
	require.NoError(t, err)

	replayed, err := svc.StateAfter(ctx, tenantID, doc.ID, nil)
	require.NoError(t, err)
	current, err := svc.Current(ctx, tenantID, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, replayed.AsOfSequence)
	assert.True(t, replayed.TotalAmount.Equal(current.TotalAmount))
	require.Len(t, replayed.Items, 1)
	require.Len(t, current.Items, 1)
	assert.True(t, current.Items[0].Quantity.Equal(dec("1")))
	// 25 - 1 discount + 2 tax
	assert.True(t, current.TotalAmount.Equal(dec("26")))

	original, err := svc.StateBefore(ctx, tenantID, doc.ID, nil)
	require.NoError(t, err)
	assert.True(t, original.TotalAmount.Equal(store.doc(doc.ID).TotalAmount))

	list, err := svc.List(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].SequenceNo)
	assert.Equal(t, 2, list[1].SequenceNo)
}

func TestReturnService_FullReturnTakesEverythingLeft(t *testing.T) {
	store := newMemStore()
	svc := newReturnServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()
	doc := seedSale(t, store, tenantID, true, ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("3"), UnitPrice: dec("10")})

	_, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
		ReturnType: "PARTIAL",
		Items:      []ReturnItemRequest{{LineItemID: doc.Items[0].ID, QuantityReturned: dec("1")}},
	})
	require.NoError(t, err)

	full, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{ReturnType: "FULL"})
	require.NoError(t, err)
	require.Len(t, full.Items, 1)
	assert.True(t, full.Items[0].QuantityReturned.Equal(dec("2")))

	current, err := svc.Current(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Items)
	assert.True(t, current.TotalAmount.IsZero())

	_, err = svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{ReturnType: "FULL"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReturnService_RecordRejections(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	line := ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("2"), UnitPrice: dec("50")}

	t.Run("draft document", func(t *testing.T) {
		store := newMemStore()
		svc := newReturnServiceForTest(store, nil)
		doc := seedSale(t, store, tenantID, false, line)

		_, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
			ReturnType: "PARTIAL",
			Items:      []ReturnItemRequest{{LineItemID: doc.Items[0].ID, QuantityReturned: dec("1")}},
		})
		require.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("more than remains", func(t *testing.T) {
		store := newMemStore()
		svc := newReturnServiceForTest(store, nil)
		doc := seedSale(t, store, tenantID, true, line)
		item := []ReturnItemRequest{{LineItemID: doc.Items[0].ID, QuantityReturned: dec("2")}}

		_, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{ReturnType: "PARTIAL", Items: item})
		require.NoError(t, err)
		_, err = svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{ReturnType: "PARTIAL", Items: item})
		require.ErrorIs(t, err, ledger.ErrReturnExceedsQty)
	})

	t.Run("line not on the document", func(t *testing.T) {
		store := newMemStore()
		svc := newReturnServiceForTest(store, nil)
		doc := seedSale(t, store, tenantID, true, line)

		_, err := svc.Record(ctx, tenantID, doc.ID, RecordReturnRequest{
			ReturnType: "PARTIAL",
			Items:      []ReturnItemRequest{{LineItemID: uuid.New(), QuantityReturned: dec("1")}},
		})
		require.ErrorIs(t, err, ledger.ErrInvalidLineItem)
	})

	t.Run("unknown document", func(t *testing.T) {
		svc := newReturnServiceForTest(newMemStore(), nil)
		_, err := svc.Record(ctx, tenantID, uuid.New(), RecordReturnRequest{ReturnType: "FULL"})
		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReturnService_ReplayUnknownReturn(t *testing.T) {
	store := newMemStore()
	svc := newReturnServiceForTest(store, nil)
	tenantID := uuid.New()
	doc := seedSale(t, store, tenantID, true, ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("1"), UnitPrice: dec("5")})

	missing := uuid.New()
	_, err := svc.StateAfter(context.Background(), tenantID, doc.ID, &missing)
	require.ErrorIs(t, err, ledger.ErrReturnNotFound)
}

func TestReturnService_ReplayDetectsSequenceGap(t *testing.T) {
	store := newMemStore()
	svc := newReturnServiceForTest(store, nil)
	tenantID := uuid.New()
	doc := seedSale(t, store, tenantID, true, ledger.LineItemInput{ProductRef: "SKU-1", Quantity: dec("3"), UnitPrice: dec("5")})

	store.returns = append(store.returns, ledger.Return{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DocumentID: doc.ID,
		SequenceNo: 2,
		ReturnType: ledger.ReturnTypePartial,
		Items:      []ledger.ReturnItem{{LineItemID: doc.Items[0].ID, QuantityReturned: dec("1")}},
	})

	_, err := svc.StateAfter(context.Background(), tenantID, doc.ID, nil)
	require.ErrorIs(t, err, ledger.ErrSequenceGap)
}
