package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIssueDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func newDocumentServiceForTest(store *memStore, pub *recordingPublisher, opts ...ServiceOption) *DocumentService {
	return NewDocumentService(store.scope(), memDocuments{store}, publisherOf(pub), opts...)
}

// publisherOf keeps a nil recorder from becoming a non-nil interface
func publisherOf(pub *recordingPublisher) shared.EventPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

func createRequest(kind string, items ...LineItemRequest) CreateDocumentRequest {
	due := testIssueDate.AddDate(0, 0, 30)
	issue := testIssueDate
	return CreateDocumentRequest{
		Kind:            kind,
		CounterpartyRef: "CUST-1",
		IssueDate:       &issue,
		DueDate:         &due,
		Currency:        "USD",
		Items:           items,
		Declared:        declaredFor(items...),
	}
}

func TestDocumentService_Create(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newDocumentServiceForTest(store, pub)
	tenantID := uuid.New()

	resp, err := svc.Create(context.Background(), tenantID, createRequest("INVOICE", lineReq("SKU-1", "2", "100", "0", "15")))
	require.NoError(t, err)

	assert.Equal(t, "INV-202609-0001", resp.DocumentNumber)
	assert.Equal(t, "DRAFT", resp.Status)
	assert.Equal(t, "UNPAID", resp.PaymentStatus)
	assert.True(t, resp.Subtotal.Equal(dec("200")))
	assert.True(t, resp.TaxAmount.Equal(dec("15")))
	assert.True(t, resp.TotalAmount.Equal(dec("215")))
	assert.True(t, resp.BalanceAmount.Equal(dec("215")))
	require.Len(t, resp.Items, 1)

	stored := store.doc(resp.ID)
	assert.Equal(t, "INV-202609-0001", stored.DocumentNumber)
	assert.Equal(t, []string{ledger.EventTypeDocumentCreated}, pub.types())
}

func TestDocumentService_Create_DeclaredTotalTolerance(t *testing.T) {
	tenantID := uuid.New()
	items := []LineItemRequest{lineReq("SKU-1", "2", "100", "0", "15")}

	t.Run("within a cent is accepted and the computed total stored", func(t *testing.T) {
		store := newMemStore()
		svc := newDocumentServiceForTest(store, nil)
		req := createRequest("INVOICE", items...)
		req.Declared.TotalAmount = dec("215.01")

		resp, err := svc.Create(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.True(t, resp.TotalAmount.Equal(dec("215")))
	})

	t.Run("beyond tolerance is rejected before anything is stored", func(t *testing.T) {
		store := newMemStore()
		svc := newDocumentServiceForTest(store, nil)
		req := createRequest("INVOICE", items...)
		req.Declared.TotalAmount = dec("216")

		_, err := svc.Create(context.Background(), tenantID, req)
		require.ErrorIs(t, err, ledger.ErrInconsistentTotals)
		assert.Empty(t, store.documents)
	})
}

func TestDocumentService_Create_RetriesNumberingCollision(t *testing.T) {
	store := newMemStore()
	store.taken["SAL-202609-0001"] = true
	svc := newDocumentServiceForTest(store, nil)

	resp, err := svc.Create(context.Background(), uuid.New(), createRequest("SALE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)
	assert.Equal(t, "SAL-202609-0002", resp.DocumentNumber)
}

func TestDocumentService_Create_GivesUpAfterRetries(t *testing.T) {
	store := newMemStore()
	store.taken["SAL-202609-0001"] = true
	store.taken["SAL-202609-0002"] = true
	svc := newDocumentServiceForTest(store, nil, WithNumberingRetries(2))

	_, err := svc.Create(context.Background(), uuid.New(), createRequest("SALE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.ErrorIs(t, err, ledger.ErrNumberingCollision)
	assert.Empty(t, store.documents)
}

func TestDocumentService_Create_UnknownKind(t *testing.T) {
	svc := newDocumentServiceForTest(newMemStore(), nil)
	_, err := svc.Create(context.Background(), uuid.New(), createRequest("QUOTE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ledger.CodeInvalidDocumentKind, de.Code)
}

func TestDocumentService_Create_CatalogSnapshot(t *testing.T) {
	catalog := stubCatalog{products: map[string]ledger.ProductSnapshot{
		"SKU-1": {Ref: "SKU-1", Name: "Widget", SKU: "W-001", Unit: "pcs"},
	}}
	store := newMemStore()
	svc := newDocumentServiceForTest(store, nil, WithCatalog(catalog))

	resp, err := svc.Create(context.Background(), uuid.New(), createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Widget", resp.Items[0].ProductName)
	assert.Equal(t, "W-001", resp.Items[0].ProductSKU)
	assert.Equal(t, "pcs", resp.Items[0].Unit)

	_, err = svc.Create(context.Background(), uuid.New(), createRequest("INVOICE", lineReq("SKU-404", "1", "10", "0", "0")))
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ledger.CodeUnknownProduct, de.Code)
}

func TestDocumentService_Create_CatalogFailure(t *testing.T) {
	svc := newDocumentServiceForTest(newMemStore(), nil, WithCatalog(stubCatalog{err: errBoom}))
	_, err := svc.Create(context.Background(), uuid.New(), createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.ErrorIs(t, err, errBoom)
}

func TestDocumentService_Create_UnknownCounterparty(t *testing.T) {
	svc := newDocumentServiceForTest(newMemStore(), nil, WithCounterparties(stubCounterparties{"CUST-2": true}))
	_, err := svc.Create(context.Background(), uuid.New(), createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ledger.CodeUnknownCounterparty, de.Code)
}

func TestDocumentService_Create_PublishFailureDoesNotFail(t *testing.T) {
	store := newMemStore()
	svc := newDocumentServiceForTest(store, &recordingPublisher{err: errBoom})

	resp, err := svc.Create(context.Background(), uuid.New(), createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)
	assert.Contains(t, store.documents, resp.ID)
}

func TestDocumentService_AmendOnlyInDraft(t *testing.T) {
	store := newMemStore()
	svc := newDocumentServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := svc.Create(ctx, tenantID, createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)

	items := []LineItemRequest{lineReq("SKU-1", "3", "10", "0", "0"), lineReq("SKU-2", "1", "5", "1", "0")}
	amended, err := svc.Amend(ctx, tenantID, created.ID, AmendDocumentRequest{
		Items:    items,
		Declared: declaredFor(items...),
		Version:  created.Version,
	})
	require.NoError(t, err)
	assert.True(t, amended.TotalAmount.Equal(dec("34")))
	assert.Equal(t, created.Version+1, amended.Version)

	_, err = svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "send"})
	require.NoError(t, err)

	_, err = svc.Amend(ctx, tenantID, created.ID, AmendDocumentRequest{Items: items, Declared: declaredFor(items...)})
	require.ErrorIs(t, err, ledger.ErrDocumentLocked)
}

func TestDocumentService_AmendStaleVersion(t *testing.T) {
	store := newMemStore()
	svc := newDocumentServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := svc.Create(ctx, tenantID, createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)

	items := []LineItemRequest{lineReq("SKU-1", "2", "10", "0", "0")}
	_, err = svc.Amend(ctx, tenantID, created.ID, AmendDocumentRequest{
		Items:    items,
		Declared: declaredFor(items...),
		Version:  created.Version + 5,
	})
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestDocumentService_ApplyEvent(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newDocumentServiceForTest(store, pub)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := svc.Create(ctx, tenantID, createRequest("ORDER", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)

	resp, err := svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "SUBMIT"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", resp.Status)

	resp, err = svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "ACCEPT"})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", resp.Status)
	assert.Len(t, pub.ofType(ledger.EventTypeDocumentStatusChanged), 2)

	t.Run("payment events are reserved", func(t *testing.T) {
		_, err := svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "SETTLE"})
		require.ErrorIs(t, err, ledger.ErrIllegalTransition)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "ARCHIVE"})
		require.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("event not in the table", func(t *testing.T) {
		_, err := svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "SEND"})
		require.ErrorIs(t, err, ledger.ErrIllegalTransition)
	})
}

func TestDocumentService_Cancel(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newDocumentServiceForTest(store, pub)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := svc.Create(ctx, tenantID, createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, tenantID, created.ID, CancelDocumentRequest{Reason: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	resp, err := svc.Cancel(ctx, tenantID, created.ID, CancelDocumentRequest{Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, "duplicate", resp.CancelReason)
	assert.NotNil(t, resp.CancelledAt)
	assert.Len(t, pub.ofType(ledger.EventTypeDocumentCancelled), 1)

	_, err = svc.ApplyEvent(ctx, tenantID, created.ID, ApplyEventRequest{Event: "SEND"})
	require.ErrorIs(t, err, ledger.ErrIllegalTransition)
}

func TestDocumentService_GetAndList(t *testing.T) {
	store := newMemStore()
	svc := newDocumentServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	inv, err := svc.Create(ctx, tenantID, createRequest("INVOICE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenantID, createRequest("SALE", lineReq("SKU-1", "1", "10", "0", "0")))
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.DocumentNumber, got.DocumentNumber)

	byNumber, err := svc.GetByNumber(ctx, tenantID, inv.DocumentNumber)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)

	_, err = svc.GetByID(ctx, uuid.New(), inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	list, total, err := svc.List(ctx, tenantID, DocumentListFilter{Kinds: []string{"invoice"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Items)

	_, _, err = svc.List(ctx, tenantID, DocumentListFilter{Kinds: []string{"QUOTE"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.List(ctx, tenantID, DocumentListFilter{OrderBy: "payer"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
