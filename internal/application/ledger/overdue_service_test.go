package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleDocuments serves a fixed candidate list, as if it had been selected
// before other transactions changed the rows
type staleDocuments struct {
	memDocuments
	candidates []ledger.Document
}

func (s staleDocuments) FindOverdueCandidates(context.Context, uuid.UUID, ledger.OverdueQuery) ([]ledger.Document, error) {
	return s.candidates, nil
}

func TestOverdueService_ScanMarksPastDueDocuments(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewOverdueService(store.scope(), memDocuments{store}, pub)
	ctx := context.Background()
	tenantID := uuid.New()

	dueDate := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC)
	pastDue := seedInvoice(t, store, tenantID, "INV-202609-0001", "CUST-1", "100", dueDate)
	notYetDue := seedInvoice(t, store, tenantID, "INV-202609-0002", "CUST-1", "100", now.AddDate(0, 0, 1))

	result, err := svc.ScanAt(ctx, tenantID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Transitioned)

	marked := store.doc(pastDue.ID)
	assert.Equal(t, ledger.StatusOverdue, marked.Status)
	require.NotNil(t, marked.OverdueAt)
	assert.Equal(t, ledger.StatusSent, store.doc(notYetDue.ID).Status)

	overdue := pub.ofType(ledger.EventTypeDocumentOverdue)
	require.Len(t, overdue, 1)
	evt := overdue[0].(*ledger.DocumentOverdueEvent)
	assert.Equal(t, pastDue.ID, evt.DocumentID)
	assert.Equal(t, 5, evt.DaysOverdue)
	assert.True(t, evt.BalanceAmount.Equal(dec("100")))

	again, err := svc.ScanAt(ctx, tenantID, now)
	require.NoError(t, err)
	assert.Zero(t, again.Transitioned)
	assert.Len(t, pub.ofType(ledger.EventTypeDocumentOverdue), 1)
}

func TestOverdueService_SkipsDocumentsWithoutBalance(t *testing.T) {
	store := newMemStore()
	svc := NewOverdueService(store.scope(), memDocuments{store}, nil)
	paySvc := newPaymentServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	doc := seedInvoice(t, store, tenantID, "INV-202609-0001", "CUST-1", "100", testIssueDate)
	_, err := paySvc.PayInFull(ctx, tenantID, doc.ID, DocumentPaymentRequest{Method: "CASH"})
	require.NoError(t, err)

	result, err := svc.ScanAt(ctx, tenantID, testIssueDate.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Equal(t, ledger.StatusPaid, store.doc(doc.ID).Status)
}

func TestOverdueService_RechecksUnderLock(t *testing.T) {
	store := newMemStore()
	paySvc := newPaymentServiceForTest(store, nil)
	ctx := context.Background()
	tenantID := uuid.New()
	now := testIssueDate.AddDate(0, 1, 0)

	doc := seedInvoice(t, store, tenantID, "INV-202609-0001", "CUST-1", "100", testIssueDate)
	selected := store.doc(doc.ID)

	// Paid after the scan selected it
	_, err := paySvc.PayInFull(ctx, tenantID, doc.ID, DocumentPaymentRequest{Method: "CASH"})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewOverdueService(store.scope(), staleDocuments{memDocuments{store}, []ledger.Document{selected}}, pub)
	result, err := svc.ScanAt(ctx, tenantID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Zero(t, result.Transitioned)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, ledger.StatusPaid, store.doc(doc.ID).Status)
	assert.Empty(t, pub.events)
}

func TestOverdueService_VanishedCandidateIsSkipped(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	ghost := ledger.Document{}
	ghost.ID = uuid.New()
	ghost.TenantID = tenantID

	svc := NewOverdueService(store.scope(), staleDocuments{memDocuments{store}, []ledger.Document{ghost}}, nil)
	result, err := svc.ScanAt(context.Background(), tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestOverdueService_ScanUsesClock(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	doc := seedInvoice(t, store, tenantID, "INV-202609-0001", "CUST-1", "100", testIssueDate)

	clock := func() time.Time { return testIssueDate.AddDate(0, 0, 2) }
	svc := NewOverdueService(store.scope(), memDocuments{store}, nil, WithClock(clock))

	result, err := svc.Scan(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, ledger.StatusOverdue, store.doc(doc.ID).Status)
}

func TestOverdueService_ScanAllTenants(t *testing.T) {
	store := newMemStore()
	first, second := uuid.New(), uuid.New()
	seedInvoice(t, store, first, "INV-202609-0001", "CUST-1", "100", testIssueDate)
	seedInvoice(t, store, second, "INV-202609-0001", "CUST-9", "100", testIssueDate)
	seedInvoice(t, store, second, "INV-202609-0002", "CUST-9", "100", testIssueDate.AddDate(1, 0, 0))

	clock := func() time.Time { return testIssueDate.AddDate(0, 0, 7) }
	svc := NewOverdueService(store.scope(), memDocuments{store}, nil, WithClock(clock))

	results, err := svc.ScanAllTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	transitioned := map[uuid.UUID]int{}
	for _, r := range results {
		transitioned[r.TenantID] = r.Transitioned
	}
	assert.Equal(t, map[uuid.UUID]int{first: 1, second: 1}, transitioned)
}
