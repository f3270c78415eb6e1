package handler

import (
	"context"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
)

// DocumentService is what the document endpoints need from the application
// layer. *ledgerapp.DocumentService satisfies it.
type DocumentService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req ledgerapp.CreateDocumentRequest) (*ledgerapp.DocumentResponse, error)
	Amend(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.AmendDocumentRequest) (*ledgerapp.DocumentResponse, error)
	ApplyEvent(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.ApplyEventRequest) (*ledgerapp.DocumentResponse, error)
	Cancel(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.CancelDocumentRequest) (*ledgerapp.DocumentResponse, error)
	GetByID(ctx context.Context, tenantID, documentID uuid.UUID) (*ledgerapp.DocumentResponse, error)
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*ledgerapp.DocumentResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ledgerapp.DocumentListFilter) ([]ledgerapp.DocumentResponse, int64, error)
}

// PaymentService covers payments, allocations and drift checks.
// *ledgerapp.PaymentService satisfies it.
type PaymentService interface {
	Receive(ctx context.Context, tenantID uuid.UUID, req ledgerapp.ReceivePaymentRequest) (*ledgerapp.PaymentResponse, error)
	GetByID(ctx context.Context, tenantID, paymentID uuid.UUID) (*ledgerapp.PaymentResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ledgerapp.PaymentListFilter) ([]ledgerapp.PaymentResponse, int64, error)
	ListPaymentAllocations(ctx context.Context, tenantID, paymentID uuid.UUID) ([]ledgerapp.AllocationResponse, error)
	ListDocumentAllocations(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledgerapp.AllocationResponse, error)
	Allocate(ctx context.Context, tenantID, paymentID uuid.UUID, req ledgerapp.AllocateRequest) (*ledgerapp.AllocationResult, error)
	AllocateFIFO(ctx context.Context, tenantID, paymentID uuid.UUID) (*ledgerapp.FIFOResult, error)
	PayInFull(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.DocumentPaymentRequest) (*ledgerapp.DocumentPaymentResult, error)
	PayPartially(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.DocumentPaymentRequest) (*ledgerapp.DocumentPaymentResult, error)
	Reverse(ctx context.Context, tenantID, allocationID uuid.UUID, req ledgerapp.ReverseAllocationRequest) (*ledgerapp.AllocationResult, error)
	Reallocate(ctx context.Context, tenantID, allocationID uuid.UUID, req ledgerapp.ReallocateRequest) (*ledgerapp.ReallocationResult, error)
	RecomputeDocument(ctx context.Context, tenantID, documentID uuid.UUID, repair bool) (*ledgerapp.DriftReport, error)
	RecomputePayment(ctx context.Context, tenantID, paymentID uuid.UUID, repair bool) (*ledgerapp.DriftReport, error)
	Verify(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ledgerapp.DriftReport, error)
}

// ReturnService records returns and replays documents around them.
// *ledgerapp.ReturnService satisfies it.
type ReturnService interface {
	Record(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.RecordReturnRequest) (*ledgerapp.ReturnResponse, error)
	List(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledgerapp.ReturnResponse, error)
	StateBefore(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error)
	StateAfter(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error)
	Current(ctx context.Context, tenantID, documentID uuid.UUID) (*ledgerapp.SnapshotResponse, error)
}

// OverdueService runs the overdue scan on demand.
// *ledgerapp.OverdueService satisfies it.
type OverdueService interface {
	Scan(ctx context.Context, tenantID uuid.UUID) (*ledgerapp.ScanResult, error)
}

var (
	_ DocumentService = (*ledgerapp.DocumentService)(nil)
	_ PaymentService  = (*ledgerapp.PaymentService)(nil)
	_ ReturnService   = (*ledgerapp.ReturnService)(nil)
	_ OverdueService  = (*ledgerapp.OverdueService)(nil)
)
