package handler

import (
	"context"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockDocumentService implements DocumentService for testing
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, tenantID uuid.UUID, req ledgerapp.CreateDocumentRequest) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Amend(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.AmendDocumentRequest) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) ApplyEvent(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.ApplyEventRequest) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Cancel(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.CancelDocumentRequest) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, tenantID, documentID uuid.UUID) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*ledgerapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentResponse), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, tenantID uuid.UUID, filter ledgerapp.DocumentListFilter) ([]ledgerapp.DocumentResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]ledgerapp.DocumentResponse), args.Get(1).(int64), args.Error(2)
}

// MockPaymentService implements PaymentService for testing
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Receive(ctx context.Context, tenantID uuid.UUID, req ledgerapp.ReceivePaymentRequest) (*ledgerapp.PaymentResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) GetByID(ctx context.Context, tenantID, paymentID uuid.UUID) (*ledgerapp.PaymentResponse, error) {
	args := m.Called(ctx, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, tenantID uuid.UUID, filter ledgerapp.PaymentListFilter) ([]ledgerapp.PaymentResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]ledgerapp.PaymentResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentService) ListPaymentAllocations(ctx context.Context, tenantID, paymentID uuid.UUID) ([]ledgerapp.AllocationResponse, error) {
	args := m.Called(ctx, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledgerapp.AllocationResponse), args.Error(1)
}

func (m *MockPaymentService) ListDocumentAllocations(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledgerapp.AllocationResponse, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledgerapp.AllocationResponse), args.Error(1)
}

func (m *MockPaymentService) Allocate(ctx context.Context, tenantID, paymentID uuid.UUID, req ledgerapp.AllocateRequest) (*ledgerapp.AllocationResult, error) {
	args := m.Called(ctx, tenantID, paymentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.AllocationResult), args.Error(1)
}

func (m *MockPaymentService) AllocateFIFO(ctx context.Context, tenantID, paymentID uuid.UUID) (*ledgerapp.FIFOResult, error) {
	args := m.Called(ctx, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.FIFOResult), args.Error(1)
}

func (m *MockPaymentService) PayInFull(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.DocumentPaymentRequest) (*ledgerapp.DocumentPaymentResult, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentPaymentResult), args.Error(1)
}

func (m *MockPaymentService) PayPartially(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.DocumentPaymentRequest) (*ledgerapp.DocumentPaymentResult, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DocumentPaymentResult), args.Error(1)
}

func (m *MockPaymentService) Reverse(ctx context.Context, tenantID, allocationID uuid.UUID, req ledgerapp.ReverseAllocationRequest) (*ledgerapp.AllocationResult, error) {
	args := m.Called(ctx, tenantID, allocationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.AllocationResult), args.Error(1)
}

func (m *MockPaymentService) Reallocate(ctx context.Context, tenantID, allocationID uuid.UUID, req ledgerapp.ReallocateRequest) (*ledgerapp.ReallocationResult, error) {
	args := m.Called(ctx, tenantID, allocationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.ReallocationResult), args.Error(1)
}

func (m *MockPaymentService) RecomputeDocument(ctx context.Context, tenantID, documentID uuid.UUID, repair bool) (*ledgerapp.DriftReport, error) {
	args := m.Called(ctx, tenantID, documentID, repair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DriftReport), args.Error(1)
}

func (m *MockPaymentService) RecomputePayment(ctx context.Context, tenantID, paymentID uuid.UUID, repair bool) (*ledgerapp.DriftReport, error) {
	args := m.Called(ctx, tenantID, paymentID, repair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.DriftReport), args.Error(1)
}

func (m *MockPaymentService) Verify(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ledgerapp.DriftReport, error) {
	args := m.Called(ctx, tenantID, repair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledgerapp.DriftReport), args.Error(1)
}

// MockReturnService implements ReturnService for testing
type MockReturnService struct {
	mock.Mock
}

func (m *MockReturnService) Record(ctx context.Context, tenantID, documentID uuid.UUID, req ledgerapp.RecordReturnRequest) (*ledgerapp.ReturnResponse, error) {
	args := m.Called(ctx, tenantID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.ReturnResponse), args.Error(1)
}

func (m *MockReturnService) List(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledgerapp.ReturnResponse, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledgerapp.ReturnResponse), args.Error(1)
}

func (m *MockReturnService) StateBefore(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error) {
	args := m.Called(ctx, tenantID, documentID, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.SnapshotResponse), args.Error(1)
}

func (m *MockReturnService) StateAfter(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error) {
	args := m.Called(ctx, tenantID, documentID, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.SnapshotResponse), args.Error(1)
}

func (m *MockReturnService) Current(ctx context.Context, tenantID, documentID uuid.UUID) (*ledgerapp.SnapshotResponse, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.SnapshotResponse), args.Error(1)
}

// MockOverdueService implements OverdueService for testing
type MockOverdueService struct {
	mock.Mock
}

func (m *MockOverdueService) Scan(ctx context.Context, tenantID uuid.UUID) (*ledgerapp.ScanResult, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapp.ScanResult), args.Error(1)
}

var (
	_ DocumentService = (*MockDocumentService)(nil)
	_ PaymentService  = (*MockPaymentService)(nil)
	_ ReturnService   = (*MockReturnService)(nil)
	_ OverdueService  = (*MockOverdueService)(nil)
)
