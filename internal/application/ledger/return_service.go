package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReturnService appends returns to documents and replays a document's
// return history
type ReturnService struct {
	txScope   TransactionScope
	documents ledger.DocumentRepository
	returns   ledger.ReturnRepository
	publisher shared.EventPublisher
	opts      serviceOptions
}

// NewReturnService creates a new ReturnService
func NewReturnService(
	txScope TransactionScope,
	documents ledger.DocumentRepository,
	returns ledger.ReturnRepository,
	publisher shared.EventPublisher,
	opts ...ServiceOption,
) *ReturnService {
	return &ReturnService{
		txScope:   txScope,
		documents: documents,
		returns:   returns,
		publisher: publisher,
		opts:      applyOptions(opts),
	}
}

// Record appends a return. The sequence number is assigned while the
// document row is locked, so concurrent returns cannot share one.
func (s *ReturnService) Record(ctx context.Context, tenantID, documentID uuid.UUID, req RecordReturnRequest) (resp *ReturnResponse, err error) {
	returnType := ledger.ReturnType(strings.ToUpper(req.ReturnType))
	ctx, span := telemetry.StartSpan(ctx, "ledger.return.record",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
		telemetry.AttrReturnType.String(string(returnType)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	items := make([]ledger.ReturnItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = ledger.ReturnItem{LineItemID: item.LineItemID, QuantityReturned: item.QuantityReturned}
	}

	var ret *ledger.Return
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		doc, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		history, err := repos.Returns().FindByDocument(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		ret, err = ledger.NewReturn(doc, history, ledger.RecordReturnParams{
			ReturnType:   returnType,
			Items:        items,
			RefundAmount: req.RefundAmount,
			Reason:       req.Reason,
		})
		if err != nil {
			return err
		}
		return repos.Returns().Create(ctx, ret)
	})
	if err != nil {
		return nil, err
	}

	publishCommitted(ctx, s.publisher, []shared.DomainEvent{ledger.NewReturnRecordedEvent(ret)})
	s.opts.metrics.ReturnRecorded(ctx, string(ret.ReturnType))
	logger.L(ctx).Info("Return recorded",
		zap.String("document_id", documentID.String()),
		zap.String("return_id", ret.ID.String()),
		zap.Int("sequence_no", ret.SequenceNo),
		zap.String("refund_amount", ret.RefundAmount.StringFixed(2)),
	)
	out := ToReturnResponse(ret)
	return &out, nil
}

// List returns the document's returns in sequence order
func (s *ReturnService) List(ctx context.Context, tenantID, documentID uuid.UUID) ([]ReturnResponse, error) {
	if _, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID); err != nil {
		return nil, err
	}
	returns, err := s.returns.FindByDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]ReturnResponse, len(returns))
	for i := range returns {
		out[i] = ToReturnResponse(&returns[i])
	}
	return out, nil
}

// StateBefore replays the document up to, not including, returnID. A nil
// returnID yields the document as issued.
func (s *ReturnService) StateBefore(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*SnapshotResponse, error) {
	return s.replay(ctx, "ledger.return.state_before", tenantID, documentID, returnID, ledger.StateBefore)
}

// StateAfter replays the document up to and including returnID. A nil
// returnID folds the whole history.
func (s *ReturnService) StateAfter(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*SnapshotResponse, error) {
	return s.replay(ctx, "ledger.return.state_after", tenantID, documentID, returnID, ledger.StateAfter)
}

// Current nets every return in one pass. It must equal StateAfter with a
// nil boundary.
func (s *ReturnService) Current(ctx context.Context, tenantID, documentID uuid.UUID) (*SnapshotResponse, error) {
	doc, returns, err := s.load(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	snap, err := ledger.CurrentState(doc, returns)
	if err != nil {
		return nil, err
	}
	out := ToSnapshotResponse(snap)
	return &out, nil
}

type replayFunc func(*ledger.Document, []ledger.Return, *uuid.UUID) (*ledger.Snapshot, error)

func (s *ReturnService) replay(
	ctx context.Context,
	spanName string,
	tenantID, documentID uuid.UUID,
	returnID *uuid.UUID,
	fold replayFunc,
) (resp *SnapshotResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, spanName,
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	doc, returns, err := s.load(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	snap, err := fold(doc, returns, returnID)
	if err != nil {
		if errors.Is(err, ledger.ErrSequenceGap) {
			logger.L(ctx).Error("Return history is not contiguous",
				zap.String("document_id", documentID.String()),
				zap.Int("returns", len(returns)),
				zap.Error(err),
			)
		}
		return nil, err
	}
	out := ToSnapshotResponse(snap)
	return &out, nil
}

func (s *ReturnService) load(ctx context.Context, tenantID, documentID uuid.UUID) (*ledger.Document, []ledger.Return, error) {
	doc, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, nil, err
	}
	returns, err := s.returns.FindByDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, returns, nil
}
