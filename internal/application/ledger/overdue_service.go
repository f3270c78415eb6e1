package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OverdueService flips past-due documents with a balance to OVERDUE.
//
// Candidates are selected without locks. Each one is then re-read under its
// row lock in its own transaction and every condition is checked again, so
// a document paid between selection and transition is left alone. Running
// a scan twice transitions nothing the second time.
type OverdueService struct {
	txScope   TransactionScope
	documents ledger.DocumentRepository
	publisher shared.EventPublisher
	opts      serviceOptions
}

// NewOverdueService creates a new OverdueService
func NewOverdueService(
	txScope TransactionScope,
	documents ledger.DocumentRepository,
	publisher shared.EventPublisher,
	opts ...ServiceOption,
) *OverdueService {
	return &OverdueService{
		txScope:   txScope,
		documents: documents,
		publisher: publisher,
		opts:      applyOptions(opts),
	}
}

// Scan runs one pass for a tenant at the service clock's now
func (s *OverdueService) Scan(ctx context.Context, tenantID uuid.UUID) (*ScanResult, error) {
	return s.ScanAt(ctx, tenantID, s.opts.now())
}

// ScanAt runs one pass for a tenant as of now
func (s *OverdueService) ScanAt(ctx context.Context, tenantID uuid.UUID, now time.Time) (result *ScanResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.overdue.scan",
		telemetry.AttrTenantID.String(tenantID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	ctx = logger.WithTenantID(ctx, tenantID)
	start := time.Now()
	result = &ScanResult{TenantID: tenantID}
	defer func() {
		result.Duration = time.Since(start)
		s.opts.metrics.OverdueScan(ctx, result.Transitioned, result.Duration, err)
	}()

	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "overdue_scan"}, func(c context.Context) {
		var candidates []ledger.Document
		candidates, err = s.documents.FindOverdueCandidates(c, tenantID, ledger.OverdueQuery{
			Now:      now,
			Statuses: ledger.OverdueCandidateStatuses(),
			Limit:    s.opts.overdueBatchSize,
		})
		if err != nil {
			err = fmt.Errorf("failed to select overdue candidates: %w", err)
			return
		}
		result.Scanned = len(candidates)
		for i := range candidates {
			s.markOne(c, tenantID, candidates[i].ID, now, result)
		}
	})
	if err != nil {
		return result, err
	}

	if result.Scanned > 0 {
		logger.L(ctx).Info("Overdue scan finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("transitioned", result.Transitioned),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Duration("took", time.Since(start)),
		)
	}
	return result, nil
}

// markOne transitions one candidate in its own transaction
func (s *OverdueService) markOne(ctx context.Context, tenantID, documentID uuid.UUID, now time.Time, result *ScanResult) {
	var doc *ledger.Document
	skipped := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		if !doc.IsOverdueAt(now) {
			skipped = true
			return nil
		}
		if err := doc.MarkOverdue(now); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})

	switch {
	case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, shared.ErrNotFound):
		result.Skipped++
		logger.L(ctx).Debug("Overdue candidate changed during scan",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
	case err != nil:
		result.Failed++
		logger.L(ctx).Error("Failed to mark document overdue",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
	case skipped:
		result.Skipped++
	default:
		result.Transitioned++
		events := drainEvents(doc)
		recordTransitions(ctx, s.opts.metrics, events)
		publishCommitted(ctx, s.publisher, events)
	}
}

// ScanAllTenants runs Scan for every tenant with open documents. A failing
// tenant does not stop the others; the first error is returned.
func (s *OverdueService) ScanAllTenants(ctx context.Context) ([]ScanResult, error) {
	tenants, err := s.documents.TenantsWithOpenDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	now := s.opts.now()
	results := make([]ScanResult, 0, len(tenants))
	var firstErr error
	for _, tenantID := range tenants {
		res, err := s.ScanAt(ctx, tenantID, now)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, firstErr
}
