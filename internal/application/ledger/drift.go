package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Err returns LEDGER_DRIFT when the report found drift that was not repaired
func (r DriftReport) Err() error {
	if r.Drifted && !r.Repaired {
		return shared.NewDomainErrorf(ledger.CodeLedgerDrift,
			"%s stores %s but its allocations sum to %s",
			r.AggregateID, r.Stored.StringFixed(2), r.Derived.StringFixed(2))
	}
	return nil
}

// RecomputeDocument derives the paid amount of a document from its
// allocation rows and, when repair is set, overwrites the stored value
func (s *PaymentService) RecomputeDocument(ctx context.Context, tenantID, documentID uuid.UUID, repair bool) (*DriftReport, error) {
	var report DriftReport
	var doc *ledger.Document
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		rows, err := repos.Allocations().FindByDocument(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		derived := ledger.SumSigned(rows)
		report = DriftReport{
			AggregateID: documentID,
			Stored:      doc.PaidAmount,
			Derived:     derived,
			Drifted:     !derived.Equal(doc.PaidAmount),
		}
		if !report.Drifted || !repair {
			return nil
		}
		if err := doc.ApplyRecomputedPaid(derived); err != nil {
			return err
		}
		if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
			return err
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	logDrift(ctx, "document", report)
	return &report, nil
}

// RecomputePayment derives the allocated amount of a payment from its
// allocation rows and, when repair is set, overwrites the stored value
func (s *PaymentService) RecomputePayment(ctx context.Context, tenantID, paymentID uuid.UUID, repair bool) (*DriftReport, error) {
	var report DriftReport
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.Payments().FindByIDForUpdate(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		rows, err := repos.Allocations().FindByPayment(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		derived := ledger.SumSigned(rows)
		report = DriftReport{
			AggregateID: paymentID,
			Stored:      payment.AllocatedAmount,
			Derived:     derived,
			Drifted:     !derived.Equal(payment.AllocatedAmount),
		}
		if !report.Drifted || !repair {
			return nil
		}
		if err := payment.ApplyRecomputedAllocated(derived); err != nil {
			return err
		}
		if err := repos.Payments().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	logDrift(ctx, "payment", report)
	return &report, nil
}

// Verify recomputes every document and payment of a tenant and returns the
// reports that found drift
func (s *PaymentService) Verify(ctx context.Context, tenantID uuid.UUID, repair bool) ([]DriftReport, error) {
	var drifted []DriftReport

	for page := 1; ; page++ {
		docs, total, err := s.documents.FindAllForTenant(ctx, tenantID, ledger.DocumentFilter{
			Pagination: shared.Pagination{Page: page, PageSize: shared.MaxPageSize},
			OrderBy:    ledger.OrderByCreatedAt,
			OrderDir:   shared.SortAsc,
		})
		if err != nil {
			return nil, err
		}
		for i := range docs {
			report, err := s.RecomputeDocument(ctx, tenantID, docs[i].ID, repair)
			if err != nil {
				return nil, err
			}
			if report.Drifted {
				drifted = append(drifted, *report)
			}
		}
		if int64(page*shared.MaxPageSize) >= total || len(docs) == 0 {
			break
		}
	}

	for page := 1; ; page++ {
		payments, total, err := s.payments.FindAllForTenant(ctx, tenantID, ledger.PaymentFilter{
			Pagination: shared.Pagination{Page: page, PageSize: shared.MaxPageSize},
		})
		if err != nil {
			return nil, err
		}
		for i := range payments {
			report, err := s.RecomputePayment(ctx, tenantID, payments[i].ID, repair)
			if err != nil {
				return nil, err
			}
			if report.Drifted {
				drifted = append(drifted, *report)
			}
		}
		if int64(page*shared.MaxPageSize) >= total || len(payments) == 0 {
			break
		}
	}
	return drifted, nil
}

func logDrift(ctx context.Context, what string, r DriftReport) {
	if !r.Drifted {
		return
	}
	logger.L(ctx).Warn("Ledger drift detected",
		zap.String("aggregate", what),
		zap.String("aggregate_id", r.AggregateID.String()),
		zap.String("stored", r.Stored.StringFixed(2)),
		zap.String("derived", r.Derived.StringFixed(2)),
		zap.String("difference", r.Stored.Sub(r.Derived).Abs().StringFixed(2)),
		zap.Bool("repaired", r.Repaired),
	)
}
