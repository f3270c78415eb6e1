package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentNumberGenerator issues document numbers from the
// document_sequences table. The counter row for (tenant, kind, period) is
// locked while it is advanced, so concurrent creators are serialised.
type GormDocumentNumberGenerator struct {
	db *gorm.DB
}

// NewGormDocumentNumberGenerator creates a new GormDocumentNumberGenerator
func NewGormDocumentNumberGenerator(db *gorm.DB) *GormDocumentNumberGenerator {
	return &GormDocumentNumberGenerator{db: db}
}

// Next returns the next number for kind in the period containing at
func (g *GormDocumentNumberGenerator) Next(ctx context.Context, tenantID uuid.UUID, kind ledger.DocumentKind, at time.Time) (string, error) {
	period := ledger.NumberingPeriod(at)
	var seq int64

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.DocumentSequenceModel{
			TenantID:  tenantID,
			Kind:      string(kind),
			Period:    period,
			UpdatedAt: time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var current models.DocumentSequenceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND kind = ? AND period = ?", tenantID, string(kind), period).
			Take(&current).Error; err != nil {
			return err
		}

		seq = current.LastSeq + 1
		return tx.Model(&models.DocumentSequenceModel{}).
			Where("tenant_id = ? AND kind = ? AND period = ?", tenantID, string(kind), period).
			Updates(map[string]any{"last_seq": seq, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return "", err
	}
	return ledger.FormatDocumentNumber(kind, period, seq), nil
}

// Ensure GormDocumentNumberGenerator implements DocumentNumberGenerator
var _ ledger.DocumentNumberGenerator = (*GormDocumentNumberGenerator)(nil)
