package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReturnRepository implements ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// Create appends a return with its items. A duplicate sequence number for
// the document is rejected by the unique index.
func (r *GormReturnRepository) Create(ctx context.Context, ret *ledger.Return) error {
	return r.db.WithContext(ctx).Create(models.ReturnModelFromDomain(ret)).Error
}

// FindByIDForTenant finds a return by ID within a tenant
func (r *GormReturnRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Return, error) {
	var model models.ReturnModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByDocument returns the return history of a document ordered by sequence
func (r *GormReturnRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledger.Return, error) {
	var rows []models.ReturnModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("sequence_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	returns := make([]ledger.Return, len(rows))
	for i := range rows {
		returns[i] = *rows[i].ToDomain()
	}
	return returns, nil
}

// Ensure GormReturnRepository implements ReturnRepository
var _ ledger.ReturnRepository = (*GormReturnRepository)(nil)
