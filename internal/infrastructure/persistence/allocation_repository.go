package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM.
// Allocation rows are never updated or deleted.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create appends an allocation row
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *ledger.Allocation) error {
	return r.db.WithContext(ctx).Create(models.AllocationModelFromDomain(allocation)).Error
}

// FindByIDForTenant finds an allocation by ID within a tenant
func (r *GormAllocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByPayment returns every row of a payment in insertion order
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]ledger.Allocation, error) {
	return r.find(ctx, "tenant_id = ? AND payment_id = ?", tenantID, paymentID)
}

// FindByDocument returns every row of a document in insertion order
func (r *GormAllocationRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]ledger.Allocation, error) {
	return r.find(ctx, "tenant_id = ? AND document_id = ?", tenantID, documentID)
}

func (r *GormAllocationRepository) find(ctx context.Context, where string, args ...any) ([]ledger.Allocation, error) {
	var rows []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where(where, args...).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	allocations := make([]ledger.Allocation, len(rows))
	for i := range rows {
		allocations[i] = *rows[i].ToDomain()
	}
	return allocations, nil
}

// ExistsReversalOf reports whether a REVERSAL row references id
func (r *GormAllocationRepository) ExistsReversalOf(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Where("tenant_id = ? AND reverses_id = ? AND kind = ?", tenantID, id, ledger.AllocationKindReversal).
		Count(&count).Error
	return count > 0, err
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ ledger.AllocationRepository = (*GormAllocationRepository)(nil)
