package persistence

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const documentCreateSavepoint = "ledger_document_create"

// closedStatuses never carry an open balance that may be collected
var closedStatuses = []string{string(ledger.StatusDraft), string(ledger.StatusCancelled)}

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *GormDocumentRepository) take(query *gorm.DB) (*ledger.Document, error) {
	var model models.DocumentModel
	if err := preloadItems(query).Take(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a document by ID within a tenant
func (r *GormDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Document, error) {
	return r.take(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a document and locks the row
func (r *GormDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Document, error) {
	return r.take(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByNumber finds a document by document number for a tenant
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*ledger.Document, error) {
	return r.take(r.db.WithContext(ctx).Where("tenant_id = ? AND document_number = ?", tenantID, number))
}

// FindAllForTenant lists documents of a tenant with filtering and the total count
func (r *GormDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DocumentFilter) ([]ledger.Document, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("tenant_id = ?", tenantID), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Pagination.Normalize()
	var docModels []models.DocumentModel
	err := preloadItems(query).
		Clauses(orderBy(string(filter.OrderBy), string(filter.OrderDir), DocumentSortFields, string(ledger.OrderByIssueDate))).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&docModels).Error
	if err != nil {
		return nil, 0, err
	}
	return toDocuments(docModels), total, nil
}

// applyFilter translates every DocumentFilter field into a WHERE clause
func (r *GormDocumentRepository) applyFilter(query *gorm.DB, filter ledger.DocumentFilter) *gorm.DB {
	if len(filter.Kinds) > 0 {
		query = query.Where("kind IN ?", stringsOf(filter.Kinds))
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", stringsOf(filter.Statuses))
	}
	if len(filter.PaymentStatuses) > 0 {
		query = query.Where("payment_status IN ?", stringsOf(filter.PaymentStatuses))
	}
	if filter.CounterpartyRef != nil {
		query = query.Where("counterparty_ref = ?", *filter.CounterpartyRef)
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", strings.ToUpper(*filter.Currency))
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		query = query.Where("due_date >= ?", *filter.DueAfter)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date <= ?", *filter.IssuedTo)
	}
	if filter.OnlyOutstanding {
		query = query.Where("balance_amount > 0")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("document_number LIKE ?", search+"%")
	}
	return query
}

// FindOverdueCandidates returns past-due documents with a balance in one of q.Statuses
func (r *GormDocumentRepository) FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, q ledger.OverdueQuery) ([]ledger.Document, error) {
	if len(q.Statuses) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND due_date < ? AND balance_amount > 0 AND status IN ?",
			tenantID, q.Now, stringsOf(q.Statuses)).
		Order("due_date ASC").Order("id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var docModels []models.DocumentModel
	if err := preloadItems(query).Find(&docModels).Error; err != nil {
		return nil, err
	}
	return toDocuments(docModels), nil
}

// FindOpenByCounterparty returns collectable documents of a counterparty in
// a currency, oldest due first
func (r *GormDocumentRepository) FindOpenByCounterparty(ctx context.Context, tenantID uuid.UUID, counterpartyRef, currency string) ([]ledger.Document, error) {
	var docModels []models.DocumentModel
	err := preloadItems(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND counterparty_ref = ? AND currency = ? AND balance_amount > 0 AND status NOT IN ?",
			tenantID, counterpartyRef, strings.ToUpper(currency), closedStatuses).
		Order("due_date ASC").Order("issue_date ASC").Order("document_number ASC").
		Find(&docModels).Error
	if err != nil {
		return nil, err
	}
	return toDocuments(docModels), nil
}

// TenantsWithOpenDocuments lists tenants with at least one collectable balance
func (r *GormDocumentRepository) TenantsWithOpenDocuments(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("balance_amount > 0 AND status NOT IN ?", closedStatuses).
		Distinct().
		Pluck("tenant_id", &ids).Error
	return ids, err
}

// Create inserts a document with its items. Inside a transaction the insert
// runs under a savepoint so a number collision leaves the transaction usable.
func (r *GormDocumentRepository) Create(ctx context.Context, doc *ledger.Document) error {
	model := models.DocumentModelFromDomain(doc)
	db := r.db.WithContext(ctx)
	if !inTransaction(db) {
		return duplicateNumber(db.Create(model).Error, doc.DocumentNumber)
	}

	if err := db.SavePoint(documentCreateSavepoint).Error; err != nil {
		return err
	}
	if err := db.Create(model).Error; err != nil {
		if rbErr := db.RollbackTo(documentCreateSavepoint).Error; rbErr != nil {
			return rbErr
		}
		return duplicateNumber(err, doc.DocumentNumber)
	}
	return nil
}

// SaveWithLock writes the document if the stored version is exactly one
// behind. Items are rewritten only while the document is a draft.
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, doc *ledger.Document) error {
	model := models.DocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DocumentModel{}).
			Where("tenant_id = ? AND id = ? AND version = ?", doc.TenantID, doc.ID, doc.Version-1).
			Updates(map[string]any{
				"version":          model.Version,
				"updated_at":       model.UpdatedAt,
				"document_number":  model.DocumentNumber,
				"counterparty_ref": model.CounterpartyRef,
				"issue_date":       model.IssueDate,
				"due_date":         model.DueDate,
				"subtotal":         model.Subtotal,
				"tax_amount":       model.TaxAmount,
				"discount_amount":  model.DiscountAmount,
				"total_amount":     model.TotalAmount,
				"tax_override":     model.TaxOverride,
				"paid_amount":      model.PaidAmount,
				"balance_amount":   model.BalanceAmount,
				"status":           model.Status,
				"payment_status":   model.PaymentStatus,
				"notes":            model.Notes,
				"cancel_reason":    model.CancelReason,
				"cancelled_at":     model.CancelledAt,
				"overdue_at":       model.OverdueAt,
				"paid_at":          model.PaidAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.DocumentModel{}).
				Where("tenant_id = ? AND id = ?", doc.TenantID, doc.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return versionConflict("document")
		}

		if !doc.IsDraft() {
			return nil
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		return tx.Create(&model.Items).Error
	})
}

func toDocuments(docModels []models.DocumentModel) []ledger.Document {
	docs := make([]ledger.Document, len(docModels))
	for i := range docModels {
		docs[i] = *docModels[i].ToDomain()
	}
	return docs
}

// stringsOf converts a slice of string-kinded enums for IN clauses
func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// Ensure GormDocumentRepository implements DocumentRepository
var _ ledger.DocumentRepository = (*GormDocumentRepository)(nil)
