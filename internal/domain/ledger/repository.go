package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentOrderField enumerates the columns a document list may be sorted by
type DocumentOrderField string

const (
	OrderByIssueDate      DocumentOrderField = "issue_date"
	OrderByDueDate        DocumentOrderField = "due_date"
	OrderByDocumentNumber DocumentOrderField = "document_number"
	OrderByTotalAmount    DocumentOrderField = "total_amount"
	OrderByCreatedAt      DocumentOrderField = "created_at"
)

// IsValid checks if the field is one of the enumerated columns
func (f DocumentOrderField) IsValid() bool {
	switch f {
	case OrderByIssueDate, OrderByDueDate, OrderByDocumentNumber, OrderByTotalAmount, OrderByCreatedAt:
		return true
	}
	return false
}

// DocumentFilter defines filtering options for document queries. Every
// recognised field is listed here; storage translates it once.
type DocumentFilter struct {
	shared.Pagination
	Kinds           []DocumentKind   // Filter by kind
	Statuses        []DocumentStatus // Filter by workflow status
	PaymentStatuses []PaymentStatus  // Filter by derived payment status
	CounterpartyRef *string          // Filter by counterparty
	Currency        *string          // Filter by currency code
	DueBefore       *time.Time       // due_date < DueBefore
	DueAfter        *time.Time       // due_date >= DueAfter
	IssuedFrom      *time.Time       // issue_date >= IssuedFrom
	IssuedTo        *time.Time       // issue_date <= IssuedTo
	OnlyOutstanding bool             // balance_amount > 0
	Search          string           // Prefix match on document number
	OrderBy         DocumentOrderField
	OrderDir        shared.SortDirection
}

// Validate rejects unknown enumerations before they reach storage
func (f DocumentFilter) Validate() error {
	for _, k := range f.Kinds {
		if !k.IsValid() {
			return validationError("unknown document kind %q", k)
		}
	}
	if f.OrderBy != "" && !f.OrderBy.IsValid() {
		return validationError("cannot order documents by %q", f.OrderBy)
	}
	if f.OrderDir != "" && !f.OrderDir.IsValid() {
		return validationError("unknown sort direction %q", f.OrderDir)
	}
	return nil
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Pagination
	PayerRef        *string          // Filter by payer
	Methods         []PaymentMethod  // Filter by method
	ReceivedFrom    *time.Time       // received_date >= ReceivedFrom
	ReceivedTo      *time.Time       // received_date <= ReceivedTo
	OnlyUnallocated bool             // unallocated_amount > 0
	MinAmount       *decimal.Decimal // amount >= MinAmount
}

// Validate rejects unknown enumerations
func (f PaymentFilter) Validate() error {
	for _, m := range f.Methods {
		if !m.IsValid() {
			return validationError("unknown payment method %q", m)
		}
	}
	return nil
}

// OverdueQuery selects overdue candidates for one tenant
type OverdueQuery struct {
	Now      time.Time
	Statuses []DocumentStatus
	Limit    int
}

// DocumentRepository persists documents
type DocumentRepository interface {
	// FindByIDForTenant loads a document with its items
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindByIDForUpdate loads a document and locks its row until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindByNumber finds a document by its number
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Document, error)

	// FindAllForTenant lists documents matching filter with the total count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) ([]Document, int64, error)

	// FindOverdueCandidates returns documents past due with a positive
	// balance in one of the given statuses
	FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, q OverdueQuery) ([]Document, error)

	// FindOpenByCounterparty returns documents of a counterparty that still
	// have a balance, in a currency
	FindOpenByCounterparty(ctx context.Context, tenantID uuid.UUID, counterpartyRef, currency string) ([]Document, error)

	// TenantsWithOpenDocuments lists tenants that own at least one document
	// with a positive balance
	TenantsWithOpenDocuments(ctx context.Context) ([]uuid.UUID, error)

	// Create inserts a new document. A duplicate number is reported as
	// NUMBERING_COLLISION.
	Create(ctx context.Context, doc *Document) error

	// SaveWithLock updates a document if its stored version is one behind
	SaveWithLock(ctx context.Context, doc *Document) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]Payment, int64, error)
	Create(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// AllocationRepository persists the append-only allocation rows
type AllocationRepository interface {
	Create(ctx context.Context, allocation *Allocation) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Allocation, error)
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]Allocation, error)
	FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]Allocation, error)

	// ExistsReversalOf reports whether a REVERSAL row references id
	ExistsReversalOf(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
}

// ReturnRepository persists the append-only return history
type ReturnRepository interface {
	Create(ctx context.Context, r *Return) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Return, error)

	// FindByDocument returns every return of a document ordered by sequence
	FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]Return, error)
}
