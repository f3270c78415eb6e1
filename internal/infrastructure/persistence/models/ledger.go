package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root.
// TenantID is declared here instead of through TenantAggregateModel so the
// number can be unique per tenant.
type DocumentModel struct {
	AggregateModel
	TenantID        uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_documents_tenant_number,priority:1;index:idx_documents_tenant_due,priority:1"`
	Kind            ledger.DocumentKind     `gorm:"type:varchar(20);not null;index"`
	DocumentNumber  string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_tenant_number,priority:2"`
	CounterpartyRef string                  `gorm:"type:varchar(100);not null;index"`
	IssueDate       time.Time               `gorm:"not null"`
	DueDate         time.Time               `gorm:"not null;index:idx_documents_tenant_due,priority:2"`
	Currency        string                  `gorm:"type:varchar(3);not null"`
	Subtotal        decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	TaxAmount       decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	DiscountAmount  decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	TotalAmount     decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	TaxOverride     *decimal.Decimal        `gorm:"type:decimal(18,4)"`
	PaidAmount      decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	BalanceAmount   decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Status          ledger.DocumentStatus   `gorm:"type:varchar(20);not null;index"`
	PaymentStatus   ledger.PaymentStatus    `gorm:"type:varchar(20);not null"`
	WorkflowVersion int                     `gorm:"not null;default:1"`
	Notes           string                  `gorm:"type:text"`
	CancelReason    string                  `gorm:"type:varchar(500)"`
	CancelledAt     *time.Time
	OverdueAt       *time.Time
	PaidAt          *time.Time
	Items           []DocumentItemModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document.
func (m *DocumentModel) ToDomain() *ledger.Document {
	d := &ledger.Document{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: m.BaseModel.ToDomain(),
				Version:    m.Version,
			},
			TenantID: m.TenantID,
		},
		Kind:            m.Kind,
		DocumentNumber:  m.DocumentNumber,
		CounterpartyRef: m.CounterpartyRef,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		Currency:        valueobject.Currency(m.Currency),
		Subtotal:        m.Subtotal,
		TaxAmount:       m.TaxAmount,
		DiscountAmount:  m.DiscountAmount,
		TotalAmount:     m.TotalAmount,
		TaxOverride:     m.TaxOverride,
		PaidAmount:      m.PaidAmount,
		BalanceAmount:   m.BalanceAmount,
		Status:          m.Status,
		PaymentStatus:   m.PaymentStatus,
		WorkflowVersion: m.WorkflowVersion,
		Notes:           m.Notes,
		CancelReason:    m.CancelReason,
		CancelledAt:     m.CancelledAt,
		OverdueAt:       m.OverdueAt,
		PaidAt:          m.PaidAt,
		Items:           make([]ledger.LineItem, len(m.Items)),
	}
	for i := range m.Items {
		d.Items[i] = m.Items[i].ToDomain()
	}
	return d
}

// FromDomain populates the persistence model from a domain Document.
func (m *DocumentModel) FromDomain(d *ledger.Document) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.TenantID = d.TenantID
	m.Kind = d.Kind
	m.DocumentNumber = d.DocumentNumber
	m.CounterpartyRef = d.CounterpartyRef
	m.IssueDate = d.IssueDate
	m.DueDate = d.DueDate
	m.Currency = d.Currency.String()
	m.Subtotal = d.Subtotal
	m.TaxAmount = d.TaxAmount
	m.DiscountAmount = d.DiscountAmount
	m.TotalAmount = d.TotalAmount
	m.TaxOverride = d.TaxOverride
	m.PaidAmount = d.PaidAmount
	m.BalanceAmount = d.BalanceAmount
	m.Status = d.Status
	m.PaymentStatus = d.PaymentStatus
	m.WorkflowVersion = d.WorkflowVersion
	m.Notes = d.Notes
	m.CancelReason = d.CancelReason
	m.CancelledAt = d.CancelledAt
	m.OverdueAt = d.OverdueAt
	m.PaidAt = d.PaidAt
	m.Items = DocumentItemModelsFromDomain(d)
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(d *ledger.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentItemModel is the persistence model for a document line item.
type DocumentItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position       int             `gorm:"not null"`
	ProductRef     string          `gorm:"type:varchar(100);not null"`
	ProductName    string          `gorm:"type:varchar(200)"`
	ProductSKU     string          `gorm:"column:product_sku;type:varchar(100)"`
	Unit           string          `gorm:"type:varchar(20)"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (DocumentItemModel) TableName() string {
	return "document_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *DocumentItemModel) ToDomain() ledger.LineItem {
	return ledger.LineItem{
		ID:             m.ID,
		ProductRef:     m.ProductRef,
		ProductName:    m.ProductName,
		ProductSKU:     m.ProductSKU,
		Unit:           m.Unit,
		Quantity:       m.Quantity,
		UnitPrice:      m.UnitPrice,
		DiscountAmount: m.DiscountAmount,
		TaxAmount:      m.TaxAmount,
		LineTotal:      m.LineTotal,
	}
}

// DocumentItemModelsFromDomain maps the items of d keeping their order.
func DocumentItemModelsFromDomain(d *ledger.Document) []DocumentItemModel {
	items := make([]DocumentItemModel, len(d.Items))
	for i, it := range d.Items {
		items[i] = DocumentItemModel{
			ID:             it.ID,
			DocumentID:     d.ID,
			Position:       i + 1,
			ProductRef:     it.ProductRef,
			ProductName:    it.ProductName,
			ProductSKU:     it.ProductSKU,
			Unit:           it.Unit,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			DiscountAmount: it.DiscountAmount,
			TaxAmount:      it.TaxAmount,
			LineTotal:      it.LineTotal,
		}
	}
	return items
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	PayerRef          string               `gorm:"type:varchar(100);not null;index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency          string               `gorm:"type:varchar(3);not null"`
	ReceivedDate      time.Time            `gorm:"not null"`
	Method            ledger.PaymentMethod `gorm:"type:varchar(30);not null"`
	Reference         string               `gorm:"type:varchar(100)"`
	AllocatedAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	UnallocatedAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Notes             string               `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *ledger.Payment {
	p := &ledger.Payment{
		PayerRef:          m.PayerRef,
		Amount:            m.Amount,
		Currency:          valueobject.Currency(m.Currency),
		ReceivedDate:      m.ReceivedDate,
		Method:            m.Method,
		Reference:         m.Reference,
		AllocatedAmount:   m.AllocatedAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		Notes:             m.Notes,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *ledger.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.PayerRef = p.PayerRef
	m.Amount = p.Amount
	m.Currency = p.Currency.String()
	m.ReceivedDate = p.ReceivedDate
	m.Method = p.Method
	m.Reference = p.Reference
	m.AllocatedAmount = p.AllocatedAmount
	m.UnallocatedAmount = p.UnallocatedAmount
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for an allocation row. Rows are
// only ever inserted.
type AllocationModel struct {
	ID         uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	PaymentID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	DocumentID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Kind       ledger.AllocationKind `gorm:"type:varchar(20);not null"`
	ReversesID *uuid.UUID            `gorm:"type:uuid;uniqueIndex"`
	Reason     string                `gorm:"type:varchar(500)"`
	CreatedAt  time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation.
func (m *AllocationModel) ToDomain() *ledger.Allocation {
	return &ledger.Allocation{
		ID:         m.ID,
		TenantID:   m.TenantID,
		PaymentID:  m.PaymentID,
		DocumentID: m.DocumentID,
		Amount:     m.Amount,
		Kind:       m.Kind,
		ReversesID: m.ReversesID,
		Reason:     m.Reason,
		CreatedAt:  m.CreatedAt,
	}
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation.
func AllocationModelFromDomain(a *ledger.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:         a.ID,
		TenantID:   a.TenantID,
		PaymentID:  a.PaymentID,
		DocumentID: a.DocumentID,
		Amount:     a.Amount,
		Kind:       a.Kind,
		ReversesID: a.ReversesID,
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt,
	}
}

// ReturnModel is the persistence model for a return event.
type ReturnModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	DocumentID   uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_returns_document_seq,priority:1"`
	SequenceNo   int               `gorm:"not null;uniqueIndex:idx_returns_document_seq,priority:2"`
	ReturnType   ledger.ReturnType `gorm:"type:varchar(10);not null"`
	RefundAmount decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Reason       string            `gorm:"type:varchar(500)"`
	CreatedAt    time.Time         `gorm:"not null"`
	Items        []ReturnItemModel `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (ReturnModel) TableName() string {
	return "document_returns"
}

// ToDomain converts the persistence model to a domain Return.
func (m *ReturnModel) ToDomain() *ledger.Return {
	r := &ledger.Return{
		ID:           m.ID,
		TenantID:     m.TenantID,
		DocumentID:   m.DocumentID,
		SequenceNo:   m.SequenceNo,
		ReturnType:   m.ReturnType,
		RefundAmount: m.RefundAmount,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
		Items:        make([]ledger.ReturnItem, len(m.Items)),
	}
	for i, it := range m.Items {
		r.Items[i] = ledger.ReturnItem{LineItemID: it.LineItemID, QuantityReturned: it.QuantityReturned}
	}
	return r
}

// ReturnModelFromDomain creates a new persistence model from a domain Return.
func ReturnModelFromDomain(r *ledger.Return) *ReturnModel {
	m := &ReturnModel{
		ID:           r.ID,
		TenantID:     r.TenantID,
		DocumentID:   r.DocumentID,
		SequenceNo:   r.SequenceNo,
		ReturnType:   r.ReturnType,
		RefundAmount: r.RefundAmount,
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
		Items:        make([]ReturnItemModel, len(r.Items)),
	}
	for i, it := range r.Items {
		m.Items[i] = ReturnItemModel{
			ID:               uuid.New(),
			ReturnID:         r.ID,
			LineItemID:       it.LineItemID,
			QuantityReturned: it.QuantityReturned,
		}
	}
	return m
}

// ReturnItemModel is one returned line of a return event.
type ReturnItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReturnID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineItemID       uuid.UUID       `gorm:"type:uuid;not null"`
	QuantityReturned decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ReturnItemModel) TableName() string {
	return "document_return_items"
}
