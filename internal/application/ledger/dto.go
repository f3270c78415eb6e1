package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one line of a create or amend request
type LineItemRequest struct {
	ProductRef     string          `json:"product_ref" binding:"required,min=1,max=100"`
	ProductName    string          `json:"product_name" binding:"max=200"`
	ProductSKU     string          `json:"product_sku" binding:"max=100"`
	Unit           string          `json:"unit" binding:"max=20"`
	Quantity       decimal.Decimal `json:"quantity" binding:"decimal_positive"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
}

// DeclaredTotals are the totals the caller believes the items add up to
type DeclaredTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// CreateDocumentRequest represents a request to create a document in DRAFT
type CreateDocumentRequest struct {
	Kind            string            `json:"kind" binding:"required,oneof=SALE INVOICE ORDER"`
	CounterpartyRef string            `json:"counterparty_ref" binding:"required,min=1,max=100"`
	IssueDate       *time.Time        `json:"issue_date"`
	DueDate         *time.Time        `json:"due_date"`
	Currency        string            `json:"currency" binding:"omitempty,len=3"`
	Items           []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Declared        DeclaredTotals    `json:"declared"`
	TaxOverride     *decimal.Decimal  `json:"tax_override"`
	Notes           string            `json:"notes" binding:"max=2000"`
}

// AmendDocumentRequest replaces the items of a draft
type AmendDocumentRequest struct {
	Items       []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Declared    DeclaredTotals    `json:"declared"`
	TaxOverride *decimal.Decimal  `json:"tax_override"`
	IssueDate   *time.Time        `json:"issue_date"`
	DueDate     *time.Time        `json:"due_date"`
	Notes       *string           `json:"notes" binding:"omitempty,max=2000"`
	Version     int               `json:"version" binding:"omitempty,min=1"`
}

// ApplyEventRequest carries a caller-driven workflow event
type ApplyEventRequest struct {
	Event   string `json:"event" binding:"required"`
	Version int    `json:"version" binding:"omitempty,min=1"`
}

// CancelDocumentRequest carries the mandatory cancel reason
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// DocumentListFilter is the query of a document list
type DocumentListFilter struct {
	Page            int        `form:"page" binding:"omitempty,min=1"`
	PageSize        int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	Kinds           []string   `form:"kind"`
	Statuses        []string   `form:"status"`
	PaymentStatuses []string   `form:"payment_status"`
	CounterpartyRef string     `form:"counterparty_ref"`
	Currency        string     `form:"currency"`
	DueBefore       *time.Time `form:"due_before" time_format:"2006-01-02"`
	DueAfter        *time.Time `form:"due_after" time_format:"2006-01-02"`
	IssuedFrom      *time.Time `form:"issued_from" time_format:"2006-01-02"`
	IssuedTo        *time.Time `form:"issued_to" time_format:"2006-01-02"`
	OnlyOutstanding bool       `form:"only_outstanding"`
	Search          string     `form:"search"`
	OrderBy         string     `form:"order_by"`
	OrderDir        string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineItemResponse is a stored line item
type LineItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProductRef     string          `json:"product_ref"`
	ProductName    string          `json:"product_name"`
	ProductSKU     string          `json:"product_sku"`
	Unit           string          `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID              uuid.UUID          `json:"id"`
	TenantID        uuid.UUID          `json:"tenant_id"`
	Kind            string             `json:"kind"`
	DocumentNumber  string             `json:"document_number"`
	CounterpartyRef string             `json:"counterparty_ref"`
	IssueDate       time.Time          `json:"issue_date"`
	DueDate         time.Time          `json:"due_date"`
	Currency        string             `json:"currency"`
	Items           []LineItemResponse `json:"items,omitempty"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	TaxAmount       decimal.Decimal    `json:"tax_amount"`
	DiscountAmount  decimal.Decimal    `json:"discount_amount"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	TaxOverride     *decimal.Decimal   `json:"tax_override,omitempty"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	BalanceAmount   decimal.Decimal    `json:"balance_amount"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	WorkflowVersion int                `json:"workflow_version"`
	Notes           string             `json:"notes,omitempty"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	OverdueAt       *time.Time         `json:"overdue_at,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// ReceivePaymentRequest represents money received from a payer
type ReceivePaymentRequest struct {
	PayerRef     string          `json:"payer_ref" binding:"required,min=1,max=100"`
	Amount       decimal.Decimal `json:"amount" binding:"decimal_positive"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	ReceivedDate *time.Time      `json:"received_date"`
	Method       string          `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHECK OTHER"`
	Reference    string          `json:"reference" binding:"max=100"`
	Notes        string          `json:"notes" binding:"max=2000"`
}

// DocumentPaymentRequest pays a document directly. Amount is ignored for a
// full payment.
type DocumentPaymentRequest struct {
	PayerRef     string          `json:"payer_ref" binding:"max=100"`
	Amount       decimal.Decimal `json:"amount"`
	ReceivedDate *time.Time      `json:"received_date"`
	Method       string          `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHECK OTHER"`
	Reference    string          `json:"reference" binding:"max=100"`
	Notes        string          `json:"notes" binding:"max=2000"`
}

// AllocateRequest binds part of a payment to a document
type AllocateRequest struct {
	DocumentID uuid.UUID       `json:"document_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"decimal_positive"`
}

// ReverseAllocationRequest carries the reversal reason
type ReverseAllocationRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ReallocateRequest moves an allocation to another document. A zero amount
// moves the full original amount.
type ReallocateRequest struct {
	TargetDocumentID uuid.UUID       `json:"target_document_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason" binding:"required,min=1,max=500"`
}

// PaymentListFilter is the query of a payment list
type PaymentListFilter struct {
	Page            int              `form:"page" binding:"omitempty,min=1"`
	PageSize        int              `form:"page_size" binding:"omitempty,min=1,max=100"`
	PayerRef        string           `form:"payer_ref"`
	Methods         []string         `form:"method"`
	ReceivedFrom    *time.Time       `form:"received_from" time_format:"2006-01-02"`
	ReceivedTo      *time.Time       `form:"received_to" time_format:"2006-01-02"`
	OnlyUnallocated bool             `form:"only_unallocated"`
	MinAmount       *decimal.Decimal `form:"min_amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	PayerRef          string          `json:"payer_ref"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ReceivedDate      time.Time       `json:"received_date"`
	Method            string          `json:"method"`
	Reference         string          `json:"reference,omitempty"`
	AllocatedAmount   decimal.Decimal `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Version           int             `json:"version"`
}

// AllocationResponse represents one allocation row
type AllocationResponse struct {
	ID         uuid.UUID       `json:"id"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	DocumentID uuid.UUID       `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       string          `json:"kind"`
	ReversesID *uuid.UUID      `json:"reverses_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AllocationResult is the outcome of an allocation: the row plus both sides
// as they stand after the commit
type AllocationResult struct {
	Allocation AllocationResponse `json:"allocation"`
	Payment    PaymentResponse    `json:"payment"`
	Document   DocumentResponse   `json:"document"`
}

// ReallocationResult is a reversal and its replacement
type ReallocationResult struct {
	Reversal   AllocationResponse `json:"reversal"`
	Allocation AllocationResponse `json:"allocation"`
	Payment    PaymentResponse    `json:"payment"`
}

// FIFOResult lists the allocations a FIFO pass created
type FIFOResult struct {
	Allocations []AllocationResponse `json:"allocations"`
	Total       decimal.Decimal      `json:"total"`
	Payment     PaymentResponse      `json:"payment"`
}

// DocumentPaymentResult is a payment received and allocated to a document
type DocumentPaymentResult struct {
	Payment    PaymentResponse    `json:"payment"`
	Allocation AllocationResponse `json:"allocation"`
	Document   DocumentResponse   `json:"document"`
}

// DriftReport compares stored amounts with the sums derived from allocation
// rows
type DriftReport struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Stored      decimal.Decimal `json:"stored"`
	Derived     decimal.Decimal `json:"derived"`
	Drifted     bool            `json:"drifted"`
	Repaired    bool            `json:"repaired"`
}

// ReturnItemRequest is one returned line
type ReturnItemRequest struct {
	LineItemID       uuid.UUID       `json:"line_item_id" binding:"required"`
	QuantityReturned decimal.Decimal `json:"quantity_returned" binding:"decimal_positive"`
}

// RecordReturnRequest appends a return to a document. A FULL return with no
// items returns everything that remains.
type RecordReturnRequest struct {
	ReturnType   string              `json:"return_type" binding:"required,oneof=FULL PARTIAL"`
	Items        []ReturnItemRequest `json:"items" binding:"omitempty,dive"`
	RefundAmount decimal.Decimal     `json:"refund_amount"`
	Reason       string              `json:"reason" binding:"max=500"`
}

// ReturnItemResponse is one returned line
type ReturnItemResponse struct {
	LineItemID       uuid.UUID       `json:"line_item_id"`
	QuantityReturned decimal.Decimal `json:"quantity_returned"`
}

// ReturnResponse represents a recorded return
type ReturnResponse struct {
	ID           uuid.UUID            `json:"id"`
	DocumentID   uuid.UUID            `json:"document_id"`
	SequenceNo   int                  `json:"sequence_no"`
	ReturnType   string               `json:"return_type"`
	Items        []ReturnItemResponse `json:"items"`
	RefundAmount decimal.Decimal      `json:"refund_amount"`
	Reason       string               `json:"reason,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// SnapshotLineResponse is one surviving line of a replayed document
type SnapshotLineResponse struct {
	LineItemID     uuid.UUID       `json:"line_item_id"`
	ProductRef     string          `json:"product_ref"`
	ProductName    string          `json:"product_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// SnapshotResponse is a replayed view of a document
type SnapshotResponse struct {
	DocumentID     uuid.UUID              `json:"document_id"`
	AsOfSequence   int                    `json:"as_of_sequence"`
	Items          []SnapshotLineResponse `json:"items"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	TaxAmount      decimal.Decimal        `json:"tax_amount"`
	DiscountAmount decimal.Decimal        `json:"discount_amount"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
}

// ScanResult summarises one overdue pass for a tenant
type ScanResult struct {
	TenantID     uuid.UUID     `json:"tenant_id"`
	Scanned      int           `json:"scanned"`
	Transitioned int           `json:"transitioned"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
}

func toLineItemInputs(items []LineItemRequest) []ledger.LineItemInput {
	inputs := make([]ledger.LineItemInput, len(items))
	for i, item := range items {
		inputs[i] = ledger.LineItemInput{
			ProductRef:     item.ProductRef,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			TaxAmount:      item.TaxAmount,
		}
	}
	return inputs
}

func (t DeclaredTotals) toDomain() ledger.Totals {
	return ledger.Totals{
		Subtotal:       t.Subtotal,
		TaxAmount:      t.TaxAmount,
		DiscountAmount: t.DiscountAmount,
		TotalAmount:    t.TotalAmount,
	}
}

// ToDocumentResponse converts a domain document to its response
func ToDocumentResponse(d *ledger.Document) DocumentResponse {
	items := make([]LineItemResponse, len(d.Items))
	for i, item := range d.Items {
		items[i] = LineItemResponse{
			ID:             item.ID,
			ProductRef:     item.ProductRef,
			ProductName:    item.ProductName,
			ProductSKU:     item.ProductSKU,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			TaxAmount:      item.TaxAmount,
			LineTotal:      item.LineTotal,
		}
	}
	return DocumentResponse{
		ID:              d.ID,
		TenantID:        d.TenantID,
		Kind:            d.Kind.String(),
		DocumentNumber:  d.DocumentNumber,
		CounterpartyRef: d.CounterpartyRef,
		IssueDate:       d.IssueDate,
		DueDate:         d.DueDate,
		Currency:        d.Currency.String(),
		Items:           items,
		Subtotal:        d.Subtotal,
		TaxAmount:       d.TaxAmount,
		DiscountAmount:  d.DiscountAmount,
		TotalAmount:     d.TotalAmount,
		TaxOverride:     d.TaxOverride,
		PaidAmount:      d.PaidAmount,
		BalanceAmount:   d.BalanceAmount,
		Status:          d.Status.String(),
		PaymentStatus:   d.PaymentStatus.String(),
		WorkflowVersion: d.WorkflowVersion,
		Notes:           d.Notes,
		CancelReason:    d.CancelReason,
		CancelledAt:     d.CancelledAt,
		OverdueAt:       d.OverdueAt,
		PaidAt:          d.PaidAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Version:         d.Version,
	}
}

// ToDocumentResponses converts a page of documents without their items
func ToDocumentResponses(docs []ledger.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = ToDocumentResponse(&docs[i])
		out[i].Items = nil
	}
	return out
}

// ToPaymentResponse converts a domain payment to its response
func ToPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		TenantID:          p.TenantID,
		PayerRef:          p.PayerRef,
		Amount:            p.Amount,
		Currency:          p.Currency.String(),
		ReceivedDate:      p.ReceivedDate,
		Method:            p.Method.String(),
		Reference:         p.Reference,
		AllocatedAmount:   p.AllocatedAmount,
		UnallocatedAmount: p.UnallocatedAmount,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt,
		Version:           p.Version,
	}
}

// ToPaymentResponses converts a page of payments
func ToPaymentResponses(payments []ledger.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// ToAllocationResponse converts an allocation row
func ToAllocationResponse(a *ledger.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:         a.ID,
		PaymentID:  a.PaymentID,
		DocumentID: a.DocumentID,
		Amount:     a.Amount,
		Kind:       string(a.Kind),
		ReversesID: a.ReversesID,
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt,
	}
}

// ToAllocationResponses converts allocation rows
func ToAllocationResponses(rows []ledger.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(rows))
	for i := range rows {
		out[i] = ToAllocationResponse(&rows[i])
	}
	return out
}

// ToReturnResponse converts a return
func ToReturnResponse(r *ledger.Return) ReturnResponse {
	items := make([]ReturnItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = ReturnItemResponse{LineItemID: item.LineItemID, QuantityReturned: item.QuantityReturned}
	}
	return ReturnResponse{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		SequenceNo:   r.SequenceNo,
		ReturnType:   string(r.ReturnType),
		Items:        items,
		RefundAmount: r.RefundAmount,
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
	}
}

// ToSnapshotResponse converts a replay snapshot
func ToSnapshotResponse(s *ledger.Snapshot) SnapshotResponse {
	lines := make([]SnapshotLineResponse, len(s.Items))
	for i, l := range s.Items {
		lines[i] = SnapshotLineResponse{
			LineItemID:     l.LineItemID,
			ProductRef:     l.ProductRef,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountAmount: l.DiscountAmount,
			TaxAmount:      l.TaxAmount,
			LineTotal:      l.LineTotal,
		}
	}
	return SnapshotResponse{
		DocumentID:     s.DocumentID,
		AsOfSequence:   s.AsOfSequence,
		Items:          lines,
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		DiscountAmount: s.DiscountAmount,
		TotalAmount:    s.TotalAmount,
	}
}
