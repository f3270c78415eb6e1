package handler

import (
	"context"
	"strconv"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler serves the payment pool and the allocation engine
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Receive handles POST /payments
func (h *PaymentHandler) Receive(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req ledgerapp.ReceivePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Receive(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, payment)
}

// GetByID handles GET /payments/:id
func (h *PaymentHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id", "payment")
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var filter ledgerapp.PaymentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	payments, total, err := h.payments.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}

// ListAllocations handles GET /payments/:id/allocations
func (h *PaymentHandler) ListAllocations(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id", "payment")
	if !ok {
		return
	}

	rows, err := h.payments.ListPaymentAllocations(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rows)
}

// Allocate handles POST /payments/:id/allocations
func (h *PaymentHandler) Allocate(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id", "payment")
	if !ok {
		return
	}

	var req ledgerapp.AllocateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.Allocate(c.Request.Context(), tenantID, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// AllocateFIFO handles POST /payments/:id/allocate-fifo, spreading the
// unallocated amount over the payer's open documents, oldest due first
func (h *PaymentHandler) AllocateFIFO(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id", "payment")
	if !ok {
		return
	}

	result, err := h.payments.AllocateFIFO(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// PayInFull handles POST /documents/:id/pay-in-full
func (h *PaymentHandler) PayInFull(c *gin.Context) {
	h.payDocument(c, h.payments.PayInFull)
}

// PayPartially handles POST /documents/:id/payments
func (h *PaymentHandler) PayPartially(c *gin.Context) {
	h.payDocument(c, h.payments.PayPartially)
}

func (h *PaymentHandler) payDocument(c *gin.Context, pay func(context.Context, uuid.UUID, uuid.UUID, ledgerapp.DocumentPaymentRequest) (*ledgerapp.DocumentPaymentResult, error)) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	var req ledgerapp.DocumentPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := pay(c.Request.Context(), tenantID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// DocumentAllocations handles GET /documents/:id/allocations
func (h *PaymentHandler) DocumentAllocations(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	rows, err := h.payments.ListDocumentAllocations(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rows)
}

// Reverse handles POST /allocations/:id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	allocationID, ok := h.pathUUID(c, "id", "allocation")
	if !ok {
		return
	}

	var req ledgerapp.ReverseAllocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.Reverse(c.Request.Context(), tenantID, allocationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Reallocate handles POST /allocations/:id/reallocate
func (h *PaymentHandler) Reallocate(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	allocationID, ok := h.pathUUID(c, "id", "allocation")
	if !ok {
		return
	}

	var req ledgerapp.ReallocateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.Reallocate(c.Request.Context(), tenantID, allocationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// RecomputeDocument handles POST /documents/:id/recompute?repair=true
func (h *PaymentHandler) RecomputeDocument(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}
	repair, ok := h.repairFlag(c)
	if !ok {
		return
	}

	report, err := h.payments.RecomputeDocument(c.Request.Context(), tenantID, documentID, repair)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// RecomputePayment handles POST /payments/:id/recompute?repair=true
func (h *PaymentHandler) RecomputePayment(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(c, "id", "payment")
	if !ok {
		return
	}
	repair, ok := h.repairFlag(c)
	if !ok {
		return
	}

	report, err := h.payments.RecomputePayment(c.Request.Context(), tenantID, paymentID, repair)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// Verify handles POST /verify?repair=true and returns only drifted rows
func (h *PaymentHandler) Verify(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	repair, ok := h.repairFlag(c)
	if !ok {
		return
	}

	reports, err := h.payments.Verify(c.Request.Context(), tenantID, repair)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, reports)
}

func (h *PaymentHandler) repairFlag(c *gin.Context) (bool, bool) {
	raw := c.Query("repair")
	if raw == "" {
		return false, true
	}
	repair, err := strconv.ParseBool(raw)
	if err != nil {
		h.BadRequest(c, "repair must be true or false")
		return false, false
	}
	return repair, true
}
