package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// DocumentHandler serves document creation, amendment, workflow events and
// lookups
type DocumentHandler struct {
	BaseHandler
	documents DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req ledgerapp.CreateDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, doc)
}

// Amend handles PUT /documents/:id. Only drafts can be amended.
func (h *DocumentHandler) Amend(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	var req ledgerapp.AmendDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Amend(c.Request.Context(), tenantID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// ApplyEvent handles POST /documents/:id/events
func (h *DocumentHandler) ApplyEvent(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	var req ledgerapp.ApplyEventRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.ApplyEvent(c.Request.Context(), tenantID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	var req ledgerapp.CancelDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Cancel(c.Request.Context(), tenantID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// GetByID handles GET /documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// GetByNumber handles GET /documents/number/:number
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Document number is required")
		return
	}

	doc, err := h.documents.GetByNumber(c.Request.Context(), tenantID, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var filter ledgerapp.DocumentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	docs, total, err := h.documents.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, docs, total, filter.Page, filter.PageSize)
}
