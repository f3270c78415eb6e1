package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnHandler records returns against documents and serves replayed views
type ReturnHandler struct {
	BaseHandler
	returns ReturnService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(returns ReturnService) *ReturnHandler {
	return &ReturnHandler{returns: returns}
}

// Record handles POST /documents/:id/returns
func (h *ReturnHandler) Record(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	var req ledgerapp.RecordReturnRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ret, err := h.returns.Record(c.Request.Context(), tenantID, documentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ret)
}

// List handles GET /documents/:id/returns
func (h *ReturnHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return
	}

	returns, err := h.returns.List(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, returns)
}

// Current handles GET /documents/:id/snapshot
func (h *ReturnHandler) Current(c *gin.Context) {
	tenantID, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}

	snap, err := h.returns.Current(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snap)
}

// Original handles GET /documents/:id/snapshot/original, the document as it
// stood before any return
func (h *ReturnHandler) Original(c *gin.Context) {
	tenantID, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}

	snap, err := h.returns.StateBefore(c.Request.Context(), tenantID, documentID, nil)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snap)
}

// StateBefore handles GET /documents/:id/returns/:return_id/before
func (h *ReturnHandler) StateBefore(c *gin.Context) {
	tenantID, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	returnID, ok := h.pathUUID(c, "return_id", "return")
	if !ok {
		return
	}

	snap, err := h.returns.StateBefore(c.Request.Context(), tenantID, documentID, &returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snap)
}

// StateAfter handles GET /documents/:id/returns/:return_id/after
func (h *ReturnHandler) StateAfter(c *gin.Context) {
	tenantID, documentID, ok := h.documentScope(c)
	if !ok {
		return
	}
	returnID, ok := h.pathUUID(c, "return_id", "return")
	if !ok {
		return
	}

	snap, err := h.returns.StateAfter(c.Request.Context(), tenantID, documentID, &returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snap)
}

func (h *ReturnHandler) documentScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	documentID, ok := h.pathUUID(c, "id", "document")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, documentID, true
}
