package handler

import "github.com/gin-gonic/gin"

// OverdueHandler lets operators run the overdue scan for their tenant without
// waiting for the scheduler
type OverdueHandler struct {
	BaseHandler
	overdue OverdueService
}

// NewOverdueHandler creates a new OverdueHandler
func NewOverdueHandler(overdue OverdueService) *OverdueHandler {
	return &OverdueHandler{overdue: overdue}
}

// Scan handles POST /overdue/scan
func (h *OverdueHandler) Scan(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	result, err := h.overdue.Scan(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
