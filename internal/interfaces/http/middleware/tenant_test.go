package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTenantRouter(seen *uuid.UUID) *gin.Engine {
	router := gin.New()
	router.Use(Tenant(DefaultTenantConfig()))
	handler := func(c *gin.Context) {
		if id, ok := GetTenantID(c); ok {
			*seen = id
		}
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/ledger/documents", handler)
	router.GET("/health", handler)
	return router
}

func TestTenant(t *testing.T) {
	tenantID := uuid.New()

	t.Run("parses the header into both contexts", func(t *testing.T) {
		var seen uuid.UUID
		var fromCtx uuid.UUID
		router := gin.New()
		router.Use(Tenant(DefaultTenantConfig()))
		router.GET("/x", func(c *gin.Context) {
			seen, _ = GetTenantID(c)
			fromCtx, _ = logger.GetTenantID(c.Request.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, seen)
		assert.Equal(t, tenantID, fromCtx)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not a uuid", "acme"},
		{"nil uuid", uuid.Nil.String()},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			var seen uuid.UUID
			router := newTenantRouter(&seen)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/documents", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), dto.ErrCodeTenant)
			assert.Equal(t, uuid.Nil, seen)
		})
	}

	t.Run("skips health checks", func(t *testing.T) {
		var seen uuid.UUID
		router := newTenantRouter(&seen)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
