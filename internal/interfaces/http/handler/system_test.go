package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"testing"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func setupSystemRouter(h *SystemHandler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/system/info", h.GetSystemInfo)
	return r
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("ledger", "1.2.3", nil)
	r := setupSystemRouter(h)

	w := doRequest(t, r, http.MethodGet, "/system/info", uuid.Nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[SystemInfoResponse](t, w)
	assert.Equal(t, "ledger", resp.Data.Name)
	assert.Equal(t, "1.2.3", resp.Data.Version)
	assert.Equal(t, runtime.Version(), resp.Data.GoVersion)
	assert.NotEmpty(t, resp.Data.Uptime)
}

func TestSystemHandler_Health(t *testing.T) {
	r := setupSystemRouter(NewSystemHandler("ledger", "dev", nil))

	w := doRequest(t, r, http.MethodGet, "/health", uuid.Nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSystemHandler_Ready(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := NewSystemHandler("ledger", "dev", map[string]Pinger{
			"database": pingerFunc(func(context.Context) error { return nil }),
		})

		w := doRequest(t, setupSystemRouter(h), http.MethodGet, "/ready", uuid.Nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeData[ReadyResponse](t, w)
		assert.Equal(t, "ready", resp.Data.Status)
		assert.Equal(t, "ok", resp.Data.Checks["database"])
	})

	t.Run("failing check", func(t *testing.T) {
		h := NewSystemHandler("ledger", "dev", map[string]Pinger{
			"database": pingerFunc(func(context.Context) error { return nil }),
			"redis":    pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
		})

		w := doRequest(t, setupSystemRouter(h), http.MethodGet, "/ready", uuid.Nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeData[ReadyResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "unavailable", resp.Data.Status)
		assert.Equal(t, "ok", resp.Data.Checks["database"])
		assert.Contains(t, resp.Data.Checks["redis"], "connection refused")
	})

	t.Run("probes get a deadline", func(t *testing.T) {
		h := NewSystemHandler("ledger", "dev", map[string]Pinger{
			"database": pingerFunc(func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("no deadline")
				}
				return nil
			}),
		})

		w := doRequest(t, setupSystemRouter(h), http.MethodGet, "/ready", uuid.Nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOverdueHandler_Scan(t *testing.T) {
	tenantID := uuid.New()

	setup := func(svc *MockOverdueService) *gin.Engine {
		h := NewOverdueHandler(svc)
		return newTestRouter(func(g *gin.RouterGroup) {
			g.POST("/overdue/scan", h.Scan)
		})
	}

	t.Run("scans tenant", func(t *testing.T) {
		svc := new(MockOverdueService)
		svc.On("Scan", mock.Anything, tenantID).Return(&ledgerapp.ScanResult{TenantID: tenantID, Scanned: 4, Transitioned: 3, Skipped: 1}, nil)

		w := doRequest(t, setup(svc), http.MethodPost, "/api/v1/ledger/overdue/scan", tenantID, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeData[ledgerapp.ScanResult](t, w)
		assert.Equal(t, 3, resp.Data.Transitioned)
		assert.Equal(t, 1, resp.Data.Skipped)
	})

	t.Run("propagates failure", func(t *testing.T) {
		svc := new(MockOverdueService)
		svc.On("Scan", mock.Anything, tenantID).Return(nil, errors.New("db down"))

		w := doRequest(t, setup(svc), http.MethodPost, "/api/v1/ledger/overdue/scan", tenantID, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, dto.ErrCodeInternal, decodeResponse(t, w).Error.Code)
	})
}
