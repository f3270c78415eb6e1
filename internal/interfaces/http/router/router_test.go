package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "/api/v1/ledger", r.basePath)
	assert.Empty(t, r.registrars)
}

func TestRouterWithBasePath(t *testing.T) {
	r := NewRouter(gin.New(), WithBasePath("/api/v2/ledger"))

	assert.Equal(t, "/api/v2/ledger", r.basePath)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group)
	r.Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterUse(t *testing.T) {
	engine := gin.New()
	engine.GET("/outside", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("marker"))
	})

	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Set("marker", "inside")
		c.Next()
	})
	group := NewDomainGroup("test", "/test")
	group.GET("/marker", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("marker"))
	})
	r.Register(group).Setup()

	for path, want := range map[string]string{"/api/v1/ledger/test/marker": "inside", "/outside": ""} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Body.String(), path)
	}
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("documents", "/documents")
		assert.Equal(t, "documents", g.Name())
		assert.Equal(t, "/documents", g.Prefix())
	})

	t.Run("registers methods", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test")
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		g.GET("/items", ok).POST("/items", ok).PUT("/items/:id", ok)
		g.RegisterRoutes(engine.Group("/api"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/test/items"},
			{http.MethodPost, "/api/test/items"},
			{http.MethodPut, "/api/test/items/1"},
		} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.method, w.Body.String())
		}
	})

	t.Run("group middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("parent", "/parent").Use(func(c *gin.Context) {
			c.Header("X-Group", "parent")
			c.Next()
		})
		g.Group("child", "/child").GET("/leaf", func(c *gin.Context) {
			c.String(http.StatusOK, "leaf")
		})
		g.RegisterRoutes(engine.Group(""))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/parent/child/leaf", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "parent", w.Header().Get("X-Group"))
	})
}

func newTestEngine() *gin.Engine {
	h := Handlers{
		Documents: handler.NewDocumentHandler(nil),
		Payments:  handler.NewPaymentHandler(nil),
		Returns:   handler.NewReturnHandler(nil),
		Overdue:   handler.NewOverdueHandler(nil),
		System:    handler.NewSystemHandler("ledger", "test", nil),
	}
	return NewEngine(EngineConfig{
		MaxBodySize: 1 << 10,
		Edge:        middleware.DefaultEdgeConfig(),
		Tracing:     middleware.TracingConfig{Enabled: false},
	}, h)
}

func TestLedgerRoutes_Table(t *testing.T) {
	engine := newTestEngine()

	routes := make(map[string]bool)
	for _, ri := range engine.Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}

	expected := []string{
		"POST /api/v1/ledger/documents",
		"GET /api/v1/ledger/documents",
		"GET /api/v1/ledger/documents/number/:number",
		"GET /api/v1/ledger/documents/:id",
		"PUT /api/v1/ledger/documents/:id",
		"POST /api/v1/ledger/documents/:id/events",
		"POST /api/v1/ledger/documents/:id/cancel",
		"POST /api/v1/ledger/documents/:id/pay-in-full",
		"POST /api/v1/ledger/documents/:id/payments",
		"GET /api/v1/ledger/documents/:id/allocations",
		"POST /api/v1/ledger/documents/:id/recompute",
		"POST /api/v1/ledger/documents/:id/returns",
		"GET /api/v1/ledger/documents/:id/returns",
		"GET /api/v1/ledger/documents/:id/returns/:return_id/before",
		"GET /api/v1/ledger/documents/:id/returns/:return_id/after",
		"GET /api/v1/ledger/documents/:id/snapshot",
		"GET /api/v1/ledger/documents/:id/snapshot/original",
		"POST /api/v1/ledger/payments",
		"GET /api/v1/ledger/payments",
		"GET /api/v1/ledger/payments/:id",
		"GET /api/v1/ledger/payments/:id/allocations",
		"POST /api/v1/ledger/payments/:id/allocations",
		"POST /api/v1/ledger/payments/:id/allocate-fifo",
		"POST /api/v1/ledger/payments/:id/recompute",
		"POST /api/v1/ledger/allocations/:id/reverse",
		"POST /api/v1/ledger/allocations/:id/reallocate",
		"POST /api/v1/ledger/verify",
		"POST /api/v1/ledger/overdue/scan",
		"GET /api/v1/ledger/system/info",
		"GET /health",
		"GET /ready",
	}
	for _, route := range expected {
		assert.True(t, routes[route], "missing route %s", route)
	}
}

func TestNewEngine_Middleware(t *testing.T) {
	engine := newTestEngine()

	t.Run("health needs no tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("system info needs no tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/system/info", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("api requires tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/documents/"+uuid.NewString(), nil)
		req.Header.Set(middleware.RequestIDHeader, "trace-me")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeTenant, resp.Error.Code)
		assert.Equal(t, "trace-me", resp.Error.RequestID)
	})

	t.Run("path ids are validated before any service call", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/payments/not-a-uuid", nil)
		req.Header.Set(middleware.TenantHeaderKey, uuid.NewString())
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := make([]byte, 2<<10)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/payments", nil)
		req.ContentLength = int64(len(body))
		req.Header.Set(middleware.TenantHeaderKey, uuid.NewString())
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/nowhere", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
