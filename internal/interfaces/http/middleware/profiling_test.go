package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/api/v1/ledger/documents", "documents"},
		{"/api/v1/ledger/documents/:id/returns", "documents"},
		{"/api/v2/ledger/payments/:id", "payments"},
		{"/api/v1/ledger/:id", ""},
		{"/", ""},
		{"/health", "health"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, resourceFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("v12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("ledger"))
}

func TestProfiling_LabelsRequest(t *testing.T) {
	labels := map[string]string{}
	router := gin.New()
	router.Use(Profiling(true))
	router.GET("/api/v1/ledger/payments/:id", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			labels[key] = value
			return true
		})
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/payments/42", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/ledger/payments/:id", labels[ProfilingLabelRoute])
	assert.Equal(t, http.MethodGet, labels[ProfilingLabelMethod])
	assert.Equal(t, "payments", labels[ProfilingLabelResource])
}

func TestProfiling_Disabled(t *testing.T) {
	labelled := false
	router := gin.New()
	router.Use(Profiling(false))
	router.GET("/api/v1/ledger/payments", func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(string, string) bool {
			labelled = true
			return false
		})
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/payments", nil))
	assert.False(t, labelled)
}
