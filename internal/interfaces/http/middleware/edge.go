package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// EdgeConfig configures the middleware that faces the network
type EdgeConfig struct {
	Production bool

	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultEdgeConfig returns the development defaults. AllowOrigins is empty,
// so cross-origin requests are refused until configured.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		AllowMethods:      []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:      []string{"Content-Type", "Accept", "Origin", RequestIDHeader, TenantHeaderKey},
		RateLimitEnabled:  true,
		RateLimitRequests: 300,
		RateLimitWindow:   time.Minute,
	}
}

// Secure sets the standard security response headers
func Secure(cfg EdgeConfig) gin.HandlerFunc {
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Production,
	})
	return func(c *gin.Context) {
		// Process writes its own response when it refuses the request
		if err := s.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}

// CORS answers preflight requests and decorates responses for the allowed
// origins
func CORS(cfg EdgeConfig) gin.HandlerFunc {
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowOrigins,
		AllowedMethods:   cfg.AllowMethods,
		AllowedHeaders:   cfg.AllowHeaders,
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}
	if len(cfg.AllowOrigins) == 0 {
		// An empty list would otherwise mean any origin
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return adapt(cors.Handler(opts))
}

// RateLimit throttles per tenant and client IP. Requests over the limit get
// the standard error envelope.
func RateLimit(cfg EdgeConfig) gin.HandlerFunc {
	if !cfg.RateLimitEnabled || cfg.RateLimitRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return adapt(httprate.Limit(cfg.RateLimitRequests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP, rateLimitTenantKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, "Too many requests", w.Header().Get(RequestIDHeader)))
		}),
	))
}

func rateLimitTenantKey(r *http.Request) (string, error) {
	return "tenant:" + strings.TrimSpace(r.Header.Get(TenantHeaderKey)), nil
}

// adapt runs a net/http middleware inside the gin chain. If the middleware
// answers without calling next, the gin chain stops there.
func adapt(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		mw(next).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
