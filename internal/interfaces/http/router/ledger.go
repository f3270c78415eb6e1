package router

import (
	"time"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the endpoint groups mounted by LedgerRoutes
type Handlers struct {
	Documents *handler.DocumentHandler
	Payments  *handler.PaymentHandler
	Returns   *handler.ReturnHandler
	Overdue   *handler.OverdueHandler
	System    *handler.SystemHandler
}

// LedgerRoutes builds the route groups of the ledger API
func LedgerRoutes(h Handlers) []*DomainGroup {
	documents := NewDomainGroup("documents", "/documents")
	documents.POST("", h.Documents.Create).
		GET("", h.Documents.List).
		GET("/number/:number", h.Documents.GetByNumber).
		GET("/:id", h.Documents.GetByID).
		PUT("/:id", h.Documents.Amend).
		POST("/:id/events", h.Documents.ApplyEvent).
		POST("/:id/cancel", h.Documents.Cancel).
		GET("/:id/allocations", h.Payments.DocumentAllocations).
		POST("/:id/pay-in-full", h.Payments.PayInFull).
		POST("/:id/payments", h.Payments.PayPartially).
		POST("/:id/recompute", h.Payments.RecomputeDocument).
		POST("/:id/returns", h.Returns.Record).
		GET("/:id/returns", h.Returns.List).
		GET("/:id/returns/:return_id/before", h.Returns.StateBefore).
		GET("/:id/returns/:return_id/after", h.Returns.StateAfter).
		GET("/:id/snapshot", h.Returns.Current).
		GET("/:id/snapshot/original", h.Returns.Original)

	payments := NewDomainGroup("payments", "/payments")
	payments.POST("", h.Payments.Receive).
		GET("", h.Payments.List).
		GET("/:id", h.Payments.GetByID).
		GET("/:id/allocations", h.Payments.ListAllocations).
		POST("/:id/allocations", h.Payments.Allocate).
		POST("/:id/allocate-fifo", h.Payments.AllocateFIFO).
		POST("/:id/recompute", h.Payments.RecomputePayment)

	allocations := NewDomainGroup("allocations", "/allocations")
	allocations.POST("/:id/reverse", h.Payments.Reverse).
		POST("/:id/reallocate", h.Payments.Reallocate)

	maintenance := NewDomainGroup("maintenance", "")
	maintenance.POST("/verify", h.Payments.Verify).
		POST("/overdue/scan", h.Overdue.Scan)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{documents, payments, allocations, maintenance, system}
}

// EngineConfig configures the middleware stack built by NewEngine
type EngineConfig struct {
	TrustedProxies   []string
	MaxBodySize      int64
	RequestTimeout   time.Duration
	Edge             middleware.EdgeConfig
	Tracing          middleware.TracingConfig
	Meter            metric.Meter
	ProfilingEnabled bool
	Logger           *zap.Logger
}

// NewEngine assembles the gin engine with the full middleware stack, the
// health probes and every ledger route.
//
// Global middleware, in order: request id, request logging, panic recovery,
// security headers, CORS, rate limiting, body limit, tracing, metrics and
// profiling labels. API routes additionally get the tenant requirement, span
// attributes and the request deadline.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(cfg.Edge),
		middleware.CORS(cfg.Edge),
		middleware.RateLimit(cfg.Edge),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.Tracing(cfg.Tracing),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Profiling(cfg.ProfilingEnabled),
	)

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ready", h.System.Ready)
	}

	r := NewRouter(engine)
	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.SkipPaths = append(tenantCfg.SkipPaths, r.basePath+"/system")
	tenantCfg.Logger = log

	r.Use(
		middleware.Tenant(tenantCfg),
		middleware.SpanAttributes(),
		middleware.Timeout(cfg.RequestTimeout),
	)
	for _, group := range LedgerRoutes(h) {
		r.Register(group)
	}
	r.Setup()

	return engine
}
