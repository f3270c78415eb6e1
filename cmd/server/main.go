package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/queue"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	if err := run(cfg, logCfg, log); err != nil {
		log.Error("Ledger server stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	_ = logger.Sync(log)
}

func run(cfg *config.Config, logCfg *logger.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry comes first so the logger can tee into the OTLP pipeline
	telCfg := telemetryConfig(cfg)
	providers, err := telemetry.Setup(ctx, telCfg, log)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	if providers.Logs.IsEnabled() {
		teed, err := logger.New(logCfg, logger.WithCores(providers.Logs.ZapCore(logger.ParseLevel(cfg.Log.Level))))
		if err != nil {
			return fmt.Errorf("logger with otlp core: %w", err)
		}
		log = teed
		defer func() { _ = logger.Sync(log) }()
	}

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("driver", cfg.Database.Driver),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telCfg, log); err != nil {
		return fmt.Errorf("database tracing: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	log.Info("Database connected successfully")

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	meter := providers.Meter.Meter("github.com/erp/ledger")
	metrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		return fmt.Errorf("ledger metrics: %w", err)
	}

	// Event bus and reminder dispatch
	bus := event.NewInMemoryEventBus(log)
	codec := event.NewLedgerCodec()

	idemStore, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	defer func() { _ = idemStore.Close() }()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	sender := queue.NewLogReminderSender(log)

	var dispatcher ledgerapp.ReminderDispatcher
	if cfg.Queue.Enabled {
		client := queue.NewAsynqReminderClient(redisOpt, codec, queue.ClientConfig{
			Queue:    cfg.Queue.Queue,
			MaxRetry: cfg.Queue.MaxRetry,
		}, log)
		defer func() { _ = client.Close() }()
		dispatcher = client
	} else {
		dispatcher = queue.NewInlineDispatcher(sender)
	}

	reminders := ledgerapp.NewOverdueReminderHandler(dispatcher, metrics, log)
	bus.Subscribe(
		event.NewIdempotentHandler(reminders, idemStore, log, event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: true,
		})),
		reminders.EventTypes()...,
	)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	// Application services
	opts, err := serviceOptions(cfg.Ledger, metrics)
	if err != nil {
		return err
	}
	documentService := ledgerapp.NewDocumentService(txScope, documentRepo, bus, opts...)
	paymentService := ledgerapp.NewPaymentService(txScope, paymentRepo, documentRepo, allocationRepo, bus, opts...)
	returnService := ledgerapp.NewReturnService(txScope, documentRepo, returnRepo, bus, opts...)
	overdueService := ledgerapp.NewOverdueService(txScope, documentRepo, bus, opts...)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		Edge:             edgeConfig(cfg),
		Tracing:          middleware.TracingConfig{ServiceName: telCfg.ServiceName, Enabled: telCfg.Enabled},
		Meter:            meter,
		ProfilingEnabled: providers.Profiler.IsEnabled(),
		Logger:           log,
	}, router.Handlers{
		Documents: handler.NewDocumentHandler(documentService),
		Payments:  handler.NewPaymentHandler(paymentService),
		Returns:   handler.NewReturnHandler(returnService),
		Overdue:   handler.NewOverdueHandler(overdueService),
		System: handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, map[string]handler.Pinger{
			"database": db,
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Queue.Enabled {
		worker := queue.NewWorker(queue.WorkerConfig{
			Redis:       redisOpt,
			Queue:       cfg.Queue.Queue,
			Concurrency: cfg.Queue.Concurrency,
		}, queue.NewReminderHandler(codec, sender, log), log)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	var (
		sched   *scheduler.Scheduler
		trigger *scheduler.IntervalTrigger
	)
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(schedulerConfig(cfg.Scheduler), scheduler.ExecutorFunc(
			func(ctx context.Context, job *scheduler.Job) error {
				result, err := overdueService.Scan(ctx, job.TenantID)
				if err != nil {
					return err
				}
				log.Debug("Overdue scan finished",
					zap.String("tenant_id", job.TenantID.String()),
					zap.Int("transitioned", result.Transitioned),
				)
				return nil
			}), log)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		trigger = scheduler.NewIntervalTrigger(scheduler.JobKindOverdueScan, cfg.Scheduler.ScanInterval, sched, documentRepo, log)
		if err := trigger.Start(gctx); err != nil {
			return fmt.Errorf("start overdue trigger: %w", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if trigger != nil {
			errs = append(errs, trigger.Stop(shutdownCtx))
		}
		if sched != nil {
			errs = append(errs, sched.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx), bus.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	t := cfg.Telemetry
	name := t.ServiceName
	if name == "" {
		name = cfg.App.Name
	}
	return telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       name,
		Insecure:          t.Insecure,
		MetricsEnabled:    t.MetricsEnabled,
		MetricsInterval:   t.MetricsInterval,
		LogsEnabled:       t.LogsEnabled,
		DBTraceEnabled:    t.DBTraceEnabled,
		DBLogFullSQL:      t.DBLogFullSQL,
		DBSlowQueryThresh: t.DBSlowQueryThresh,
		ProfilingEnabled:  t.ProfilingEnabled,
		PyroscopeEndpoint: t.PyroscopeEndpoint,
	}
}

func edgeConfig(cfg *config.Config) middleware.EdgeConfig {
	edge := middleware.DefaultEdgeConfig()
	edge.Production = cfg.App.Env == "production"
	edge.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		edge.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		edge.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	edge.RateLimitEnabled = cfg.HTTP.RateLimitEnabled
	if cfg.HTTP.RateLimitRequests > 0 {
		edge.RateLimitRequests = cfg.HTTP.RateLimitRequests
	}
	if cfg.HTTP.RateLimitWindow > 0 {
		edge.RateLimitWindow = cfg.HTTP.RateLimitWindow
	}
	return edge
}

func schedulerConfig(c config.SchedulerConfig) scheduler.Config {
	sc := scheduler.DefaultConfig()
	if c.MaxConcurrentJobs > 0 {
		sc.MaxConcurrentJobs = c.MaxConcurrentJobs
	}
	if c.JobTimeout > 0 {
		sc.JobTimeout = c.JobTimeout
	}
	if c.RetryAttempts >= 0 {
		sc.RetryAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		sc.RetryDelay = c.RetryDelay
	}
	return sc
}

func serviceOptions(c config.LedgerConfig, metrics *telemetry.LedgerMetrics) ([]ledgerapp.ServiceOption, error) {
	opts := []ledgerapp.ServiceOption{
		ledgerapp.WithMetrics(metrics),
		ledgerapp.WithAllocationOverpay(c.AllowAllocationOverpay),
		ledgerapp.WithNumberingRetries(c.NumberingRetries),
		ledgerapp.WithOverdueBatchSize(c.OverdueBatchSize),
	}
	if c.DefaultCurrency != "" {
		cur, err := valueobject.ParseCurrency(c.DefaultCurrency)
		if err != nil {
			return nil, fmt.Errorf("ledger.default_currency: %w", err)
		}
		opts = append(opts, ledgerapp.WithDefaultCurrency(cur))
	}
	return opts, nil
}
