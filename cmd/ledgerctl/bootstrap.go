package main

import (
	"context"
	"fmt"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/queue"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type overdueScanner interface {
	Scan(ctx context.Context, tenantID uuid.UUID) (*ledgerapp.ScanResult, error)
	ScanAllTenants(ctx context.Context) ([]ledgerapp.ScanResult, error)
}

type snapshotReader interface {
	StateBefore(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error)
	StateAfter(ctx context.Context, tenantID, documentID uuid.UUID, returnID *uuid.UUID) (*ledgerapp.SnapshotResponse, error)
	Current(ctx context.Context, tenantID, documentID uuid.UUID) (*ledgerapp.SnapshotResponse, error)
}

type driftVerifier interface {
	Verify(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ledgerapp.DriftReport, error)
}

// runtime is what a command needs once configuration and storage are up
type runtime struct {
	log      *zap.Logger
	overdue  overdueScanner
	returns  snapshotReader
	payments driftVerifier
	close    func()
}

type bootstrapFunc func(ctx context.Context, opts *rootOptions) (*runtime, error)

// bootstrap opens the database and builds the services with the same
// wiring as the server, minus HTTP and the background workers
func bootstrap(ctx context.Context, opts *rootOptions) (*runtime, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	closers := []func(){
		func() { _ = db.Close() },
		func() { _ = logger.Sync(log) },
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	idemStore, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	closers = append(closers, func() { _ = idemStore.Close() })

	// Overdue transitions found from the command line still queue reminders
	var dispatcher ledgerapp.ReminderDispatcher = queue.NewInlineDispatcher(queue.NewLogReminderSender(log))
	if cfg.Queue.Enabled {
		client := queue.NewAsynqReminderClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, event.NewLedgerCodec(), queue.ClientConfig{Queue: cfg.Queue.Queue, MaxRetry: cfg.Queue.MaxRetry}, log)
		closers = append(closers, func() { _ = client.Close() })
		dispatcher = client
	}

	bus := event.NewInMemoryEventBus(log)
	reminders := ledgerapp.NewOverdueReminderHandler(dispatcher, nil, log)
	bus.Subscribe(event.NewIdempotentHandler(reminders, idemStore, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Idempotency.TTL, Enabled: true})),
		reminders.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	closers = append(closers, func() { _ = bus.Stop(context.Background()) })

	svcOpts := []ledgerapp.ServiceOption{
		ledgerapp.WithAllocationOverpay(cfg.Ledger.AllowAllocationOverpay),
		ledgerapp.WithNumberingRetries(cfg.Ledger.NumberingRetries),
		ledgerapp.WithOverdueBatchSize(cfg.Ledger.OverdueBatchSize),
	}
	if cfg.Ledger.DefaultCurrency != "" {
		cur, err := valueobject.ParseCurrency(cfg.Ledger.DefaultCurrency)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("ledger.default_currency: %w", err)
		}
		svcOpts = append(svcOpts, ledgerapp.WithDefaultCurrency(cur))
	}

	documents := persistence.NewGormDocumentRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	return &runtime{
		log:     log,
		overdue: ledgerapp.NewOverdueService(txScope, documents, bus, svcOpts...),
		returns: ledgerapp.NewReturnService(txScope, documents, persistence.NewGormReturnRepository(db.DB), bus, svcOpts...),
		payments: ledgerapp.NewPaymentService(txScope,
			persistence.NewGormPaymentRepository(db.DB),
			documents,
			persistence.NewGormAllocationRepository(db.DB),
			bus, svcOpts...),
		close: closeAll,
	}, nil
}
