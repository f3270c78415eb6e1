package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a trigger should schedule work for
type TenantProvider interface {
	TenantsWithOpenDocuments(ctx context.Context) ([]uuid.UUID, error)
}

// TenantProviderFunc adapts a function to TenantProvider
type TenantProviderFunc func(ctx context.Context) ([]uuid.UUID, error)

// TenantsWithOpenDocuments calls f
func (f TenantProviderFunc) TenantsWithOpenDocuments(ctx context.Context) ([]uuid.UUID, error) {
	return f(ctx)
}

// IntervalTrigger submits one job per tenant every Interval
type IntervalTrigger struct {
	kind      JobKind
	interval  time.Duration
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger
	now       func() time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewIntervalTrigger creates a trigger for jobs of kind
func NewIntervalTrigger(kind JobKind, interval time.Duration, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		kind:      kind,
		interval:  interval,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs the trigger loop until Stop or ctx cancellation
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	if t.interval <= 0 {
		return ErrInvalidConfig
	}
	t.running = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(ctx)

	t.logger.Info("Interval trigger started",
		zap.String("kind", string(t.kind)),
		zap.Duration("interval", t.interval),
	)
	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) loop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.TriggerAll(ctx); err != nil {
				t.logger.Error("Failed to trigger scheduled jobs", zap.String("kind", string(t.kind)), zap.Error(err))
			}
		}
	}
}

// TriggerAll submits a job for every tenant the provider returns and
// reports how many were submitted. Tenants that already have a job in
// flight are skipped.
func (t *IntervalTrigger) TriggerAll(ctx context.Context) (int, error) {
	tenantIDs, err := t.tenants.TenantsWithOpenDocuments(ctx)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, tenantID := range tenantIDs {
		if err := t.TriggerTenant(tenantID); err != nil {
			if errors.Is(err, ErrJobAlreadyQueued) {
				continue
			}
			t.logger.Error("Failed to schedule job for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.String("kind", string(t.kind)),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}
	t.logger.Info("Scheduled jobs",
		zap.String("kind", string(t.kind)),
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("submitted", submitted),
	)
	return submitted, nil
}

// TriggerTenant submits a job for one tenant immediately
func (t *IntervalTrigger) TriggerTenant(tenantID uuid.UUID) error {
	_, err := t.scheduler.Schedule(tenantID, t.kind, t.now())
	return err
}
