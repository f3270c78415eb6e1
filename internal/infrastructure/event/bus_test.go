package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, seq int) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Document", uuid.New(), uuid.New(), seq),
		Data:            "payload",
	}
}

type recordingHandler struct {
	types   []string
	mu      sync.Mutex
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) seen() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_PublishRoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	created := newRecordingHandler("ledger.document.created")
	overdue := newRecordingHandler("ledger.document.overdue")
	all := newRecordingHandler()
	bus.Subscribe(created)
	bus.Subscribe(overdue)
	bus.Subscribe(all)

	e1 := newTestEvent("ledger.document.created", 1)
	e2 := newTestEvent("ledger.document.overdue", 3)
	require.NoError(t, bus.Publish(context.Background(), e1, e2))

	assert.Equal(t, []shared.DomainEvent{e1}, created.seen())
	assert.Equal(t, []shared.DomainEvent{e2}, overdue.seen())
	assert.Equal(t, []shared.DomainEvent{e1, e2}, all.seen())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newRecordingHandler("ledger.document.created")
	bus.Subscribe(h, "ledger.payment.received")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ledger.document.created", 1)))
	assert.Empty(t, h.seen())
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ledger.payment.received", 1)))
	assert.Len(t, h.seen(), 1)
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newRecordingHandler("ledger.document.created")
	failing.err = errors.New("smtp down")
	panicking := newRecordingHandler("ledger.document.created")
	panicking.panics = true
	healthy := newRecordingHandler("ledger.document.created")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	evt := newTestEvent("ledger.document.created", 1)
	require.NoError(t, bus.Publish(context.Background(), evt))

	assert.Len(t, healthy.seen(), 1)
	entries := logs.FilterMessage("Event handler failed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, evt.IdempotencyKey(), entries[0].ContextMap()["idempotency_key"])
	assert.Contains(t, entries[1].ContextMap()["error"], "handler panicked")
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newRecordingHandler("ledger.document.created")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ledger.document.created", 1)))
	assert.Empty(t, h.seen())
}

func TestInMemoryEventBus_StopRefusesPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	err := bus.Publish(context.Background(), newTestEvent("ledger.document.created", 1))
	assert.ErrorIs(t, err, ErrBusStopped)

	require.NoError(t, bus.Start(context.Background()))
	assert.NoError(t, bus.Publish(context.Background(), newTestEvent("ledger.document.created", 1)))
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := newRecordingHandler()
	b := newRecordingHandler()
	wild := newRecordingHandler()

	r.Register(a, "x", "y")
	r.Register(a, "x")
	r.Register(b, "x")
	r.Register(wild)
	r.Register(wild)

	assert.Equal(t, []shared.EventHandler{a, b, wild}, r.GetHandlers("x"))
	assert.Equal(t, []shared.EventHandler{a, wild}, r.GetHandlers("y"))
	assert.Equal(t, []shared.EventHandler{wild}, r.GetHandlers("z"))
	assert.Equal(t, 3, r.Len())

	r.Unregister(a)
	assert.Equal(t, []shared.EventHandler{b, wild}, r.GetHandlers("x"))
	assert.Equal(t, []shared.EventHandler{wild}, r.GetHandlers("y"))
	assert.Equal(t, 2, r.Len())
}
