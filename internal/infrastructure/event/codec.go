package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

// Envelope is the wire form of an event crossing a process boundary
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Codec encodes domain events to JSON envelopes and back
type Codec struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewCodec creates an empty codec
func NewCodec() *Codec {
	return &Codec{registry: make(map[string]reflect.Type)}
}

// NewLedgerCodec returns a codec that knows every ledger event
func NewLedgerCodec() *Codec {
	c := NewCodec()
	c.Register(ledger.EventTypeDocumentCreated, &ledger.DocumentCreatedEvent{})
	c.Register(ledger.EventTypeDocumentCancelled, &ledger.DocumentCancelledEvent{})
	c.Register(ledger.EventTypeDocumentStatusChanged, &ledger.DocumentStatusChangedEvent{})
	c.Register(ledger.EventTypeDocumentOverdue, &ledger.DocumentOverdueEvent{})
	c.Register(ledger.EventTypePaymentReceived, &ledger.PaymentReceivedEvent{})
	c.Register(ledger.EventTypePaymentAllocated, &ledger.PaymentAllocatedEvent{})
	c.Register(ledger.EventTypeAllocationReversed, &ledger.AllocationReversedEvent{})
	c.Register(ledger.EventTypeReturnRecorded, &ledger.ReturnRecordedEvent{})
	return c
}

// Register binds eventType to the concrete type of sample
func (c *Codec) Register(eventType string, sample shared.DomainEvent) {
	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.Lock()
	c.registry[eventType] = t
	c.mu.Unlock()
}

// Encode wraps evt in an Envelope
func (c *Codec) Encode(evt shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", evt.EventType(), err)
	}
	return json.Marshal(Envelope{Type: evt.EventType(), Data: data})
}

// Decode restores an event encoded by Encode
func (c *Codec) Decode(payload []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	c.mu.RLock()
	t, ok := c.registry[env.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", env.Type, err)
	}
	evt, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("type %s does not implement DomainEvent", t)
	}
	return evt, nil
}

// RegisteredTypes returns the known event types in sorted order
func (c *Codec) RegisteredTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]string, 0, len(c.registry))
	for t := range c.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
