package ledger

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger store. Every read returns a copy, so a
// service only sees its own changes once it saves them.
type memStore struct {
	mu          sync.Mutex
	documents   map[uuid.UUID]ledger.Document
	payments    map[uuid.UUID]ledger.Payment
	allocations []ledger.Allocation
	returns     []ledger.Return
	seq         map[string]int64

	// taken numbers make Create fail with NUMBERING_COLLISION
	taken map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		documents: make(map[uuid.UUID]ledger.Document),
		payments:  make(map[uuid.UUID]ledger.Payment),
		seq:       make(map[string]int64),
		taken:     make(map[string]bool),
	}
}

func (m *memStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(memDocuments{m}, memPayments{m}, memAllocations{m}, memReturns{m}, memNumbers{m})
}

func copyDocument(d ledger.Document) ledger.Document {
	d.Items = slices.Clone(d.Items)
	d.ClearDomainEvents()
	return d
}

func copyPayment(p ledger.Payment) ledger.Payment {
	p.ClearDomainEvents()
	return p
}

// put stores a document as-is, bypassing the version check
func (m *memStore) put(d *ledger.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = copyDocument(*d)
}

func (m *memStore) putPayment(p *ledger.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = copyPayment(*p)
}

func (m *memStore) doc(id uuid.UUID) ledger.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyDocument(m.documents[id])
}

func (m *memStore) payment(id uuid.UUID) ledger.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPayment(m.payments[id])
}

func (m *memStore) allocationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocations)
}

type memDocuments struct{ m *memStore }

func (r memDocuments) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.documents[id]
	if !ok || d.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := copyDocument(d)
	return &cp, nil
}

func (r memDocuments) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Document, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r memDocuments) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*ledger.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.documents {
		if d.TenantID == tenantID && d.DocumentNumber == number {
			cp := copyDocument(d)
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memDocuments) FindAllForTenant(_ context.Context, tenantID uuid.UUID, f ledger.DocumentFilter) ([]ledger.Document, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Document
	for _, d := range r.m.documents {
		if d.TenantID != tenantID {
			continue
		}
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, d.Kind) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, d.Status) {
			continue
		}
		if f.OnlyOutstanding && !d.BalanceAmount.IsPositive() {
			continue
		}
		out = append(out, copyDocument(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentNumber < out[j].DocumentNumber })
	total := int64(len(out))
	p := f.Pagination.Normalize()
	start := min(p.Offset(), len(out))
	end := min(start+p.PageSize, len(out))
	return out[start:end], total, nil
}

func (r memDocuments) FindOverdueCandidates(_ context.Context, tenantID uuid.UUID, q ledger.OverdueQuery) ([]ledger.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Document
	for _, d := range r.m.documents {
		if d.TenantID == tenantID && d.DueDate.Before(q.Now) && d.BalanceAmount.IsPositive() &&
			slices.Contains(q.Statuses, d.Status) {
			out = append(out, copyDocument(d))
		}
	}
	return out, nil
}

func (r memDocuments) FindOpenByCounterparty(_ context.Context, tenantID uuid.UUID, ref, currency string) ([]ledger.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Document
	for _, d := range r.m.documents {
		if d.TenantID == tenantID && d.CounterpartyRef == ref && d.Currency.String() == currency &&
			d.BalanceAmount.IsPositive() {
			out = append(out, copyDocument(d))
		}
	}
	return out, nil
}

func (r memDocuments) TenantsWithOpenDocuments(context.Context) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, d := range r.m.documents {
		if d.BalanceAmount.IsPositive() && !seen[d.TenantID] {
			seen[d.TenantID] = true
			out = append(out, d.TenantID)
		}
	}
	return out, nil
}

func (r memDocuments) Create(_ context.Context, doc *ledger.Document) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.taken[doc.DocumentNumber] {
		return shared.NewDomainErrorf(ledger.CodeNumberingCollision, "document number %s is already taken", doc.DocumentNumber)
	}
	r.m.taken[doc.DocumentNumber] = true
	r.m.documents[doc.ID] = copyDocument(*doc)
	return nil
}

func (r memDocuments) SaveWithLock(_ context.Context, doc *ledger.Document) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.documents[doc.ID]
	if !ok || stored.Version != doc.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.documents[doc.ID] = copyDocument(*doc)
	return nil
}

type memPayments struct{ m *memStore }

func (r memPayments) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := copyPayment(p)
	return &cp, nil
}

func (r memPayments) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r memPayments) FindAllForTenant(_ context.Context, tenantID uuid.UUID, f ledger.PaymentFilter) ([]ledger.Payment, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Payment
	for _, p := range r.m.payments {
		if p.TenantID != tenantID {
			continue
		}
		if f.OnlyUnallocated && !p.UnallocatedAmount.IsPositive() {
			continue
		}
		out = append(out, copyPayment(p))
	}
	return out, int64(len(out)), nil
}

func (r memPayments) Create(_ context.Context, p *ledger.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.ID] = copyPayment(*p)
	return nil
}

func (r memPayments) SaveWithLock(_ context.Context, p *ledger.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.payments[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.payments[p.ID] = copyPayment(*p)
	return nil
}

type memAllocations struct{ m *memStore }

func (r memAllocations) Create(_ context.Context, a *ledger.Allocation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.allocations = append(r.m.allocations, *a)
	return nil
}

func (r memAllocations) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Allocation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.allocations {
		if a.ID == id && a.TenantID == tenantID {
			cp := a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memAllocations) FindByPayment(_ context.Context, tenantID, paymentID uuid.UUID) ([]ledger.Allocation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Allocation
	for _, a := range r.m.allocations {
		if a.TenantID == tenantID && a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAllocations) FindByDocument(_ context.Context, tenantID, documentID uuid.UUID) ([]ledger.Allocation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Allocation
	for _, a := range r.m.allocations {
		if a.TenantID == tenantID && a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAllocations) ExistsReversalOf(_ context.Context, tenantID, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.allocations {
		if a.TenantID == tenantID && a.ReversesID != nil && *a.ReversesID == id {
			return true, nil
		}
	}
	return false, nil
}

type memReturns struct{ m *memStore }

func (r memReturns) Create(_ context.Context, ret *ledger.Return) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.returns {
		if existing.DocumentID == ret.DocumentID && existing.SequenceNo == ret.SequenceNo {
			return shared.ErrAlreadyExists
		}
	}
	r.m.returns = append(r.m.returns, *ret)
	return nil
}

func (r memReturns) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Return, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ret := range r.m.returns {
		if ret.ID == id && ret.TenantID == tenantID {
			cp := ret
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memReturns) FindByDocument(_ context.Context, tenantID, documentID uuid.UUID) ([]ledger.Return, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Return
	for _, ret := range r.m.returns {
		if ret.TenantID == tenantID && ret.DocumentID == documentID {
			out = append(out, ret)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNo < out[j].SequenceNo })
	return out, nil
}

type memNumbers struct{ m *memStore }

func (g memNumbers) Next(_ context.Context, tenantID uuid.UUID, kind ledger.DocumentKind, at time.Time) (string, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	period := ledger.NumberingPeriod(at)
	key := tenantID.String() + kind.String() + period
	g.m.seq[key]++
	return ledger.FormatDocumentNumber(kind, period, g.m.seq[key]), nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) ofType(t string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type stubCatalog struct {
	products map[string]ledger.ProductSnapshot
	err      error
}

func (c stubCatalog) LookupProducts(_ context.Context, _ uuid.UUID, refs []string) (map[string]ledger.ProductSnapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]ledger.ProductSnapshot)
	for _, ref := range refs {
		if p, ok := c.products[ref]; ok {
			out[ref] = p
		}
	}
	return out, nil
}

type stubCounterparties map[string]bool

func (c stubCounterparties) LookupCounterparty(_ context.Context, _ uuid.UUID, ref string) (*ledger.Counterparty, error) {
	if !c[ref] {
		return nil, shared.ErrNotFound
	}
	return &ledger.Counterparty{Ref: ref, Name: "Counterparty " + ref}, nil
}

var errBoom = errors.New("boom")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lineReq(ref, qty, price, discount, tax string) LineItemRequest {
	return LineItemRequest{
		ProductRef:     ref,
		ProductName:    "Product " + ref,
		Quantity:       dec(qty),
		UnitPrice:      dec(price),
		DiscountAmount: dec(discount),
		TaxAmount:      dec(tax),
	}
}

// declaredFor computes the totals a well-behaved caller would declare
func declaredFor(items ...LineItemRequest) DeclaredTotals {
	t := ledger.ComputeTotals(toLineItemInputs(items), nil)
	return DeclaredTotals{
		Subtotal:       t.Subtotal,
		TaxAmount:      t.TaxAmount,
		DiscountAmount: t.DiscountAmount,
		TotalAmount:    t.TotalAmount,
	}
}
