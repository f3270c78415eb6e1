package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentService creates documents and drives their caller-facing workflow
type DocumentService struct {
	txScope   TransactionScope
	documents ledger.DocumentRepository
	publisher shared.EventPublisher
	opts      serviceOptions
}

// NewDocumentService creates a new DocumentService. documents serves reads
// outside a transaction; every write goes through txScope.
func NewDocumentService(
	txScope TransactionScope,
	documents ledger.DocumentRepository,
	publisher shared.EventPublisher,
	opts ...ServiceOption,
) *DocumentService {
	return &DocumentService{
		txScope:   txScope,
		documents: documents,
		publisher: publisher,
		opts:      applyOptions(opts),
	}
}

// Create reconciles the items, numbers the document inside the creation
// transaction and stores it in DRAFT
func (s *DocumentService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDocumentRequest) (resp *DocumentResponse, err error) {
	kind := ledger.DocumentKind(strings.ToUpper(req.Kind))
	ctx, span := telemetry.StartSpan(ctx, "ledger.document.create",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentKind.String(kind.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	currency, err := resolveCurrency(req.Currency, s.opts.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := s.checkCounterparty(ctx, tenantID, req.CounterpartyRef); err != nil {
		return nil, err
	}
	items, err := s.enrichItems(ctx, tenantID, toLineItemInputs(req.Items))
	if err != nil {
		return nil, err
	}

	params := ledger.NewDocumentParams{
		Kind:            kind,
		CounterpartyRef: req.CounterpartyRef,
		Currency:        currency,
		Items:           items,
		Declared:        req.Declared.toDomain(),
		TaxOverride:     req.TaxOverride,
		Notes:           req.Notes,
	}
	if req.IssueDate != nil {
		params.IssueDate = *req.IssueDate
	}
	if req.DueDate != nil {
		params.DueDate = *req.DueDate
	}
	doc, err := ledger.NewDocument(tenantID, params)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return s.insertNumbered(ctx, repos, doc)
	})
	if err != nil {
		return nil, err
	}

	doc.AddDomainEvent(ledger.NewDocumentCreatedEvent(doc))
	publishCommitted(ctx, s.publisher, drainEvents(doc))
	s.opts.metrics.DocumentCreated(ctx, doc.Kind.String())

	logger.L(ctx).Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_number", doc.DocumentNumber),
		zap.String("kind", doc.Kind.String()),
		zap.String("total_amount", doc.TotalAmount.StringFixed(2)),
	)
	out := ToDocumentResponse(doc)
	return &out, nil
}

// insertNumbered assigns the next number and inserts the document. A
// collision on the number is retried with a fresh number a bounded number
// of times, all inside the caller's transaction.
func (s *DocumentService) insertNumbered(ctx context.Context, repos TransactionalRepositories, doc *ledger.Document) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.numberingRetries; attempt++ {
		number, err := repos.Numbers().Next(ctx, doc.TenantID, doc.Kind, doc.IssueDate)
		if err != nil {
			return fmt.Errorf("failed to issue document number: %w", err)
		}
		if err := doc.AssignNumber(number); err != nil {
			return err
		}
		err = repos.Documents().Create(ctx, doc)
		if err == nil {
			return nil
		}
		if !ledger.IsNumberingCollision(err) {
			return err
		}
		lastErr = err
		s.opts.metrics.NumberingRetry(ctx, doc.Kind.String())
		logger.L(ctx).Warn("Document number collision, retrying",
			zap.String("document_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return lastErr
}

// Amend replaces the items of a draft and re-runs reconciliation
func (s *DocumentService) Amend(ctx context.Context, tenantID, documentID uuid.UUID, req AmendDocumentRequest) (resp *DocumentResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.document.amend",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	items, err := s.enrichItems(ctx, tenantID, toLineItemInputs(req.Items))
	if err != nil {
		return nil, err
	}

	var doc *ledger.Document
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion(doc.Version, req.Version); err != nil {
			return err
		}
		if err := doc.Amend(ledger.AmendParams{
			Items:       items,
			Declared:    req.Declared.toDomain(),
			TaxOverride: req.TaxOverride,
			IssueDate:   req.IssueDate,
			DueDate:     req.DueDate,
			Notes:       req.Notes,
		}); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	publishCommitted(ctx, s.publisher, drainEvents(doc))
	out := ToDocumentResponse(doc)
	return &out, nil
}

// ApplyEvent applies a caller-driven workflow event such as SEND or ACCEPT
func (s *DocumentService) ApplyEvent(ctx context.Context, tenantID, documentID uuid.UUID, req ApplyEventRequest) (resp *DocumentResponse, err error) {
	event, err := ledger.ParseDocumentEvent(strings.ToUpper(req.Event))
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "ledger.document.apply_event",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
		telemetry.AttrEvent.String(event.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	return s.transition(ctx, tenantID, documentID, req.Version, func(doc *ledger.Document) error {
		return doc.ApplyEvent(event)
	})
}

// Cancel moves a document to CANCELLED. Allocations already made stay in
// place.
func (s *DocumentService) Cancel(ctx context.Context, tenantID, documentID uuid.UUID, req CancelDocumentRequest) (resp *DocumentResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.document.cancel",
		telemetry.AttrTenantID.String(tenantID.String()),
		telemetry.AttrDocumentID.String(documentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	resp, err = s.transition(ctx, tenantID, documentID, 0, func(doc *ledger.Document) error {
		return doc.Cancel(req.Reason)
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Document cancelled",
		zap.String("document_id", documentID.String()),
		zap.String("document_number", resp.DocumentNumber),
		zap.String("reason", resp.CancelReason),
	)
	return resp, nil
}

func (s *DocumentService) transition(
	ctx context.Context,
	tenantID, documentID uuid.UUID,
	expectedVersion int,
	apply func(*ledger.Document) error,
) (*DocumentResponse, error) {
	var doc *ledger.Document
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion(doc.Version, expectedVersion); err != nil {
			return err
		}
		if err := apply(doc); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	events := drainEvents(doc)
	recordTransitions(ctx, s.opts.metrics, events)
	publishCommitted(ctx, s.publisher, events)
	out := ToDocumentResponse(doc)
	return &out, nil
}

// GetByID returns a document with its items
func (s *DocumentService) GetByID(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByIDForTenant(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	out := ToDocumentResponse(doc)
	return &out, nil
}

// GetByNumber returns a document by its number
func (s *DocumentService) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*DocumentResponse, error) {
	doc, err := s.documents.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, err
	}
	out := ToDocumentResponse(doc)
	return &out, nil
}

// List returns one page of documents and the total count
func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	domainFilter, err := filter.toDomain()
	if err != nil {
		return nil, 0, err
	}
	docs, total, err := s.documents.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToDocumentResponses(docs), total, nil
}

func (f DocumentListFilter) toDomain() (ledger.DocumentFilter, error) {
	out := ledger.DocumentFilter{
		Pagination:      shared.Pagination{Page: f.Page, PageSize: f.PageSize}.Normalize(),
		DueBefore:       f.DueBefore,
		DueAfter:        f.DueAfter,
		IssuedFrom:      f.IssuedFrom,
		IssuedTo:        f.IssuedTo,
		OnlyOutstanding: f.OnlyOutstanding,
		Search:          strings.TrimSpace(f.Search),
		OrderBy:         ledger.DocumentOrderField(f.OrderBy),
		OrderDir:        shared.SortDirection(strings.ToLower(f.OrderDir)),
	}
	for _, k := range f.Kinds {
		out.Kinds = append(out.Kinds, ledger.DocumentKind(strings.ToUpper(k)))
	}
	for _, st := range f.Statuses {
		out.Statuses = append(out.Statuses, ledger.DocumentStatus(strings.ToUpper(st)))
	}
	for _, ps := range f.PaymentStatuses {
		out.PaymentStatuses = append(out.PaymentStatuses, ledger.PaymentStatus(strings.ToUpper(ps)))
	}
	if ref := strings.TrimSpace(f.CounterpartyRef); ref != "" {
		out.CounterpartyRef = &ref
	}
	if cur := strings.ToUpper(strings.TrimSpace(f.Currency)); cur != "" {
		out.Currency = &cur
	}
	if err := out.Validate(); err != nil {
		return ledger.DocumentFilter{}, err
	}
	return out, nil
}

// checkCounterparty verifies the reference when a lookup is configured
func (s *DocumentService) checkCounterparty(ctx context.Context, tenantID uuid.UUID, ref string) error {
	return verifyCounterparty(ctx, s.opts.counterparties, tenantID, ref)
}

func verifyCounterparty(ctx context.Context, lookup ledger.CounterpartyLookup, tenantID uuid.UUID, ref string) error {
	if lookup == nil || strings.TrimSpace(ref) == "" {
		return nil
	}
	_, err := lookup.LookupCounterparty(ctx, tenantID, strings.TrimSpace(ref))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewDomainErrorf(ledger.CodeUnknownCounterparty, "counterparty %q does not exist", ref)
	}
	if err != nil {
		return fmt.Errorf("failed to look up counterparty: %w", err)
	}
	return nil
}

// enrichItems stores the catalog snapshot on every line. Without a catalog
// the caller's name and SKU are kept.
func (s *DocumentService) enrichItems(ctx context.Context, tenantID uuid.UUID, items []ledger.LineItemInput) ([]ledger.LineItemInput, error) {
	if s.opts.catalog == nil || len(items) == 0 {
		return items, nil
	}
	refs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		ref := strings.TrimSpace(item.ProductRef)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	products, err := s.opts.catalog.LookupProducts(ctx, tenantID, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up products: %w", err)
	}
	for i := range items {
		ref := strings.TrimSpace(items[i].ProductRef)
		if ref == "" {
			continue
		}
		p, ok := products[ref]
		if !ok {
			return nil, shared.NewDomainErrorf(ledger.CodeUnknownProduct, "product %q does not exist", ref)
		}
		items[i].ProductName = p.Name
		items[i].ProductSKU = p.SKU
		if p.Unit != "" {
			items[i].Unit = p.Unit
		}
	}
	return items, nil
}

// checkExpectedVersion rejects a write made against a stale read. Zero
// means the caller did not send a version.
func checkExpectedVersion(current, expected int) error {
	if expected != 0 && expected != current {
		return shared.NewDomainErrorf(shared.ErrConcurrencyConflict.Code,
			"expected version %d but the document is at version %d", expected, current)
	}
	return nil
}
