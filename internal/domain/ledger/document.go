package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document is a sale, invoice or order. It is the aggregate root for the
// monetary state of one payable record: its line items, reconciled totals,
// the paid amount derived from allocations and the workflow status.
type Document struct {
	shared.TenantAggregateRoot
	Kind            DocumentKind
	DocumentNumber  string
	CounterpartyRef string
	IssueDate       time.Time
	DueDate         time.Time
	Currency        valueobject.Currency
	Items           []LineItem
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	TaxOverride     *decimal.Decimal // Replaces the per-line tax sum when set
	PaidAmount      decimal.Decimal  // Derived from allocations, never set by callers
	BalanceAmount   decimal.Decimal  // max(0, TotalAmount - PaidAmount)
	Status          DocumentStatus
	PaymentStatus   PaymentStatus
	WorkflowVersion int
	Notes           string
	CancelReason    string
	CancelledAt     *time.Time
	OverdueAt       *time.Time
	PaidAt          *time.Time
}

// NewDocumentParams holds the inputs for NewDocument
type NewDocumentParams struct {
	Kind            DocumentKind
	CounterpartyRef string
	IssueDate       time.Time
	DueDate         time.Time
	Currency        valueobject.Currency
	Items           []LineItemInput
	Declared        Totals
	TaxOverride     *decimal.Decimal
	Notes           string
}

// NewDocument validates and reconciles a document in DRAFT. The number is
// assigned later by the numbering authority inside the creation transaction.
func NewDocument(tenantID uuid.UUID, p NewDocumentParams) (*Document, error) {
	if tenantID == uuid.Nil {
		return nil, validationError("tenant is required")
	}
	if !p.Kind.IsValid() {
		return nil, shared.NewDomainErrorf(CodeInvalidDocumentKind, "unknown document kind %q", p.Kind)
	}
	table, err := TransitionTableFor(p.Kind)
	if err != nil {
		return nil, err
	}
	counterparty := strings.TrimSpace(p.CounterpartyRef)
	if counterparty == "" {
		return nil, validationError("counterparty reference is required")
	}
	if p.Currency == "" {
		return nil, validationError("currency is required")
	}
	issue := p.IssueDate
	if issue.IsZero() {
		issue = time.Now()
	}
	due := p.DueDate
	if due.IsZero() {
		due = issue
	}
	if due.Before(issue) {
		return nil, validationError("due date %s is before issue date %s",
			due.Format(time.DateOnly), issue.Format(time.DateOnly))
	}

	rec, err := Reconcile(ReconcileInput{Items: p.Items, Declared: p.Declared, TaxOverride: p.TaxOverride})
	if err != nil {
		return nil, err
	}

	d := &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Kind:                p.Kind,
		CounterpartyRef:     counterparty,
		IssueDate:           issue,
		DueDate:             due,
		Currency:            p.Currency,
		TaxOverride:         p.TaxOverride,
		PaidAmount:          decimal.Zero,
		Status:              table.Initial(),
		WorkflowVersion:     table.Version(),
		Notes:               p.Notes,
	}
	d.applyReconciliation(rec)
	return d, nil
}

// AssignNumber sets the document number. Only a draft can be numbered.
func (d *Document) AssignNumber(number string) error {
	if err := d.EnsureMutable(); err != nil {
		return err
	}
	if strings.TrimSpace(number) == "" {
		return validationError("document number cannot be empty")
	}
	d.DocumentNumber = number
	return nil
}

// EnsureMutable returns DOCUMENT_LOCKED unless the document is a draft
func (d *Document) EnsureMutable() error {
	if d.Status != StatusDraft {
		return shared.NewDomainErrorf(CodeDocumentLocked,
			"document %s is %s and can no longer be edited", d.DocumentNumber, d.Status)
	}
	return nil
}

// AmendParams holds the replacement values for Amend. Nil pointers keep the
// current value.
type AmendParams struct {
	Items       []LineItemInput
	Declared    Totals
	TaxOverride *decimal.Decimal
	IssueDate   *time.Time
	DueDate     *time.Time
	Notes       *string
}

// Amend replaces the line items of a draft and re-runs reconciliation
func (d *Document) Amend(p AmendParams) error {
	if err := d.EnsureMutable(); err != nil {
		return err
	}
	issue, due := d.IssueDate, d.DueDate
	if p.IssueDate != nil {
		issue = *p.IssueDate
	}
	if p.DueDate != nil {
		due = *p.DueDate
	}
	if due.Before(issue) {
		return validationError("due date %s is before issue date %s",
			due.Format(time.DateOnly), issue.Format(time.DateOnly))
	}
	rec, err := Reconcile(ReconcileInput{Items: p.Items, Declared: p.Declared, TaxOverride: p.TaxOverride})
	if err != nil {
		return err
	}

	d.IssueDate = issue
	d.DueDate = due
	d.TaxOverride = p.TaxOverride
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	d.applyReconciliation(rec)
	d.IncrementVersion()
	return nil
}

func (d *Document) applyReconciliation(rec *Reconciliation) {
	d.Items = rec.Items
	d.Subtotal = rec.Totals.Subtotal
	d.TaxAmount = rec.Totals.TaxAmount
	d.DiscountAmount = rec.Totals.DiscountAmount
	d.TotalAmount = rec.Totals.TotalAmount
	d.recalculateBalance()
}

// Table returns the transition table governing this document
func (d *Document) Table() *TransitionTable {
	t, err := TransitionTableFor(d.Kind)
	if err != nil {
		// Kind is validated at construction and on load
		panic(err)
	}
	return t
}

// ApplyEvent applies a caller-driven workflow event such as SEND or ACCEPT.
// Events owned by the ledger (payments, overdue, cancellation) are refused.
func (d *Document) ApplyEvent(event DocumentEvent) error {
	if event.IsSystemDriven() {
		return shared.NewDomainErrorf(CodeIllegalTransition,
			"%s is raised by the ledger and cannot be applied directly", event)
	}
	next, err := d.Table().Next(d.Status, event)
	if err != nil {
		return err
	}
	// A zero-total document owes nothing once it leaves draft
	if d.Status == StatusDraft && d.TotalAmount.IsZero() {
		if settled, err := d.Table().Next(next, EventSettle); err == nil {
			event, next = EventSettle, settled
		}
	}
	d.moveTo(event, next, time.Now())
	return nil
}

// Cancel moves the document to CANCELLED. Existing allocations are kept;
// the document only stops accepting new ones.
func (d *Document) Cancel(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError("cancel reason is required")
	}
	next, err := d.Table().Next(d.Status, EventCancel)
	if err != nil {
		return err
	}
	d.CancelReason = reason
	d.moveTo(EventCancel, next, time.Now())
	d.AddDomainEvent(NewDocumentCancelledEvent(d))
	return nil
}

// moveTo sets the new status, bumps the version once and records a status
// change event when the status actually changed.
func (d *Document) moveTo(event DocumentEvent, next DocumentStatus, now time.Time) {
	from := d.Status
	d.Status = next
	switch next {
	case StatusPaid:
		d.PaidAt = &now
	case StatusCancelled:
		d.CancelledAt = &now
	case StatusOverdue:
		if from != StatusOverdue {
			d.OverdueAt = &now
		}
	}
	d.IncrementVersion()
	if from != next {
		d.AddDomainEvent(NewDocumentStatusChangedEvent(d, event, from))
	}
}

// CanAcceptPayment reports whether allocations may be applied in the
// current status
func (d *Document) CanAcceptPayment() bool {
	t := d.Table()
	return t.Allows(d.Status, EventRecordPayment) || t.Allows(d.Status, EventSettle)
}

// paymentEventFor returns the workflow event an allocation raising the paid
// amount to paid fires
func paymentEventFor(paid, total decimal.Decimal) DocumentEvent {
	if DerivePaymentStatus(paid, total).IsSettled() {
		return EventSettle
	}
	return EventRecordPayment
}

// CheckAllocation validates an incoming allocation without mutating anything
func (d *Document) CheckAllocation(amount decimal.Decimal, allowOverpay bool) error {
	if !amount.IsPositive() {
		return validationError("allocation amount must be positive")
	}
	if !d.CanAcceptPayment() {
		return shared.NewDomainErrorf(CodeIllegalTransition,
			"document %s in status %s cannot accept allocations", d.DocumentNumber, d.Status)
	}
	if !allowOverpay && amount.GreaterThan(d.BalanceAmount) {
		return shared.NewDomainErrorf(CodeOverAllocation,
			"allocation %s exceeds document %s balance %s",
			amount.StringFixed(2), d.DocumentNumber, d.BalanceAmount.StringFixed(2))
	}
	paid := d.PaidAmount.Add(amount)
	if _, err := d.Table().Next(d.Status, paymentEventFor(paid, d.TotalAmount)); err != nil {
		return err
	}
	return nil
}

// ApplyAllocation adds amount to the paid amount, re-derives balance and
// payment status, and fires SETTLE when the document becomes PAID or
// OVERPAID and RECORD_PAYMENT otherwise.
func (d *Document) ApplyAllocation(amount decimal.Decimal, allowOverpay bool) error {
	if err := d.CheckAllocation(amount, allowOverpay); err != nil {
		return err
	}
	d.PaidAmount = d.PaidAmount.Add(amount)
	d.recalculateBalance()
	event := paymentEventFor(d.PaidAmount, d.TotalAmount)
	next, err := d.Table().Next(d.Status, event)
	if err != nil {
		return err
	}
	d.moveTo(event, next, time.Now())
	return nil
}

// CheckReversal validates a reversal of amount without mutating anything
func (d *Document) CheckReversal(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("reversal amount must be positive")
	}
	if d.Table().IsTerminal(d.Status) {
		return shared.NewDomainErrorf(CodeIllegalTransition,
			"document %s in terminal status %s cannot have allocations reversed", d.DocumentNumber, d.Status)
	}
	if amount.GreaterThan(d.PaidAmount) {
		return shared.NewDomainErrorf(CodeOverAllocation,
			"reversal %s exceeds paid amount %s on document %s",
			amount.StringFixed(2), d.PaidAmount.StringFixed(2), d.DocumentNumber)
	}
	if d.PaidAmount.Sub(amount).IsZero() {
		if _, err := d.Table().Next(d.Status, EventReversePayment); err != nil {
			return err
		}
	}
	return nil
}

// ReverseAllocation subtracts amount from the paid amount. REVERSE_PAYMENT
// is fired when nothing remains paid.
func (d *Document) ReverseAllocation(amount decimal.Decimal) error {
	if err := d.CheckReversal(amount); err != nil {
		return err
	}
	d.PaidAmount = d.PaidAmount.Sub(amount)
	d.recalculateBalance()
	if !d.PaidAmount.IsZero() {
		d.IncrementVersion()
		return nil
	}
	next, err := d.Table().Next(d.Status, EventReversePayment)
	if err != nil {
		return err
	}
	d.moveTo(EventReversePayment, next, time.Now())
	return nil
}

// IsOverdueAt reports whether the document qualifies for MARK_OVERDUE at now
func (d *Document) IsOverdueAt(now time.Time) bool {
	return d.DueDate.Before(now) &&
		d.BalanceAmount.IsPositive() &&
		d.Table().Allows(d.Status, EventMarkOverdue)
}

// MarkOverdue transitions the document to OVERDUE. The caller must have
// re-read the document under lock; the conditions are checked again here.
func (d *Document) MarkOverdue(now time.Time) error {
	if !d.DueDate.Before(now) {
		return validationError("document %s is not past due", d.DocumentNumber)
	}
	if !d.BalanceAmount.IsPositive() {
		return validationError("document %s has no outstanding balance", d.DocumentNumber)
	}
	next, err := d.Table().Next(d.Status, EventMarkOverdue)
	if err != nil {
		return err
	}
	d.moveTo(EventMarkOverdue, next, now)
	d.AddDomainEvent(NewDocumentOverdueEvent(d, now))
	return nil
}

// DaysOverdue returns whole days past the due date, or 0
func (d *Document) DaysOverdue(now time.Time) int {
	if !d.DueDate.Before(now) {
		return 0
	}
	return int(now.Sub(d.DueDate).Hours() / 24)
}

// ApplyRecomputedPaid overwrites the paid amount with the sum derived from
// allocation rows. Used to repair drift; no workflow event is fired.
func (d *Document) ApplyRecomputedPaid(paid decimal.Decimal) error {
	if paid.IsNegative() {
		return shared.NewDomainErrorf(CodeLedgerDrift,
			"allocations on document %s sum to negative %s", d.DocumentNumber, paid.StringFixed(2))
	}
	d.PaidAmount = paid
	d.recalculateBalance()
	d.IncrementVersion()
	return nil
}

func (d *Document) recalculateBalance() {
	d.BalanceAmount = valueobject.MaxZero(d.TotalAmount.Sub(d.PaidAmount))
	d.PaymentStatus = DerivePaymentStatus(d.PaidAmount, d.TotalAmount)
}

// DerivePaymentStatus classifies paid against total
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	if paid.Sign() <= 0 {
		if total.IsZero() {
			return PaymentPaid
		}
		return PaymentUnpaid
	}
	switch valueobject.CompareWithTolerance(paid, total) {
	case 0:
		return PaymentPaid
	case -1:
		return PaymentPartiallyPaid
	}
	return PaymentOverpaid
}

// GetItem returns the line item with the given ID
func (d *Document) GetItem(id uuid.UUID) *LineItem {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i]
		}
	}
	return nil
}

// BalanceMoney returns the balance as Money
func (d *Document) BalanceMoney() valueobject.Money {
	return valueobject.MustMoney(d.BalanceAmount, d.Currency)
}

// IsDraft returns true if the document is still editable
func (d *Document) IsDraft() bool {
	return d.Status == StatusDraft
}

// IsCancelled returns true if the document is cancelled
func (d *Document) IsCancelled() bool {
	return d.Status == StatusCancelled
}

// IsTerminal returns true if no further transitions are possible
func (d *Document) IsTerminal() bool {
	return d.Table().IsTerminal(d.Status)
}
