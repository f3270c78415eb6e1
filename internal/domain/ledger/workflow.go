package ledger

import (
	"slices"
)

// TransitionTable is the declarative workflow for one document kind.
// A status with no outgoing transitions is terminal.
type TransitionTable struct {
	kind    DocumentKind
	version int
	initial DocumentStatus
	rows    map[DocumentStatus]map[DocumentEvent]DocumentStatus
}

type transition struct {
	from  DocumentStatus
	event DocumentEvent
	to    DocumentStatus
}

func newTransitionTable(kind DocumentKind, version int, initial DocumentStatus, ts []transition) *TransitionTable {
	t := &TransitionTable{
		kind:    kind,
		version: version,
		initial: initial,
		rows:    make(map[DocumentStatus]map[DocumentEvent]DocumentStatus),
	}
	for _, tr := range ts {
		if _, ok := t.rows[tr.from]; !ok {
			t.rows[tr.from] = make(map[DocumentEvent]DocumentStatus)
		}
		t.rows[tr.from][tr.event] = tr.to
		if _, ok := t.rows[tr.to]; !ok {
			t.rows[tr.to] = make(map[DocumentEvent]DocumentStatus)
		}
	}
	return t
}

// paymentRows is the payment-driven part shared by every kind. open is the
// status a document returns to when all payments are reversed.
func paymentRows(open DocumentStatus, payable ...DocumentStatus) []transition {
	var ts []transition
	for _, from := range payable {
		ts = append(ts,
			transition{from, EventRecordPayment, StatusPartiallyPaid},
			transition{from, EventSettle, StatusPaid},
			transition{from, EventMarkOverdue, StatusOverdue},
			transition{from, EventCancel, StatusCancelled},
		)
	}
	return append(ts,
		transition{StatusPartiallyPaid, EventRecordPayment, StatusPartiallyPaid},
		transition{StatusPartiallyPaid, EventSettle, StatusPaid},
		transition{StatusPartiallyPaid, EventMarkOverdue, StatusOverdue},
		transition{StatusPartiallyPaid, EventReversePayment, open},
		transition{StatusPartiallyPaid, EventCancel, StatusCancelled},
		transition{StatusOverdue, EventRecordPayment, StatusOverdue},
		transition{StatusOverdue, EventSettle, StatusPaid},
		transition{StatusOverdue, EventReversePayment, StatusOverdue},
		transition{StatusOverdue, EventCancel, StatusCancelled},
	)
}

const workflowVersion = 1

var transitionTables = map[DocumentKind]*TransitionTable{
	KindInvoice: newTransitionTable(KindInvoice, workflowVersion, StatusDraft, append([]transition{
		{StatusDraft, EventSend, StatusSent},
		{StatusDraft, EventCancel, StatusCancelled},
	}, paymentRows(StatusSent, StatusSent)...)),

	KindSale: newTransitionTable(KindSale, workflowVersion, StatusDraft, append([]transition{
		{StatusDraft, EventSubmit, StatusPending},
		{StatusDraft, EventCancel, StatusCancelled},
	}, paymentRows(StatusPending, StatusPending)...)),

	KindOrder: newTransitionTable(KindOrder, workflowVersion, StatusDraft, append([]transition{
		{StatusDraft, EventSubmit, StatusPending},
		{StatusDraft, EventCancel, StatusCancelled},
		{StatusPending, EventAccept, StatusAccepted},
		{StatusPending, EventDecline, StatusDeclined},
		{StatusPending, EventExpire, StatusExpired},
		{StatusAccepted, EventConvert, StatusConverted},
	}, paymentRows(StatusAccepted, StatusPending, StatusAccepted)...)),
}

// TransitionTableFor returns the current table for a kind
func TransitionTableFor(kind DocumentKind) (*TransitionTable, error) {
	t, ok := transitionTables[kind]
	if !ok {
		return nil, validationError("unknown document kind %q", kind)
	}
	return t, nil
}

// Kind returns the document kind the table governs
func (t *TransitionTable) Kind() DocumentKind { return t.kind }

// Version returns the table version recorded on documents
func (t *TransitionTable) Version() int { return t.version }

// Initial returns the status new documents start in
func (t *TransitionTable) Initial() DocumentStatus { return t.initial }

// Next returns the status reached by applying event in from, or
// ILLEGAL_TRANSITION when the table has no such row.
func (t *TransitionTable) Next(from DocumentStatus, event DocumentEvent) (DocumentStatus, error) {
	to, ok := t.rows[from][event]
	if !ok {
		return "", illegalTransition(t.kind, from, event)
	}
	return to, nil
}

// Allows reports whether event is legal in from
func (t *TransitionTable) Allows(from DocumentStatus, event DocumentEvent) bool {
	_, ok := t.rows[from][event]
	return ok
}

// IsTerminal reports whether from has no outgoing transitions
func (t *TransitionTable) IsTerminal(from DocumentStatus) bool {
	return len(t.rows[from]) == 0
}

// Events lists the events accepted in from, sorted
func (t *TransitionTable) Events(from DocumentStatus) []DocumentEvent {
	out := make([]DocumentEvent, 0, len(t.rows[from]))
	for ev := range t.rows[from] {
		out = append(out, ev)
	}
	slices.Sort(out)
	return out
}

// StatusesAllowing lists the statuses in which event is legal, sorted.
// The overdue scanner uses it to build its candidate query.
func (t *TransitionTable) StatusesAllowing(event DocumentEvent) []DocumentStatus {
	var out []DocumentStatus
	for from, evs := range t.rows {
		if _, ok := evs[event]; ok {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// Statuses lists every status the table knows, sorted
func (t *TransitionTable) Statuses() []DocumentStatus {
	out := make([]DocumentStatus, 0, len(t.rows))
	for s := range t.rows {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// OverdueCandidateStatuses is the union over all kinds of statuses that
// accept MARK_OVERDUE
func OverdueCandidateStatuses() []DocumentStatus {
	seen := make(map[DocumentStatus]struct{})
	var out []DocumentStatus
	for _, kind := range AllDocumentKinds() {
		for _, s := range transitionTables[kind].StatusesAllowing(EventMarkOverdue) {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	slices.Sort(out)
	return out
}
