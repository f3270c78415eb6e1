package ledger

// DocumentKind distinguishes the three document families sharing one
// monetary core
type DocumentKind string

const (
	KindSale    DocumentKind = "SALE"
	KindInvoice DocumentKind = "INVOICE"
	KindOrder   DocumentKind = "ORDER"
)

// IsValid checks if the kind is known
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindSale, KindInvoice, KindOrder:
		return true
	}
	return false
}

// String returns the string representation
func (k DocumentKind) String() string {
	return string(k)
}

// NumberPrefix returns the prefix used when numbering documents of this kind
func (k DocumentKind) NumberPrefix() string {
	switch k {
	case KindSale:
		return "SAL"
	case KindInvoice:
		return "INV"
	case KindOrder:
		return "ORD"
	}
	return ""
}

// AllDocumentKinds returns every supported kind
func AllDocumentKinds() []DocumentKind {
	return []DocumentKind{KindSale, KindInvoice, KindOrder}
}

// DocumentStatus is a workflow state. Which statuses are reachable depends on
// the kind's transition table.
type DocumentStatus string

const (
	StatusDraft         DocumentStatus = "DRAFT"
	StatusPending       DocumentStatus = "PENDING"
	StatusSent          DocumentStatus = "SENT"
	StatusAccepted      DocumentStatus = "ACCEPTED"
	StatusDeclined      DocumentStatus = "DECLINED"
	StatusExpired       DocumentStatus = "EXPIRED"
	StatusConverted     DocumentStatus = "CONVERTED"
	StatusPartiallyPaid DocumentStatus = "PARTIALLY_PAID"
	StatusPaid          DocumentStatus = "PAID"
	StatusOverdue       DocumentStatus = "OVERDUE"
	StatusCancelled     DocumentStatus = "CANCELLED"
)

// String returns the string representation
func (s DocumentStatus) String() string {
	return string(s)
}

// PaymentStatus is derived from paid and total amounts
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentOverpaid      PaymentStatus = "OVERPAID"
)

// String returns the string representation
func (s PaymentStatus) String() string {
	return string(s)
}

// IsSettled is true for PAID and OVERPAID
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentPaid || s == PaymentOverpaid
}

// DocumentEvent is a workflow input
type DocumentEvent string

const (
	EventSubmit         DocumentEvent = "SUBMIT"
	EventSend           DocumentEvent = "SEND"
	EventAccept         DocumentEvent = "ACCEPT"
	EventDecline        DocumentEvent = "DECLINE"
	EventExpire         DocumentEvent = "EXPIRE"
	EventConvert        DocumentEvent = "CONVERT"
	EventRecordPayment  DocumentEvent = "RECORD_PAYMENT"
	EventSettle         DocumentEvent = "SETTLE"
	EventReversePayment DocumentEvent = "REVERSE_PAYMENT"
	EventMarkOverdue    DocumentEvent = "MARK_OVERDUE"
	EventCancel         DocumentEvent = "CANCEL"
)

// String returns the string representation
func (e DocumentEvent) String() string {
	return string(e)
}

// IsSystemDriven reports whether the event is only raised by the ledger
// itself (allocations, reversals, the overdue scan, cancellation with a
// reason) and never accepted from a caller as a bare workflow event.
func (e DocumentEvent) IsSystemDriven() bool {
	switch e {
	case EventRecordPayment, EventSettle, EventReversePayment, EventMarkOverdue, EventCancel:
		return true
	}
	return false
}

// ParseDocumentEvent validates a caller-supplied event name
func ParseDocumentEvent(s string) (DocumentEvent, error) {
	e := DocumentEvent(s)
	switch e {
	case EventSubmit, EventSend, EventAccept, EventDecline, EventExpire, EventConvert,
		EventRecordPayment, EventSettle, EventReversePayment, EventMarkOverdue, EventCancel:
		return e, nil
	}
	return "", validationError("unknown workflow event %q", s)
}
