package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes raised by the ledger domain
const (
	CodeInconsistentTotals   = "INCONSISTENT_TOTALS"
	CodeIllegalTransition    = "ILLEGAL_TRANSITION"
	CodeDocumentLocked       = "DOCUMENT_LOCKED"
	CodeOverAllocation       = "OVER_ALLOCATION"
	CodeExceedsBalance       = "EXCEEDS_BALANCE"
	CodeReturnNotFound       = "RETURN_NOT_FOUND"
	CodeSequenceGap          = "SEQUENCE_GAP"
	CodeNumberingCollision   = "NUMBERING_COLLISION"
	CodeInvalidLineItem      = "INVALID_LINE_ITEM"
	CodeReturnExceedsQty     = "RETURN_EXCEEDS_QUANTITY"
	CodeLedgerDrift          = "LEDGER_DRIFT"
	CodeAlreadyReversed      = "ALLOCATION_ALREADY_REVERSED"
	CodeCurrencyMismatch     = "CURRENCY_MISMATCH"
	CodeUnknownCounterparty  = "UNKNOWN_COUNTERPARTY"
	CodeUnknownProduct       = "UNKNOWN_PRODUCT"
	CodeInvalidDocumentKind  = "INVALID_DOCUMENT_KIND"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
)

// Sentinels for errors.Is matching. Errors returned by the domain carry the
// same code with a more specific message.
var (
	ErrInconsistentTotals = shared.NewDomainError(CodeInconsistentTotals, "declared totals do not match line items")
	ErrIllegalTransition  = shared.NewDomainError(CodeIllegalTransition, "transition not allowed from current status")
	ErrDocumentLocked     = shared.NewDomainError(CodeDocumentLocked, "document is no longer editable")
	ErrOverAllocation     = shared.NewDomainError(CodeOverAllocation, "allocation exceeds available amount")
	ErrExceedsBalance     = shared.NewDomainError(CodeExceedsBalance, "payment exceeds document balance")
	ErrReturnNotFound     = shared.NewDomainError(CodeReturnNotFound, "return not found for document")
	ErrSequenceGap        = shared.NewDomainError(CodeSequenceGap, "return sequence is not contiguous")
	ErrNumberingCollision = shared.NewDomainError(CodeNumberingCollision, "document number could not be assigned")
	ErrInvalidLineItem    = shared.NewDomainError(CodeInvalidLineItem, "invalid line item")
	ErrReturnExceedsQty   = shared.NewDomainError(CodeReturnExceedsQty, "return exceeds remaining quantity")
	ErrLedgerDrift        = shared.NewDomainError(CodeLedgerDrift, "stored amounts differ from allocation history")
	ErrAlreadyReversed    = shared.NewDomainError(CodeAlreadyReversed, "allocation has already been reversed")
	ErrCurrencyMismatch   = shared.NewDomainError(CodeCurrencyMismatch, "currencies do not match")
)

func inconsistentTotals(field string, declared, computed decimal.Decimal) error {
	return shared.NewDomainErrorf(CodeInconsistentTotals,
		"declared %s %s does not match computed %s", field, declared.StringFixed(2), computed.StringFixed(2))
}

func illegalTransition(kind DocumentKind, from DocumentStatus, event DocumentEvent) error {
	return shared.NewDomainErrorf(CodeIllegalTransition,
		"%s in status %s does not accept %s", kind, from, event)
}

func invalidLineItem(index int, reason string) error {
	return shared.NewDomainErrorf(CodeInvalidLineItem, "line %d: %s", index+1, reason)
}

func validationError(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.ErrValidation.Code, format, args...)
}
