package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeTenant       = "ERR_TENANT_REQUIRED"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
	ErrCodeTimeout      = "ERR_TIMEOUT"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Ledger error codes, one per domain failure
const (
	ErrCodeInconsistentTotals   = "ERR_INCONSISTENT_TOTALS"
	ErrCodeIllegalTransition    = "ERR_ILLEGAL_TRANSITION"
	ErrCodeDocumentLocked       = "ERR_DOCUMENT_LOCKED"
	ErrCodeOverAllocation       = "ERR_OVER_ALLOCATION"
	ErrCodeExceedsBalance       = "ERR_EXCEEDS_BALANCE"
	ErrCodeReturnNotFound       = "ERR_RETURN_NOT_FOUND"
	ErrCodeSequenceGap          = "ERR_SEQUENCE_GAP"
	ErrCodeNumberingCollision   = "ERR_NUMBERING_COLLISION"
	ErrCodeInvalidLineItem      = "ERR_INVALID_LINE_ITEM"
	ErrCodeReturnExceedsQty     = "ERR_RETURN_EXCEEDS_QUANTITY"
	ErrCodeLedgerDrift          = "ERR_LEDGER_DRIFT"
	ErrCodeAlreadyReversed      = "ERR_ALLOCATION_ALREADY_REVERSED"
	ErrCodeCurrencyMismatch     = "ERR_CURRENCY_MISMATCH"
	ErrCodeUnknownCounterparty  = "ERR_UNKNOWN_COUNTERPARTY"
	ErrCodeUnknownProduct       = "ERR_UNKNOWN_PRODUCT"
	ErrCodeInvalidDocumentKind  = "ERR_INVALID_DOCUMENT_KIND"
	ErrCodeInvalidPaymentMethod = "ERR_INVALID_PAYMENT_METHOD"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Malformed or invalid input -> 400
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeInvalidInput:         http.StatusBadRequest,
	ErrCodeInvalidJSON:          http.StatusBadRequest,
	ErrCodeTenant:               http.StatusBadRequest,
	ErrCodeInconsistentTotals:   http.StatusBadRequest,
	ErrCodeInvalidLineItem:      http.StatusBadRequest,
	ErrCodeInvalidDocumentKind:  http.StatusBadRequest,
	ErrCodeInvalidPaymentMethod: http.StatusBadRequest,
	ErrCodeTooLarge:             http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeReturnNotFound: http.StatusNotFound,

	// References to things the ledger does not own
	ErrCodeUnknownCounterparty: http.StatusUnprocessableEntity,
	ErrCodeUnknownProduct:      http.StatusUnprocessableEntity,

	// Lost races -> 409, the client may retry
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeNumberingCollision:  http.StatusConflict,
	ErrCodeAlreadyReversed:     http.StatusConflict,

	// Business rule violations -> 422
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeIllegalTransition:  http.StatusUnprocessableEntity,
	ErrCodeDocumentLocked:     http.StatusUnprocessableEntity,
	ErrCodeOverAllocation:     http.StatusUnprocessableEntity,
	ErrCodeExceedsBalance:     http.StatusUnprocessableEntity,
	ErrCodeReturnExceedsQty:   http.StatusUnprocessableEntity,
	ErrCodeCurrencyMismatch:   http.StatusUnprocessableEntity,

	// Corrupt stored state
	ErrCodeSequenceGap: http.StatusInternalServerError,
	ErrCodeLedgerDrift: http.StatusInternalServerError,

	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeTimeout:     http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                   ErrCodeNotFound,
	"ALREADY_EXISTS":              ErrCodeAlreadyExists,
	"INVALID_INPUT":               ErrCodeInvalidInput,
	"VALIDATION_ERROR":            ErrCodeValidation,
	"CONCURRENT_MODIFICATION":     ErrCodeConcurrencyConflict,
	"INVALID_STATE":               ErrCodeInvalidState,
	"INCONSISTENT_TOTALS":         ErrCodeInconsistentTotals,
	"ILLEGAL_TRANSITION":          ErrCodeIllegalTransition,
	"DOCUMENT_LOCKED":             ErrCodeDocumentLocked,
	"OVER_ALLOCATION":             ErrCodeOverAllocation,
	"EXCEEDS_BALANCE":             ErrCodeExceedsBalance,
	"RETURN_NOT_FOUND":            ErrCodeReturnNotFound,
	"SEQUENCE_GAP":                ErrCodeSequenceGap,
	"NUMBERING_COLLISION":         ErrCodeNumberingCollision,
	"INVALID_LINE_ITEM":           ErrCodeInvalidLineItem,
	"RETURN_EXCEEDS_QUANTITY":     ErrCodeReturnExceedsQty,
	"LEDGER_DRIFT":                ErrCodeLedgerDrift,
	"ALLOCATION_ALREADY_REVERSED": ErrCodeAlreadyReversed,
	"CURRENCY_MISMATCH":           ErrCodeCurrencyMismatch,
	"UNKNOWN_COUNTERPARTY":        ErrCodeUnknownCounterparty,
	"UNKNOWN_PRODUCT":             ErrCodeUnknownProduct,
	"INVALID_DOCUMENT_KIND":       ErrCodeInvalidDocumentKind,
	"INVALID_PAYMENT_METHOD":      ErrCodeInvalidPaymentMethod,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
