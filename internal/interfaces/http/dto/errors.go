package dto

import "net/http"

// Transport level error codes. Ledger codes from the domain are passed
// through unchanged; see ErrorCodeHTTPStatus.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Caller input -> 400
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeBadRequest:        http.StatusBadRequest,
	"INVALID_INPUT":          http.StatusBadRequest,
	"INVALID_AMOUNT":         http.StatusBadRequest,
	"INVALID_REASON":         http.StatusBadRequest,
	"INVALID_PAYMENT_METHOD": http.StatusBadRequest,
	"INVALID_INVOICE_NUMBER": http.StatusBadRequest,
	"INVALID_STUDENT":        http.StatusBadRequest,
	"INVALID_FEE_STRUCTURE":  http.StatusBadRequest,
	"INVALID_ACADEMIC_YEAR":  http.StatusBadRequest,
	"INVALID_DUE_DATE":       http.StatusBadRequest,
	"INVALID_EXTERNAL_REF":   http.StatusBadRequest,
	"INVALID_APPROVER":       http.StatusBadRequest,
	"INVALID_REQUESTER":      http.StatusBadRequest,
	"INVALID_REVIEWER":       http.StatusBadRequest,
	"INVALID_REFUND_NUMBER":  http.StatusBadRequest,
	"INVALID_TENANT":         http.StatusBadRequest,

	// Auth
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	// Missing records -> 404
	ErrCodeNotFound:     http.StatusNotFound,
	"INVOICE_NOT_FOUND": http.StatusNotFound,
	"PAYMENT_NOT_FOUND": http.StatusNotFound,
	"REFUND_NOT_FOUND":  http.StatusNotFound,

	// Conflicts with another writer -> 409
	"ALREADY_EXISTS":             http.StatusConflict,
	"CONCURRENCY_CONFLICT":       http.StatusConflict,
	"DUPLICATE_REFUND_REQUEST":   http.StatusConflict,
	"INCONSISTENT_PAYMENT_STATE": http.StatusConflict,

	// State preconditions and ledger invariants -> 422
	"INVALID_STATE":          http.StatusUnprocessableEntity,
	"INVALID_REFUND_STATE":   http.StatusUnprocessableEntity,
	"PAYMENT_NOT_REFUNDABLE": http.StatusUnprocessableEntity,
	"INVOICE_CANCELLED":      http.StatusUnprocessableEntity,
	"INVALID_PAYMENT_STATE":  http.StatusUnprocessableEntity,
	"INVALID_INVOICE_STATE":  http.StatusUnprocessableEntity,
	"INVALID_LEDGER_STATE":   http.StatusUnprocessableEntity,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
