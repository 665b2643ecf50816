package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for the
	// current lifecycle state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeInsufficientInventory is used when available stock cannot
	// cover a requested hold
	ErrCodeInsufficientInventory = "ERR_INSUFFICIENT_INVENTORY"
	// ErrCodeReservationExpired is used when a hold lapsed before it was
	// consumed
	ErrCodeReservationExpired = "ERR_RESERVATION_EXPIRED"
	// ErrCodeGatewayUnavailable is used when the payment gateway could not
	// be reached after retries
	ErrCodeGatewayUnavailable = "ERR_GATEWAY_UNAVAILABLE"
	// ErrCodeGatewayRejected is used when the payment gateway refused the
	// request outright
	ErrCodeGatewayRejected = "ERR_GATEWAY_REJECTED"
	// ErrCodeCompensationIncomplete is used when a cancellation is recorded
	// but one of its compensating steps failed; the client retries by
	// cancelling again
	ErrCodeCompensationIncomplete = "ERR_COMPENSATION_INCOMPLETE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Payload error codes
const (
	// ErrCodePayloadTooLarge is used when a request body exceeds the limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Insufficient inventory is a race against other buyers, reported as a
	// conflict rather than a validation problem.
	ErrCodeInsufficientInventory: http.StatusConflict,

	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:       http.StatusUnprocessableEntity,
	ErrCodeReservationExpired: http.StatusUnprocessableEntity,

	ErrCodeGatewayUnavailable:     http.StatusBadGateway,
	ErrCodeGatewayRejected:        http.StatusUnprocessableEntity,
	ErrCodeCompensationIncomplete: http.StatusBadGateway,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"INSUFFICIENT_INVENTORY":  ErrCodeInsufficientInventory,
	"RESERVATION_EXPIRED":     ErrCodeReservationExpired,
	"INVALID_STATE":           ErrCodeInvalidState,
	"COMPENSATION_INCOMPLETE": ErrCodeCompensationIncomplete,
	"VALIDATION_FAILED":       ErrCodeValidation,
}

// NormalizeErrorCode converts a domain error code to the API format. Domain
// codes without an explicit mapping are treated as input problems; the
// message carries the specifics.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return ErrCodeInvalidInput
}
