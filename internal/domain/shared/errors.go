package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error with a stable machine code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is allows errors.Is matching on the code, so wrapped and freshly
// constructed errors with the same code compare equal to the sentinels below.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation            = NewDomainError("VALIDATION_FAILED", "Invalid input provided")
	ErrInsufficientInventory = NewDomainError("INSUFFICIENT_INVENTORY", "Insufficient inventory available")
	ErrConcurrencyConflict   = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrAlreadyExists         = NewDomainError("ALREADY_EXISTS", "Resource already exists")
)

// InvalidTransitionError is returned when a status change is not in the
// transition table for the current status.
type InvalidTransitionError struct {
	Current string
	Target  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.Current, e.Target)
}

// NewInvalidTransitionError creates an InvalidTransitionError
func NewInvalidTransitionError(current, target string) *InvalidTransitionError {
	return &InvalidTransitionError{Current: current, Target: target}
}

// TerminalStateError is returned when mutating an entity that has already
// reached a state with no outgoing transitions.
type TerminalStateError struct {
	Status string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("%s is a terminal state and cannot be changed", e.Status)
}

// NewTerminalStateError creates a TerminalStateError
func NewTerminalStateError(status string) *TerminalStateError {
	return &TerminalStateError{Status: status}
}

// GatewayError represents a failure reported by the external payment gateway.
// Transient errors (timeouts, rate limits) may be retried; permanent errors
// (declines, validation failures) must not be.
type GatewayError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *GatewayError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway %s error %s: %s", kind, e.Code, e.Message)
}

// NewTransientGatewayError creates a retryable gateway error
func NewTransientGatewayError(code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, Transient: true}
}

// NewPermanentGatewayError creates a non-retryable gateway error
func NewPermanentGatewayError(code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, Transient: false}
}

// IsTransientGatewayError reports whether err is a retryable gateway error
func IsTransientGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Transient
}

// ProcessingError wraps the last cause after internal retries are exhausted.
type ProcessingError struct {
	Operation string
	Cause     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed for %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the wrapped cause
func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// NewProcessingError creates a ProcessingError
func NewProcessingError(operation string, cause error) *ProcessingError {
	return &ProcessingError{Operation: operation, Cause: cause}
}
