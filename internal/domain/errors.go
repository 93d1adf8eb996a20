package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeQuotaExceeded = "QUOTA_EXCEEDED"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidChunkSource   = NewDomainError(ErrCodeValidation, "invalid knowledge chunk source")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrWrongDimensions      = NewDomainError(ErrCodeValidation, "embedding has wrong dimensions")
)

// Not found errors
var (
	ErrAgentNotFound        = NewDomainError(ErrCodeNotFound, "agent not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
	ErrUsageNotFound        = NewDomainError(ErrCodeNotFound, "usage record not found")
)

// Upstream errors
var (
	// ErrMalformedCompletion is returned when the completion service produces
	// a response without a usable non-streaming choice.
	ErrMalformedCompletion = NewDomainError(ErrCodeUpstream, "completion service returned a malformed response")
)

// QuotaExceededError is returned when an organization has exhausted its AI
// credit allowance. It carries the counters so callers can show used/limit.
type QuotaExceededError struct {
	Used  int64
	Limit int64
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("[%s] AI credit limit reached: %d/%d credits used", ErrCodeQuotaExceeded, e.Used, e.Limit)
}
