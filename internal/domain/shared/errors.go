// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
//
// "No data" is deliberately not in this list: a valid request with an empty
// result (no paired students, fewer than two terms) is a normal outcome and
// is represented by empty slices or (value, bool) returns, never by an
// error. Only hard failures travel as errors.
var (
	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Storage errors - distinct from "no data" so clients can show an
	// error state and retry instead of rendering an empty chart.
	ErrStorageFault = errors.New("storage fault")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "assessment", "norms", "query"
	Op      string // Operation that failed, e.g., "FetchRecords"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Assessment domain errors
var (
	ErrInvalidGrade     = NewDomainError("assessment", "Validate", ErrValueOutOfRange, "grade must be between 3 and 6")
	ErrInvalidCourse    = NewDomainError("assessment", "Validate", ErrInvalidInput, "unknown course")
	ErrInvalidTermLabel = NewDomainError("assessment", "ParseTerm", ErrInvalidFormat, "term label does not match '<Season> <YYYY-YYYY>'")
)

// Storage errors
var (
	ErrRecordFetchFailed = NewDomainError("assessment", "FetchRecords", ErrStorageFault, "failed to fetch assessment records")
	ErrTermFetchFailed   = NewDomainError("assessment", "FetchTerms", ErrStorageFault, "failed to fetch term labels")
	ErrNormFetchFailed   = NewDomainError("norms", "GetNorm", ErrStorageFault, "failed to fetch norm entry")
)

// Authorization errors
var (
	ErrMissingCredential = NewDomainError("auth", "RequireAuthenticated", ErrUnauthorized, "missing credential")
	ErrInvalidCredential = NewDomainError("auth", "RequireAuthenticated", ErrUnauthorized, "invalid credential")
)

// IsUnauthorized checks if the error is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsStorageFault checks if the error came from the datastore collaborator.
func IsStorageFault(err error) bool {
	return errors.Is(err, ErrStorageFault)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
