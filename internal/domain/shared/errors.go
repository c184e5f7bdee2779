// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors - always recoverable, surfaced to the caller,
	// never retried automatically.
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrPeriodNotActive = errors.New("period is not active")

	// State errors
	ErrImmutable = errors.New("entity is immutable once referenced")

	// Concurrency errors - the caller should retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrLockNotAcquired     = errors.New("row lock not acquired")

	// Integrity errors - deletion refused by policy; the caller may offer
	// soft delete instead.
	ErrIntegrityBlocked = errors.New("deletion blocked by referential integrity")

	// Storage errors - fatal for the current operation, propagated up,
	// never retried by the core itself.
	ErrStorage     = errors.New("storage failure")
	ErrTxFailed    = errors.New("transaction failed")
	ErrUnavailable = errors.New("storage unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "evaluation", "identity", "integrity"
	Op      string // Operation that failed, e.g., "UpsertItem", "Delete"
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

// Identity domain errors. Lookup misses are the identity package's own
// sentinels; only cross-domain error values live here.
var (
	ErrOrgNotFound = NewDomainError("identity", "FindOrganization", ErrNotFound, "organization not found")
	ErrLastAdmin   = NewDomainError("identity", "Delete", ErrIntegrityBlocked, "cannot delete the last admin user")
)

// Evaluation domain errors
var (
	ErrEvaluationNotFound = NewDomainError("evaluation", "Find", ErrNotFound, "teacher evaluation not found")
	ErrDuplicateItem      = NewDomainError("evaluation", "UpsertItem", ErrAlreadyExists, "aspect already scored for this evaluation")
	ErrDuplicateParent    = NewDomainError("evaluation", "Create", ErrAlreadyExists, "evaluation already exists for teacher, period and evaluator")
	ErrAspectInUse        = NewDomainError("evaluation", "UpdateAspect", ErrImmutable, "aspect weight and range are frozen once referenced by items")
	ErrPeriodNotFound     = NewDomainError("evaluation", "FindPeriod", ErrNotFound, "period not found")
)

// Integrity domain errors
var (
	ErrDeleteBlocked = NewDomainError("integrity", "Delete", ErrIntegrityBlocked, "entity is referenced by protected records")
	ErrUnknownEntity = NewDomainError("integrity", "Resolve", ErrInvalidInput, "unknown entity kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a recoverable validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrPeriodNotActive) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is a concurrency conflict the caller
// should retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrLockNotAcquired)
}

// IsBlocked checks if the error is a deletion refused by policy.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrIntegrityBlocked)
}

// IsStorage checks if the error is a fatal storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrTxFailed) ||
		errors.Is(err, ErrUnavailable)
}

// IsRetryable checks if the whole operation can be retried.
func IsRetryable(err error) bool {
	return IsConflict(err)
}
