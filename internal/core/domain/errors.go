package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Member errors
var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrMemberNotApproved = errors.New("member not approved")
	ErrMemberNotPending  = errors.New("member is not pending approval")
)

// Loan errors
var (
	ErrLoanNotFound      = errors.New("loan not found")
	ErrInvalidLoanStatus = errors.New("invalid loan status transition")
	ErrLoanNotApproved   = errors.New("loan is not approved")
)

// Fine errors
var (
	ErrFineNotFound    = errors.New("fine not found")
	ErrFineAlreadyPaid = errors.New("fine already paid")
)

// Automation errors
var (
	ErrRunInProgress    = errors.New("rule group run already in progress")
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

// TransientStoreError marks a store failure worth retrying a bounded
// number of times before the entity is reported failed for the run.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ValidationError marks a malformed entity; the entity is skipped with a
// log line and the batch continues.
type ValidationError struct {
	Entity string
	ID     uint
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Entity, e.ID, e.Reason)
}

// ConcurrencyConflict marks an entity changed between read and write.
// The caller re-fetches and retries once, then skips and flags for
// manual review.
type ConcurrencyConflict struct {
	Entity string
	ID     uint
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrent modification of %s %d", e.Entity, e.ID)
}

// NotifierError marks a failed notification dispatch. The ledger change
// it accompanies has already committed and is never rolled back.
type NotifierError struct {
	Kind string
	Err  error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("notifier %s failed: %v", e.Kind, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}

// IsConflict reports whether err is a concurrent-modification conflict.
func IsConflict(err error) bool {
	var c *ConcurrencyConflict
	return errors.As(err, &c)
}

// IsValidation reports whether err marks a malformed entity.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
