package loan

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("loan not found")

// ReasonActiveApplication is the eligibility reason for the one-active-loan rule.
const ReasonActiveApplication = "active or pending application exists"

// InvalidTermError reports calculator inputs outside their domain.
type InvalidTermError struct {
	Field string
	Value any
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("invalid loan term: %s=%v", e.Field, e.Value)
}

// IneligibleError carries the first eligibility rule that failed.
type IneligibleError struct {
	MemberID          string
	Reason            string
	MaxEligibleAmount *int64
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("member %s is not eligible: %s", e.MemberID, e.Reason)
}

// InvalidTransitionError is a state-machine violation.
type InvalidTransitionError struct {
	LoanID string
	Op     string
	From   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s loan %s in status %q", e.Op, e.LoanID, e.From)
}

type InvalidAmountError struct {
	Amount int64
	Reason string
}

func (e *InvalidAmountError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid payment amount %d: %s", e.Amount, e.Reason)
	}
	return fmt.Sprintf("invalid payment amount %d: must be positive", e.Amount)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// LookupError means data a decision depends on could not be read.
type LookupError struct {
	Resource string
	Key      string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s %s: %v", e.Resource, e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// PersistenceError means a write (or its commit) failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsDomainError reports whether err already belongs to the ledger's error taxonomy.
func IsDomainError(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var (
		termErr       *InvalidTermError
		ineligibleErr *IneligibleError
		transErr      *InvalidTransitionError
		amountErr     *InvalidAmountError
		validErr      *ValidationError
		lookupErr     *LookupError
		persistErr    *PersistenceError
	)
	return errors.As(err, &termErr) ||
		errors.As(err, &ineligibleErr) ||
		errors.As(err, &transErr) ||
		errors.As(err, &amountErr) ||
		errors.As(err, &validErr) ||
		errors.As(err, &lookupErr) ||
		errors.As(err, &persistErr)
}
