package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// AuthenticationError is returned when an inbound request fails signature checks.
type AuthenticationError struct {
	Reason string
}

func (e AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

func (e AuthenticationError) Is(target error) bool {
	_, ok := target.(AuthenticationError)
	return ok
}

// InvalidInputError carries a message meant for the invoking user.
type InvalidInputError struct {
	Message string
}

func (e InvalidInputError) Error() string {
	return e.Message
}

func (e InvalidInputError) Is(target error) bool {
	_, ok := target.(InvalidInputError)
	return ok
}

// ResolutionError means a name could not be turned into an address.
type ResolutionError struct {
	Name    string
	Message string
	Cause   error
}

func (e ResolutionError) Error() string {
	return e.Message
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

func (e ResolutionError) Is(target error) bool {
	_, ok := target.(ResolutionError)
	return ok
}

// IssuanceAPIError is a non-success answer from the badge issuance API.
// A transport failure carries StatusServiceUnavailable and the Cause.
type IssuanceAPIError struct {
	Status  int
	Message string
	Cause   error
}

func (e *IssuanceAPIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("issuance api error (%d): %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("issuance api error (%d): %s", e.Status, e.Message)
}

func (e *IssuanceAPIError) Unwrap() error {
	return e.Cause
}

// Unavailable reports whether the API could not be reached at all.
func (e *IssuanceAPIError) Unavailable() bool {
	return e.Status == http.StatusServiceUnavailable
}

// LookupError means badge ownership could not be determined.
type LookupError struct {
	Address string
	Cause   error
}

func (e LookupError) Error() string {
	return fmt.Sprintf("badge lookup failed for %s: %v", e.Address, e.Cause)
}

func (e LookupError) Unwrap() error {
	return e.Cause
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op    string
	Cause error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e StoreError) Unwrap() error {
	return e.Cause
}

var (
	// ErrExhaustedSupply means there is no unclaimed claim link left for an event.
	ErrExhaustedSupply = errors.New("no claim links available")

	// ErrDuplicateClaim means a rule already produced a pending or claimed record for the user.
	ErrDuplicateClaim = errors.New("claim already recorded")

	// ErrInvalidTransition means the record has already left the pending state.
	ErrInvalidTransition = errors.New("distribution record is not pending")
)
