package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrRateLimited        = errors.New("too many requests")

	// Ledger / webhook errors
	ErrDuplicate        = errors.New("duplicate merchant transaction id")
	ErrStateConflict    = errors.New("illegal payment state transition")
	ErrMissingField     = errors.New("missing required field")
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrAmountMismatch   = errors.New("amount does not match the ledger")
)

// ValidationError reports a missing or malformed inbound field.
// It matches ErrMissingField with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("field %q is required", e.Field)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrMissingField }

// StorageError wraps a transient persistence failure. Callers decide whether
// it is tolerable (prepare) or must be retried and escalated (complete).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err carries a StorageError anywhere in its chain.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// PromoErrorKind enumerates the reasons a promo code can be rejected at checkout.
type PromoErrorKind string

const (
	PromoNotFound          PromoErrorKind = "NOT_FOUND"
	PromoInactive          PromoErrorKind = "INACTIVE"
	PromoNotYetStarted     PromoErrorKind = "NOT_YET_STARTED"
	PromoExpired           PromoErrorKind = "EXPIRED"
	PromoPlanMismatch      PromoErrorKind = "PLAN_MISMATCH"
	PromoUsageLimitReached PromoErrorKind = "USAGE_LIMIT_REACHED"
	PromoZeroDiscount      PromoErrorKind = "ZERO_DISCOUNT_CONFIGURED"
	PromoNonPositiveAmount PromoErrorKind = "RESULTING_AMOUNT_NON_POSITIVE"
)

// PromoError is returned by promo validation. It never reaches the webhook caller.
type PromoError struct {
	Kind PromoErrorKind
	Code string
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("promo %q rejected: %s", e.Code, e.Kind)
}

// Is lets errors.Is(err, &PromoError{Kind: k}) match on kind alone.
func (e *PromoError) Is(target error) bool {
	t, ok := target.(*PromoError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// PromoKind returns the promo rejection kind carried by err, if any.
func PromoKind(err error) (PromoErrorKind, bool) {
	var pe *PromoError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
