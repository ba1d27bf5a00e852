package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error matches exactly one of these with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected before any work starts.
	ErrValidation = errors.New("validation failed")
	// ErrPreconditionFailed indicates a business check failed before mutation.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvariantViolation indicates a mutation would break a stored invariant.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrIllegalTransition indicates a forbidden state machine move.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrConflict indicates a concurrent or duplicate request.
	ErrConflict = errors.New("conflict")
)

// DomainError is a coded business error carrying its kind.
type DomainError struct {
	Kind    error
	Code    string
	Message string
}

// NewError builds a sentinel DomainError.
func NewError(kind error, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrPreconditionFailed) works.
func (e *DomainError) Unwrap() error {
	return e.Kind
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e with a contextual message.
func (e *DomainError) Withf(format string, args ...any) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind sentinel of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrPreconditionFailed, ErrInvariantViolation, ErrIllegalTransition, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// UserSafeMessage returns err's message for classified errors and a generic
// text otherwise.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) != nil {
		return err.Error()
	}
	return "internal error"
}
