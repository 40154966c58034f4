package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or policy violation; state is unchanged.
	ErrConflict = errors.New("conflict")
	// ErrPrecondition indicates an operation could not start because a prerequisite is missing.
	ErrPrecondition = errors.New("precondition failed")
	// ErrAccessDenied is returned when the access decision denies a request.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError reports a conflict attributable to a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrConflict.
func (e *FieldError) Unwrap() error {
	return ErrConflict
}

// NewFieldError builds a field-level conflict.
func NewFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// PolicyError reports an action refused by a fixed rule, e.g. deleting a system node.
type PolicyError struct {
	Action string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s refused: %s", e.Action, e.Reason)
}

// Unwrap lets errors.Is match ErrConflict.
func (e *PolicyError) Unwrap() error {
	return ErrConflict
}

// NewPolicyError builds an action-level conflict.
func NewPolicyError(action, reason string) error {
	return &PolicyError{Action: action, Reason: reason}
}

// UserSafeMessage returns a message suitable for API clients.
func UserSafeMessage(err error) string {
	var fieldErr *FieldError
	var policyErr *PolicyError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fieldErr):
		return fieldErr.Error()
	case errors.As(err, &policyErr):
		return policyErr.Error()
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrPrecondition):
		return err.Error()
	case errors.Is(err, ErrAccessDenied):
		return "access denied"
	default:
		return "internal error"
	}
}
