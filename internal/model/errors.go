package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for a referenced entity with no current
// state. Wrap with NotFoundError to carry the identifier.
var ErrNotFound = errors.New("model: entity not found")

// NotFoundError identifies which entity could not be resolved. Batch
// operations attach one per failed item so a single bad identifier
// never fails the whole batch.
type NotFoundError struct {
	UID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model: entity %q not found", e.UID)
}

// Is lets errors.Is(err, ErrNotFound) match a NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError rejects malformed input before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for field with a formatted reason.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
