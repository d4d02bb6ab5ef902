package tmerr

import (
	"errors"
	"fmt"
)

// FieldError reports a validation failure for a single named field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match field errors.
func (e *FieldError) Unwrap() error { return ErrValidation }

// Invalid returns a FieldError for field with a formatted reason.
func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Field extracts the offending field name from err, if any.
func Field(err error) (string, bool) {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Field != "" {
		return fe.Field, true
	}
	return "", false
}
