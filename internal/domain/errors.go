package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrImportRunning is returned when an import is requested while another
	// one holds the catalog
	ErrImportRunning = errors.New("an inventory import is already running")

	ErrPrescriptionRequired    = errors.New("prescription required for restricted medicines")
	ErrForbiddenPrescription   = errors.New("prescription does not belong to this user")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// ValidationError reports a missing or malformed field. It is never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
