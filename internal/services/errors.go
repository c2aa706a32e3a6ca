package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrForbidden    = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("authentication required")
)

// ValidationError reports bad input. Field is empty for errors that are not
// tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func forbidden(message string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, message)
}

// notFound maps gorm's missing-row error to ErrNotFound and passes anything
// else through.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
