package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds returned by every service. Handlers map them to status codes with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

// ServiceError carries a user-facing message for one of the error kinds.
type ServiceError struct {
	kind    error
	message string
}

func (e *ServiceError) Error() string {
	return e.message
}

// Unwrap exposes the kind so errors.Is matches it.
func (e *ServiceError) Unwrap() error {
	return e.kind
}

// Message returns the user-facing message.
func (e *ServiceError) Message() string {
	return e.message
}

func newError(kind error, format string, args ...interface{}) error {
	return &ServiceError{kind: kind, message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

func conflictError(format string, args ...interface{}) error {
	return newError(ErrConflict, format, args...)
}

func forbiddenError(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

// translateStoreError maps gorm sentinel errors onto service kinds, using
// notFound and conflict as the user-facing messages. Anything else is wrapped with op.
func translateStoreError(err error, op, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundError("%s", notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflictError("%s", conflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
