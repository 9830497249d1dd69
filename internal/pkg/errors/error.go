// internal/pkg/errors/error.go
package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict: resource already exists")
	ErrInternal         = errors.New("internal server error")
	ErrRateLimited      = errors.New("too many requests")
	ErrProvider         = errors.New("payment provider error")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrDuplicateEntry   = errors.New("duplicate entry")
)

// ValidationError carries a client-facing message while still matching ErrInvalidInput.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError with a formatted message.
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError is a not-found error with a specific message.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(msg string) error {
	return &NotFoundError{Msg: msg}
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// PublicMessage returns the innermost client-safe message for validation,
// not-found and provider errors, or fallback for everything else.
func PublicMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Msg
	}
	var pe interface{ ProviderMessage() string }
	if errors.As(err, &pe) {
		return pe.ProviderMessage()
	}
	return fallback
}
