package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrIrrecoverableInput means the source bytes cannot be decoded as the declared file kind.
	ErrIrrecoverableInput = errors.New("irrecoverable input")
	// ErrCapabilityUnavailable means an external capability call failed or timed out.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrNoItems means extraction produced nothing for a non-empty input.
	ErrNoItems = errors.New("extraction returned no items")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Errorf wraps cause in an AppError with a formatted message.
func Errorf(code string, cause error, format string, args ...any) *AppError {
	return NewAppError(code, fmt.Sprintf(format, args...), cause)
}

// HTTPStatus maps an error chain onto the HTTP status the API should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIrrecoverableInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrCapabilityUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
