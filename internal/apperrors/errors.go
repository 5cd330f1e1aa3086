// Package apperrors provides structured errors that carry an HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error; it drives the HTTP status and the
// log level.
type ErrorType string

const (
	TypeValidation      ErrorType = "validation"
	TypeUnauthenticated ErrorType = "unauthenticated"
	TypeForbidden       ErrorType = "forbidden"
	TypeNotFound        ErrorType = "not_found"
	TypeConflict        ErrorType = "conflict"
	TypeRateLimited     ErrorType = "rate_limited"
	TypeInternal        ErrorType = "internal"
)

// Error is a structured error with type, message and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthenticated:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds a context field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

func Validation(message string) *Error { return newError(TypeValidation, message, nil) }

func Unauthenticated(message string) *Error { return newError(TypeUnauthenticated, message, nil) }

func Forbidden(message string) *Error { return newError(TypeForbidden, message, nil) }

func NotFound(message string) *Error { return newError(TypeNotFound, message, nil) }

func Conflict(message string) *Error { return newError(TypeConflict, message, nil) }

func RateLimited(message string) *Error { return newError(TypeRateLimited, message, nil) }

func Internal(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// AsStructured converts any error into a structured Error. Errors that are
// already structured are returned unchanged; anything else becomes internal.
func AsStructured(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return Internal("internal server error", err)
}

// Is reports whether err is a structured error of type t.
func Is(err error, t ErrorType) bool {
	var structured *Error
	return errors.As(err, &structured) && structured.Type == t
}
