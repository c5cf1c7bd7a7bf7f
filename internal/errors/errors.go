// Package errors provides standardized domain errors with codes for the Pustak API.
//
// Usage:
//
//	// In services - return typed errors
//	if book.AvailableCopies <= 0 {
//	    return errors.Unavailable("no copies available")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrDuplicateLoan) {
//	    ...
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeUnavailable:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeInactive             Code = "INACTIVE"
	CodeUnavailable          Code = "UNAVAILABLE"
	CodeDuplicateLoan        Code = "DUPLICATE_LOAN"
	CodeDuplicateReservation Code = "DUPLICATE_RESERVATION"
	CodeNoCapacity           Code = "NO_CAPACITY"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeConflict             Code = "CONFLICT"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeValidation           Code = "VALIDATION"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeTokenExpired         Code = "TOKEN_EXPIRED"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeInternal             Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeDuplicateLoan, CodeDuplicateReservation:
		return http.StatusConflict
	case CodeUnavailable, CodeNoCapacity, CodeInvalidState, CodeInactive:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized, CodeInvalidCredentials, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInactive             = &Error{Code: CodeInactive, Message: "account inactive"}
	ErrUnavailable          = &Error{Code: CodeUnavailable, Message: "no copies available"}
	ErrDuplicateLoan        = &Error{Code: CodeDuplicateLoan, Message: "active loan already exists"}
	ErrDuplicateReservation = &Error{Code: CodeDuplicateReservation, Message: "pending reservation already exists"}
	ErrNoCapacity           = &Error{Code: CodeNoCapacity, Message: "all copies are reserved"}
	ErrInvalidState         = &Error{Code: CodeInvalidState, Message: "operation not valid for current status"}
	ErrConflict             = &Error{Code: CodeConflict, Message: "conflict"}
	ErrAlreadyExists        = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized         = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden            = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidCredentials   = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrTokenExpired         = &Error{Code: CodeTokenExpired, Message: "token expired"}
	ErrRateLimited          = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Inactive creates an inactive-account error.
func Inactive(msg string) *Error {
	return &Error{Code: CodeInactive, Message: msg}
}

// Unavailable creates a no-copies-available error.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// DuplicateLoan creates a duplicate loan error.
func DuplicateLoan(msg string) *Error {
	return &Error{Code: CodeDuplicateLoan, Message: msg}
}

// DuplicateReservation creates a duplicate reservation error.
func DuplicateReservation(msg string) *Error {
	return &Error{Code: CodeDuplicateReservation, Message: msg}
}

// NoCapacity creates a no-capacity error.
func NoCapacity(msg string) *Error {
	return &Error{Code: CodeNoCapacity, Message: msg}
}

// InvalidState creates an invalid state error.
func InvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

// InvalidStatef creates an invalid state error with formatted message.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Conflictf creates a conflict error with formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// TokenExpired creates a token expired error.
func TokenExpired(msg string) *Error {
	return &Error{Code: CodeTokenExpired, Message: msg}
}

// RateLimited creates a too-many-requests error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
