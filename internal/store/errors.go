// Package store defines the persistence error vocabulary shared by
// storage backends and the services that consume them.
package store

import (
	"fmt"
	"net/http"
)

// Error is a storage error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Code:    e.Code,
		Message: msg,
		Err:     e.Err,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrConflict = &Error{
		Code:    http.StatusConflict,
		Message: "operation conflicts with existing records",
	}

	ErrInvalidState = &Error{
		Code:    http.StatusUnprocessableEntity,
		Message: "operation not valid for current state",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}
)

// Per-entity lookup failures.
var (
	ErrBookNotFound        = ErrNotFound.WithMessage("book not found")
	ErrCategoryNotFound    = ErrNotFound.WithMessage("category not found")
	ErrUserNotFound        = ErrNotFound.WithMessage("user not found")
	ErrLoanNotFound        = ErrNotFound.WithMessage("loan not found")
	ErrReservationNotFound = ErrNotFound.WithMessage("reservation not found")
	ErrFineNotFound        = ErrNotFound.WithMessage("fine not found")
)

// Uniqueness violations.
var (
	ErrEmailExists    = ErrAlreadyExists.WithMessage("email already registered")
	ErrISBNExists     = ErrAlreadyExists.WithMessage("ISBN already in catalog")
	ErrCategoryExists = ErrAlreadyExists.WithMessage("category already exists")
)

// Circulation rule violations surfaced from transactional operations.
var (
	// ErrNoCopies means the book has no shelf copies left to issue.
	ErrNoCopies = &Error{
		Code:    http.StatusUnprocessableEntity,
		Message: "no copies available",
	}

	// ErrDuplicateLoan means the user already holds an active loan for the book.
	ErrDuplicateLoan = &Error{
		Code:    http.StatusConflict,
		Message: "user already has this book on loan",
	}

	// ErrDuplicateReservation means the user already has a pending hold for the book.
	ErrDuplicateReservation = &Error{
		Code:    http.StatusConflict,
		Message: "user already has a pending reservation for this book",
	}

	// ErrNoReserveCapacity means every remaining shelf copy is already claimed by a pending hold.
	ErrNoReserveCapacity = &Error{
		Code:    http.StatusUnprocessableEntity,
		Message: "all available copies are already reserved",
	}

	// ErrLoanClosed means the loan was already returned.
	ErrLoanClosed = ErrInvalidState.WithMessage("loan already returned")

	// ErrBookHasActiveLoans blocks deleting a book with copies still out.
	ErrBookHasActiveLoans = ErrConflict.WithMessage("book has active loans")

	// ErrCategoryHasBooks blocks deleting a category still referenced by books.
	ErrCategoryHasBooks = ErrConflict.WithMessage("category still has books")
)
