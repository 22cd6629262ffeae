// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("conflict")
	ErrUnexpected            = errors.New("unexpected error")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrCapacityExceeded,
	ErrDuplicateRegistration,
	ErrUnauthorized,
	ErrConflict,
}

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// FieldError is a validation message for one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a domain error: a kind, a caller-safe message, optional field
// errors and an optional cause that is logged but never shown to callers.
type Error struct {
	Kind    error
	Message string
	Fields  []FieldError
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// New returns an error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind carrying cause.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation returns a validation error with optional field messages.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

// NotFound returns a not-found error.
func NotFound(message string) *Error {
	return New(ErrNotFound, message)
}

// Field builds a FieldError.
func Field(field, message string) FieldError {
	return FieldError{Field: field, Message: message}
}

// KindOf returns the kind of err, or ErrUnexpected for foreign errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnexpected
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNoRows reports whether err is the store's "no rows" signal.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// An empty constraint matches any unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// FromStore maps a missing row to NotFound(notFound) and any other error to
// Unexpected. Errors that already carry a kind pass through unchanged.
func FromStore(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if IsNoRows(err) {
		return Wrap(ErrNotFound, notFound, err)
	}
	return Wrap(ErrUnexpected, "store error", err)
}
