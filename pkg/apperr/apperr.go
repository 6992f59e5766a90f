// Package apperr defines the error taxonomy shared by every engine
// operation: validation, not-found, conflict, partial and internal
// failures, each carrying enough context for the caller to correct input.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category classifies an error for propagation and exit-code purposes
type Category string

const (
	// CategoryValidation marks missing or malformed input, rejected
	// before any write.
	CategoryValidation Category = "validation"

	// CategoryNotFound marks a referenced entity that does not exist.
	CategoryNotFound Category = "not_found"

	// CategoryConflict marks a business-rule violation against current
	// state, such as completing an unbalanced reconciliation.
	CategoryConflict Category = "conflict"

	// CategoryPartial marks an operation that committed some rows and
	// rejected others. Only the importer reports this.
	CategoryPartial Category = "partial"

	// CategoryInternal marks storage or programming failures; the
	// enclosing atomic unit has been fully rolled back.
	CategoryInternal Category = "internal"
)

// Error is the engine's error type. Context holds structured detail
// (field names, current status, current difference) for the caller.
type Error struct {
	Category Category               `json:"category"`
	Message  string                 `json:"message"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a structured detail to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ExitCode returns the CLI exit code for the error's category
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryConflict:
		return 4
	case CategoryPartial:
		return 5
	default:
		return 1
	}
}

// Validation creates a validation error for a named field
func Validation(field, format string, args ...interface{}) *Error {
	e := &Error{
		Category: CategoryValidation,
		Message:  fmt.Sprintf(format, args...),
	}
	if field != "" {
		e.WithContext("field", field)
	}
	return e
}

// NotFound creates a not-found error for an entity reference
func NotFound(entity string, id interface{}) *Error {
	e := &Error{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("%s %v not found", entity, id),
	}
	return e.WithContext("entity", entity).WithContext("id", id)
}

// Conflict creates a business-rule conflict error
func Conflict(format string, args ...interface{}) *Error {
	return &Error{
		Category: CategoryConflict,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Partial creates a partial-failure error reporting row-level rejections
func Partial(inserted, rejected int) *Error {
	e := &Error{
		Category: CategoryPartial,
		Message:  fmt.Sprintf("%d rows inserted, %d rows rejected", inserted, rejected),
	}
	return e.WithContext("inserted", inserted).WithContext("rejected", rejected)
}

// Internal wraps an unexpected failure with a stack trace
func Internal(operation string, cause error) *Error {
	return &Error{
		Category: CategoryInternal,
		Message:  fmt.Sprintf("internal error during %s", operation),
		Cause:    errors.WithStack(cause),
	}
}

// As extracts an *Error from an error chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CategoryOf returns the category of an error, or CategoryInternal for
// errors outside the taxonomy.
func CategoryOf(err error) Category {
	if appErr, ok := As(err); ok {
		return appErr.Category
	}
	return CategoryInternal
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return CategoryOf(err) == CategoryValidation
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool {
	return CategoryOf(err) == CategoryConflict
}

// WrapInternal wraps err as an internal error unless it already belongs
// to the taxonomy, in which case it passes through unchanged.
func WrapInternal(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Internal(operation, err)
}
