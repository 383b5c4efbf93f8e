// Package errorx defines the error taxonomy shared by every obsdb package.
//
// All failures surfaced by this library are one of the types below. Callers
// match them with errors.Is against the Err* sentinels (or errors.As against
// the concrete types); the sentinels are never returned directly.
package errorx

import (
	"errors"
	"fmt"
)

// Sentinels anchoring errors.Is matching for the taxonomy.
var (
	ErrConnection    = errors.New("database connection error")
	ErrNoRoute       = errors.New("no route to database")
	ErrInvalidConfig = errors.New("invalid database configuration")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInconsistency = errors.New("database inconsistency")
	ErrValidation    = errors.New("validation failed")
)

// CONNECTION ERROR:

// ConnectionError - a handle to an otherwise-valid target could not be opened.
type ConnectionError struct {
	message string
	err     error
}

// NewConnectionError - ConnectionError constructor.
func NewConnectionError(msg string, args ...any) *ConnectionError {
	return &ConnectionError{message: fmt.Sprintf(msg, args...)}
}

// NewConnectionErrorWrapper - ConnectionError constructor wrapping a cause.
func NewConnectionErrorWrapper(err error, msg string, args ...any) *ConnectionError {
	return &ConnectionError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *ConnectionError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *ConnectionError) Unwrap() error { return e.err }

// Is - match against the ErrConnection sentinel.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// NO ROUTE ERROR:

// NoRouteError - no path to the database exists at all: authentication
// failed, the tunnel could not be built, or no configuration was found.
// Matches both ErrNoRoute and ErrConnection.
type NoRouteError struct {
	message string
	err     error
}

// NewNoRouteError - NoRouteError constructor.
func NewNoRouteError(msg string, args ...any) *NoRouteError {
	return &NoRouteError{message: fmt.Sprintf(msg, args...)}
}

// NewNoRouteErrorWrapper - NoRouteError constructor wrapping a cause.
func NewNoRouteErrorWrapper(err error, msg string, args ...any) *NoRouteError {
	return &NoRouteError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *NoRouteError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *NoRouteError) Unwrap() error { return e.err }

// Is - match ErrNoRoute and, as a subtype, ErrConnection.
func (e *NoRouteError) Is(target error) bool {
	return target == ErrNoRoute || target == ErrConnection
}

// INVALID CONFIG ERROR:

// InvalidConfigError - a configuration source is present but malformed.
// Resolution never skips past one of these.
type InvalidConfigError struct {
	message string
	err     error
}

// NewInvalidConfigError - InvalidConfigError constructor.
func NewInvalidConfigError(msg string, args ...any) *InvalidConfigError {
	return &InvalidConfigError{message: fmt.Sprintf(msg, args...)}
}

// NewInvalidConfigErrorWrapper - InvalidConfigError constructor wrapping a cause.
func NewInvalidConfigErrorWrapper(err error, msg string, args ...any) *InvalidConfigError {
	return &InvalidConfigError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *InvalidConfigError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *InvalidConfigError) Unwrap() error { return e.err }

// Is - match against the ErrInvalidConfig sentinel.
func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// NOT FOUND ERROR:

// NotFoundError - a lookup matched zero rows.
type NotFoundError struct {
	message string
	err     error
}

// NewNotFoundError - NotFoundError constructor.
func NewNotFoundError(msg string, args ...any) *NotFoundError {
	return &NotFoundError{message: fmt.Sprintf(msg, args...)}
}

// NewNotFoundErrorWrapper - NotFoundError constructor wrapping a cause.
func NewNotFoundErrorWrapper(err error, msg string, args ...any) *NotFoundError {
	return &NotFoundError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *NotFoundError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *NotFoundError) Unwrap() error { return e.err }

// Is - match against the ErrNotFound sentinel.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ALREADY EXISTS ERROR:

// AlreadyExistsError - an insert collided with an existing key.
type AlreadyExistsError struct {
	message string
	err     error
}

// NewAlreadyExistsError - AlreadyExistsError constructor.
func NewAlreadyExistsError(msg string, args ...any) *AlreadyExistsError {
	return &AlreadyExistsError{message: fmt.Sprintf(msg, args...)}
}

// NewAlreadyExistsErrorWrapper - AlreadyExistsError constructor wrapping a cause.
func NewAlreadyExistsErrorWrapper(err error, msg string, args ...any) *AlreadyExistsError {
	return &AlreadyExistsError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *AlreadyExistsError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *AlreadyExistsError) Unwrap() error { return e.err }

// Is - match against the ErrAlreadyExists sentinel.
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// INCONSISTENCY ERROR:

// InconsistencyError - stored data, or library state, violates an invariant
// that normal operation cannot break.
type InconsistencyError struct {
	message string
	err     error
}

// NewInconsistencyError - InconsistencyError constructor.
func NewInconsistencyError(msg string, args ...any) *InconsistencyError {
	return &InconsistencyError{message: fmt.Sprintf(msg, args...)}
}

// NewInconsistencyErrorWrapper - InconsistencyError constructor wrapping a cause.
func NewInconsistencyErrorWrapper(err error, msg string, args ...any) *InconsistencyError {
	return &InconsistencyError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *InconsistencyError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *InconsistencyError) Unwrap() error { return e.err }

// Is - match against the ErrInconsistency sentinel.
func (e *InconsistencyError) Is(target error) bool { return target == ErrInconsistency }

// VALIDATION ERROR:

// ValidationError - a value fails an expected format check.
type ValidationError struct {
	message string
	err     error
}

// NewValidationError - ValidationError constructor.
func NewValidationError(msg string, args ...any) *ValidationError {
	return &ValidationError{message: fmt.Sprintf(msg, args...)}
}

// NewValidationErrorWrapper - ValidationError constructor wrapping a cause.
func NewValidationErrorWrapper(err error, msg string, args ...any) *ValidationError {
	return &ValidationError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (e *ValidationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Unwrap - return the wrapped cause, if any.
func (e *ValidationError) Unwrap() error { return e.err }

// Is - match against the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
