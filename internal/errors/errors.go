// Package errors defines the application error taxonomy shared by the
// coordination core and its transport surface.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeAlreadyClaimed indicates a claim race was lost: the job was no
	// longer available at commit time.
	ErrCodeAlreadyClaimed ErrorCode = "already_claimed"
	// ErrCodeInvalidTransition indicates a status change violated the job
	// state machine (wrong source state, unmet guard, or backward move).
	ErrCodeInvalidTransition ErrorCode = "invalid_transition"
	// ErrCodeUnauthorized indicates the actor may not perform the operation
	// (non-owner, banned, or in an unresolved cooldown).
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeVerificationFailed indicates the external verifier rejected or
	// mismatched a payment.
	ErrCodeVerificationFailed ErrorCode = "verification_failed"
	// ErrCodeVerificationTimeout indicates no confirmation arrived within
	// the bounded wait window.
	ErrCodeVerificationTimeout ErrorCode = "verification_timeout"
	// ErrCodeTransport indicates an external call failed after retries were
	// exhausted.
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a database or context timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a structured application error with a code, message, and
// optional cause. It supports errors.Is / errors.As through Unwrap.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyClaimed creates a new AlreadyClaimed error.
func AlreadyClaimed(message string) *AppError {
	return &AppError{Code: ErrCodeAlreadyClaimed, Message: message}
}

// AlreadyClaimedf creates a new AlreadyClaimed error with formatted message.
func AlreadyClaimedf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeAlreadyClaimed, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransition creates a new InvalidTransition error.
func InvalidTransition(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidTransition, Message: message}
}

// InvalidTransitionf creates a new InvalidTransition error with formatted message.
func InvalidTransitionf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// Unauthorizedf creates a new Unauthorized error with formatted message.
func Unauthorizedf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// VerificationFailed creates a new VerificationFailed error.
func VerificationFailed(message string) *AppError {
	return &AppError{Code: ErrCodeVerificationFailed, Message: message}
}

// VerificationFailedf creates a new VerificationFailed error with formatted message.
func VerificationFailedf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeVerificationFailed, Message: fmt.Sprintf(format, args...)}
}

// VerificationTimeout creates a new VerificationTimeout error.
func VerificationTimeout(message string) *AppError {
	return &AppError{Code: ErrCodeVerificationTimeout, Message: message}
}

// Transport creates a new Transport error wrapping the exhausted cause.
func Transport(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeTransport, Message: message, Cause: cause}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsAlreadyClaimed checks if an error is an AlreadyClaimed error.
func IsAlreadyClaimed(err error) bool {
	return isCode(err, ErrCodeAlreadyClaimed)
}

// IsInvalidTransition checks if an error is an InvalidTransition error.
func IsInvalidTransition(err error) bool {
	return isCode(err, ErrCodeInvalidTransition)
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsVerificationFailed checks if an error is a VerificationFailed error.
func IsVerificationFailed(err error) bool {
	return isCode(err, ErrCodeVerificationFailed)
}

// IsVerificationTimeout checks if an error is a VerificationTimeout error.
func IsVerificationTimeout(err error) bool {
	return isCode(err, ErrCodeVerificationTimeout)
}

// IsTransport checks if an error is a Transport error.
func IsTransport(err error) bool {
	return isCode(err, ErrCodeTransport)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
