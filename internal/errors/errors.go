// Package errors defines the structured error taxonomy for the batchrelay
// pipeline and helpers for classifying failures as fatal or recoverable.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeIO indicates a durable store was unreadable or unwritable. Always fatal.
	ErrCodeIO ErrorCode = "io"
	// ErrCodeMalformedRecord indicates a single input line failed to parse. Logged and skipped.
	ErrCodeMalformedRecord ErrorCode = "malformed_record"
	// ErrCodeSubmission indicates an external submit call failed.
	ErrCodeSubmission ErrorCode = "submission"
	// ErrCodeItemResult indicates an individual retrieved result reported failure.
	ErrCodeItemResult ErrorCode = "item_result"
	// ErrCodeValidation indicates invalid configuration or input.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeService indicates a poll or retrieve call against the external service failed.
	ErrCodeService ErrorCode = "service"
)

// AppError represents a structured application error with a code, message,
// and optional cause. It supports error wrapping and unwrapping for use with
// errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
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

// IO creates a new IO error wrapping cause.
func IO(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeIO, Message: message, Cause: cause}
}

// IOf creates a new IO error with a formatted message.
func IOf(cause error, format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeIO, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// MalformedRecord creates a new malformed-record error wrapping cause.
func MalformedRecord(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeMalformedRecord, Message: message, Cause: cause}
}

// Submission creates a new submission error wrapping cause.
func Submission(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSubmission, Message: message, Cause: cause}
}

// Service creates a new service error wrapping cause.
func Service(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeService, Message: message, Cause: cause}
}

// Validation creates a new validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or "" when err carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsFatal reports whether err must abort the run regardless of the
// continue-on-error setting. Only IO-level failures qualify.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeIO
}
