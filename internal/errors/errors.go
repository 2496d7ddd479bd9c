package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeStorage indicates a persistence medium failure. The operation
	// fails but the session state machine stays consistent.
	ErrCodeStorage ErrorCode = "storage"
	// ErrCodeNetwork indicates a transient network failure. No state transition.
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeAuthCancelled indicates the user abandoned an interactive login.
	// A normal outcome, not a failure.
	ErrCodeAuthCancelled ErrorCode = "auth_cancelled"
	// ErrCodeRefreshInvalid indicates the backend permanently rejected a
	// refresh token. Forces logout and credential clearing.
	ErrCodeRefreshInvalid ErrorCode = "refresh_invalid"
	// ErrCodeAlreadyInProgress indicates a login/refresh was rejected because
	// one is already in flight. Callers should not retry immediately.
	ErrCodeAlreadyInProgress ErrorCode = "already_in_progress"
	// ErrCodeUnauthorized indicates a request failed authorization and could
	// not be recovered by refresh.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
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

// Storage creates a new Storage error.
func Storage(message string) *AppError {
	return &AppError{Code: ErrCodeStorage, Message: message}
}

// Storagef creates a new Storage error with formatted message.
func Storagef(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeStorage, Message: fmt.Sprintf(format, args...)}
}

// Network creates a new Network error.
func Network(message string) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: message}
}

// Networkf creates a new Network error with formatted message.
func Networkf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: fmt.Sprintf(format, args...)}
}

// AuthCancelled creates a new AuthCancelled error.
func AuthCancelled(message string) *AppError {
	return &AppError{Code: ErrCodeAuthCancelled, Message: message}
}

// RefreshInvalid creates a new RefreshInvalid error.
func RefreshInvalid(message string) *AppError {
	return &AppError{Code: ErrCodeRefreshInvalid, Message: message}
}

// AlreadyInProgress creates a new AlreadyInProgress error.
func AlreadyInProgress(message string) *AppError {
	return &AppError{Code: ErrCodeAlreadyInProgress, Message: message}
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
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

// IsStorage checks if an error is a Storage error.
func IsStorage(err error) bool {
	return isCode(err, ErrCodeStorage)
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isCode(err, ErrCodeNetwork)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// IsAuthCancelled checks if an error is an AuthCancelled error.
func IsAuthCancelled(err error) bool {
	return isCode(err, ErrCodeAuthCancelled)
}

// IsRefreshInvalid checks if an error is a RefreshInvalid error.
func IsRefreshInvalid(err error) bool {
	return isCode(err, ErrCodeRefreshInvalid)
}

// IsAlreadyInProgress checks if an error is an AlreadyInProgress error.
func IsAlreadyInProgress(err error) bool {
	return isCode(err, ErrCodeAlreadyInProgress)
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsTransient reports whether the error is worth retrying: transient
// network conditions and timeouts. Permanent rejections (refresh_invalid,
// unauthorized, validation) are not.
func IsTransient(err error) bool {
	return IsNetwork(err) || IsTimeout(err)
}

// CodeOf extracts the ErrorCode from an error chain, or ErrCodeInternal
// when no AppError is present.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
