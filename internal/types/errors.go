package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

const (
	// Validation
	ErrCodeValidationNotice     ErrorCode = "validation_invalid_notice"
	ErrCodeValidationRecipients ErrorCode = "validation_no_recipients"
	ErrCodeValidationConfig     ErrorCode = "validation_invalid_config"

	// Storage / internal
	ErrCodeInternalDB         ErrorCode = "internal_db_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected"
	ErrCodeNotFound           ErrorCode = "not_found"

	// Upstream providers
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_timeout"
	ErrCodeSmsRejected         ErrorCode = "sms_rejected"
	ErrCodeEmailBlocked        ErrorCode = "email_address_blocked"
	ErrCodeGatewayPublish      ErrorCode = "gateway_publish_failed"

	// Coordination
	ErrCodeLockUnavailable ErrorCode = "lock_unavailable"
)

// AppError is the application-wide error type carrying a stable code for
// categorization, a human-readable message, and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an AppError.
// Returns an empty code otherwise.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryableUpstream reports whether err represents a transient upstream
// condition worth retrying. Unknown errors default to retryable; only
// explicitly terminal codes are excluded.
func IsRetryableUpstream(err error) bool {
	switch CodeOf(err) {
	case ErrCodeSmsRejected, ErrCodeEmailBlocked, ErrCodeValidationNotice, ErrCodeValidationRecipients:
		return false
	}
	return true
}
