package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeUnsupportedKind         ErrorType = "unsupported_kind"
	ErrorTypeValidation              ErrorType = "validation"
	ErrorTypeResolution              ErrorType = "resolution"
	ErrorTypePublishConnectionClosed ErrorType = "publish_connection_closed"
	ErrorTypePublishFailure          ErrorType = "publish_failure"
	ErrorTypeConfiguration           ErrorType = "configuration"
	ErrorTypeInternal                ErrorType = "internal"
)

// Error represents a structured error raised while checking eligibility
type Error struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewUnsupportedKindError creates an error for a resource kind outside the recognized set
func NewUnsupportedKindError(kind string) *Error {
	return &Error{
		Type:    ErrorTypeUnsupportedKind,
		Code:    ErrCodeUnsupportedKind,
		Message: fmt.Sprintf("resource kind %q is not supported", kind),
		Details: map[string]interface{}{"kind": kind},
	}
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewResolutionError creates an error for a reference that could not be fetched or decoded
func NewResolutionError(reference, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeResolution,
		Code:    ErrCodeResolutionFailed,
		Message: message,
		Details: map[string]interface{}{"reference": reference},
		Cause:   cause,
	}
}

// NewPublishError creates a publish error. Connection closure is reported with
// ErrorTypePublishConnectionClosed so callers can decide whether to resend.
func NewPublishError(closed bool, subject string, cause error) *Error {
	e := &Error{
		Type:    ErrorTypePublishFailure,
		Code:    ErrCodePublishFailed,
		Message: "failed to publish event",
		Details: map[string]interface{}{"subject": subject},
		Cause:   cause,
	}
	if closed {
		e.Type = ErrorTypePublishConnectionClosed
		e.Code = ErrCodeConnectionClosed
		e.Message = "connection closed while publishing event"
	}
	return e
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Code:    ErrCodeInvalidConfiguration,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err, or any error it wraps, is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// Common error codes
const (
	ErrCodeUnsupportedKind      = "UNSUPPORTED_RESOURCE_KIND"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeResolutionFailed     = "RESOLUTION_FAILED"
	ErrCodeConnectionClosed     = "CONNECTION_CLOSED"
	ErrCodePublishFailed        = "PUBLISH_FAILED"
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeResponseInvalid      = "RESPONSE_INVALID"
)
