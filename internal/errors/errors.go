package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a category of client error.
type ErrorCode string

const (
	// ErrCodeTransport indicates the request never produced an HTTP response (DNS, dial, reset).
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeHTTPStatus indicates the API answered with a non-2xx status other than 401/404.
	ErrCodeHTTPStatus ErrorCode = "http_status"
	// ErrCodeUnauthorized indicates a 401 that was not recovered by a refresh (already retried).
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeSessionInvalidated indicates the refresh protocol failed and the session was cleared.
	ErrCodeSessionInvalidated ErrorCode = "session_invalidated"
	// ErrCodeNotFound indicates the API answered 404.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeDecode indicates a malformed response body.
	ErrCodeDecode ErrorCode = "decode"
	// ErrCodeValidation indicates invalid input caught before any network call.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates a local failure (encoding, store, bad configuration).
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates the caller's deadline expired.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the caller canceled the operation.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is the single failure channel surfaced by the API client and services.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Status is the HTTP status code when the API answered (0 otherwise)
	Status int
	// Body is the raw response body returned with Status, if any
	Body []byte
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		body := strings.TrimSpace(string(e.Body))
		if body != "" {
			msg = fmt.Sprintf("%s (status %d): %s", msg, e.Status, body)
		} else {
			msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// FromStatus maps a non-2xx API response into an AppError.
// The body is kept verbatim so callers can render domain-specific messages.
func FromStatus(method, path string, status int, body []byte) *AppError {
	code := ErrCodeHTTPStatus
	switch status {
	case http.StatusUnauthorized:
		code = ErrCodeUnauthorized
	case http.StatusNotFound:
		code = ErrCodeNotFound
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf("%s %s", method, path),
		Status:  status,
		Body:    body,
	}
}

// Transport wraps a failure that happened before any response was received.
func Transport(err error, method, path string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    ErrCodeTransport,
		Message: fmt.Sprintf("%s %s", method, path),
		Cause:   err,
	}
}

// SessionInvalidated wraps the refresh failure that ended the session.
func SessionInvalidated(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeSessionInvalidated,
		Message: "session invalidated",
		Cause:   cause,
	}
}

// Decode wraps a response body that could not be parsed.
func Decode(err error, what string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    ErrCodeDecode,
		Message: "decode " + what,
		Cause:   err,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTransport checks if an error is a Transport error.
func IsTransport(err error) bool {
	return isCode(err, ErrCodeTransport)
}

// IsUnauthorized checks if an error is an unrecovered 401.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsSessionInvalidated checks if an error ended the session.
func IsSessionInvalidated(err error) bool {
	return isCode(err, ErrCodeSessionInvalidated)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsDecode checks if an error is a Decode error.
func IsDecode(err error) bool {
	return isCode(err, ErrCodeDecode)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetStatus returns the HTTP status carried by the outermost AppError, or 0.
func GetStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// GetBody returns the response body carried by the outermost AppError that has one.
func GetBody(err error) []byte {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return nil
		}
		if len(appErr.Body) > 0 {
			return appErr.Body
		}
		err = appErr.Cause
	}
	return nil
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
