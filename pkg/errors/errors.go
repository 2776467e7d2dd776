// Package errors provides structured error handling for the application.
// Every user-visible failure is an *AppError carrying a stable code, a
// message that is safe to render and the wrapped cause for logs.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Client errors (4xx)
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodeConfiguration        ErrorCode = "CONFIGURATION_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// CodePartialItemFailed marks one failed item of a fan-out. It is never
	// returned for a whole operation.
	CodePartialItemFailed ErrorCode = "PARTIAL_ITEM_FAILED"
)

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeConfiguration:
		return http.StatusServiceUnavailable
	case CodeExternalServiceError, CodePartialItemFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, message, "")
}

// NewValidationError creates a validation error whose message is shown to
// the user as-is.
func NewValidationError(message string) *AppError {
	return NewAppError(CodeValidationFailed, message, "")
}

// NewConfigurationError creates an error for a missing or unusable setting.
// It is returned before any outbound call is attempted.
func NewConfigurationError(message string) *AppError {
	return NewAppError(CodeConfiguration, message, "")
}

// NewServiceError wraps a failed call to an external service. The message
// is user-facing; the cause is kept for logging only.
func NewServiceError(message string, cause error) *AppError {
	return NewAppError(CodeExternalServiceError, message, "").WithCause(cause)
}

// NewPartialItemError records the failure of a single fan-out item.
func NewPartialItemError(item string, cause error) *AppError {
	return NewAppError(
		CodePartialItemFailed,
		"Item failed",
		fmt.Sprintf("Failed to process %s", item),
	).WithCause(cause).WithMetadata("item", item)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s%s not found", strings.ToUpper(resource[:1]), resource[1:])
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewTooManyRequestsError creates a rate limit error
func NewTooManyRequestsError() *AppError {
	return NewAppError(CodeTooManyRequests, "Too many requests. Please slow down.", "")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// GetHTTPStatus maps any error to an HTTP status code.
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// UserMessage returns the text that may be shown to an end user. Causes of
// non-application errors are never exposed.
func UserMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

// ValidationError describes one field that failed validation
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// Fields lists the names of the failed fields
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, err := range v {
		fields[i] = err.Field
	}
	return fields
}

// NewValidationErrors creates a validation error carrying per-field details
// under the "validation_errors" metadata key. An empty message falls back to
// the joined field messages.
func NewValidationErrors(message string, violations ValidationErrors) *AppError {
	if message == "" {
		message = violations.Error()
	}
	return NewValidationError(message).WithMetadata("validation_errors", violations)
}

// ErrorResponse is the body of a failed API request
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts any error to an API error response. Errors that
// are not an *AppError are reported as internal without their text.
func ToErrorResponse(err error, requestID string) ErrorResponse {
	appErr := Wrap(err, "")
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Metadata:  appErr.Metadata,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
