// Package apperrors defines the error taxonomy shared by every layer of the
// service and the single JSON envelope all HTTP error responses use.
package apperrors

import (
	"fmt"
	"net/http"
)

// Error codes carried in the envelope. Validation maps to 400, not-found to
// 404, everything else to 500.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeResourceNotFound    = "RESOURCE_NOT_FOUND"
	CodeAIServiceError      = "AI_SERVICE_ERROR"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeConfigurationError  = "CONFIGURATION_ERROR"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// AppError is the one error type handlers turn into HTTP responses. Details
// is always non-nil so callers can attach context after construction.
type AppError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *AppError) Error() string {
	return e.Message
}

// AIErrorType returns the failure class an AI service error was tagged with
// (timeout, rate_limit, connection, ...), or "" for other errors.
func (e *AppError) AIErrorType() string {
	if v, ok := e.Details["ai_error_type"].(string); ok {
		return v
	}
	return ""
}

// Field returns the offending field or machine-readable code a validation
// error was tagged with, or "".
func (e *AppError) Field() string {
	if v, ok := e.Details["field"].(string); ok {
		return v
	}
	return ""
}

func newAppError(code, message string, details map[string]any) *AppError {
	if details == nil {
		details = map[string]any{}
	}
	return &AppError{Code: code, Message: message, Details: details}
}

// NewValidationError reports rejected input. field is a machine-readable
// code naming what failed; empty means no single field is to blame.
func NewValidationError(message, field string, details map[string]any) *AppError {
	e := newAppError(CodeValidationError, message, details)
	if field != "" {
		e.Details["field"] = field
	}
	return e
}

// NewResourceNotFoundError reports a missing entity by type and id.
func NewResourceNotFoundError(resourceType string, resourceID any) *AppError {
	return newAppError(CodeResourceNotFound,
		fmt.Sprintf("%s with id %v not found", resourceType, resourceID),
		map[string]any{
			"resource_type": resourceType,
			"resource_id":   fmt.Sprint(resourceID),
		})
}

// NewAIServiceError reports a model-provider failure. aiErrorType classifies
// it for retry decisions and client display.
func NewAIServiceError(message, aiErrorType string, details map[string]any) *AppError {
	e := newAppError(CodeAIServiceError, message, details)
	if aiErrorType != "" {
		e.Details["ai_error_type"] = aiErrorType
	}
	return e
}

// NewDatabaseError reports a persistence failure during the named operation.
func NewDatabaseError(message, operation string, details map[string]any) *AppError {
	e := newAppError(CodeDatabaseError, message, details)
	if operation != "" {
		e.Details["operation"] = operation
	}
	return e
}

// NewConfigurationError reports invalid or missing configuration.
func NewConfigurationError(message, configKey string, details map[string]any) *AppError {
	e := newAppError(CodeConfigurationError, message, details)
	if configKey != "" {
		e.Details["config_key"] = configKey
	}
	return e
}

// StatusCode maps an error code to its HTTP status.
func StatusCode(code string) int {
	switch code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeResourceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the client-facing message for a code. Validation and
// not-found errors describe user input and pass through unchanged; internal
// failure classes are replaced with generic text.
func UserMessage(code, original string) string {
	switch code {
	case CodeValidationError, CodeResourceNotFound:
		return original
	case CodeDatabaseError:
		return "A database error occurred. Please try again in a moment."
	case CodeAIServiceError:
		return "The AI service is temporarily unavailable. Please try again later."
	case CodeConfigurationError:
		return "A configuration error occurred. Please contact support."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
