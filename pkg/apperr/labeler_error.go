package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"labeler_server/core/domain"
)

// Error codes
const (
	// Validation errors
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeMissingField     = "MISSING_FIELD"

	// Classifier errors
	CodeInsufficientData    = "INSUFFICIENT_DATA"
	CodeEvaluationParameter = "EVALUATION_PARAMETER_INVALID"

	// Resource errors
	CodeNotFound = "NOT_FOUND"

	// External errors
	CodePersistenceError = "PERSISTENCE_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeRateLimited   = "RATE_LIMITED"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// ValidationFailed reports caller input the core refused. It unwraps to domain.ErrValidation.
func ValidationFailed(message string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     domain.ErrValidation,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
		Err:     domain.ErrValidation,
	}
}

// Classifier errors
func InsufficientData(message string) *AppError {
	return &AppError{
		Code:    CodeInsufficientData,
		Message: message,
		Status:  http.StatusConflict,
		Err:     domain.ErrInsufficientData,
	}
}

func EvaluationParameter(field, reason string) *AppError {
	return &AppError{
		Code:    CodeEvaluationParameter,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
		Err:     domain.ErrEvaluationParameter,
	}
}

// PersistenceFailed wraps a store failure. errors.Is matches both domain.ErrPersistence and cause.
// A store reported as unavailable keeps its code and 503 status.
func PersistenceFailed(operation string, cause error) *AppError {
	e := &AppError{
		Code:    CodePersistenceError,
		Message: fmt.Sprintf("model store error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", domain.ErrPersistence, cause),
	}
	if HasCode(cause, CodeUnavailable) {
		e.Code = CodeUnavailable
		e.Status = http.StatusServiceUnavailable
	}
	return e
}

func Unavailable(service string, err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: fmt.Sprintf("service unavailable: %s", service),
		Status:  http.StatusServiceUnavailable,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

func RateLimited(retryAfter int) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "too many requests",
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"retry_after": retryAfter},
	}
}

// Internal errors
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
