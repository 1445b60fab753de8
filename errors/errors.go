// Package errors provides the structured error type shared by the engine,
// with stable codes, HTTP status mapping and retryable detection.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Engine errors ---

// Classification reports a work item that cannot be profiled.
func Classification(field, reason string) *AppError {
	details := map[string]any{}
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeClassification, Message: fmt.Sprintf("Cannot classify work item: %s", reason),
		HTTPStatus: http.StatusUnprocessableEntity, Details: details,
	}
}

// PolicyInvalid reports policy documents that failed validation. Every
// problem is kept in Details["problems"].
func PolicyInvalid(source string, problems []string) *AppError {
	msg := fmt.Sprintf("Policy source %s is invalid", source)
	if len(problems) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(problems, "; "))
	}
	return &AppError{
		Code: ErrCodePolicyInvalid, Message: msg,
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"source": source, "problems": problems},
	}
}

// PlanInvalid reports a plan whose dependency graph is unusable.
func PlanInvalid(planID, reason string) *AppError {
	return &AppError{
		Code: ErrCodePlanInvalid, Message: fmt.Sprintf("Plan %s is invalid: %s", planID, reason),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"plan_id": planID},
	}
}

// StuckPlan reports nodes left unresolved because no dependency could be satisfied.
func StuckPlan(planID string, nodeIDs []string) *AppError {
	return &AppError{
		Code: ErrCodeStuckPlan, Message: fmt.Sprintf("Plan %s made no progress with %d node(s) pending", planID, len(nodeIDs)),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"plan_id": planID, "nodes": nodeIDs},
	}
}

// TaskNotFound reports a plan node naming an unregistered task.
func TaskNotFound(name string) *AppError {
	return &AppError{
		Code: ErrCodeTaskNotFound, Message: fmt.Sprintf("No task registered as %s", name),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"task": name},
	}
}

// TaskFailed wraps an error returned by a task invocation.
func TaskFailed(name string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTaskFailed, Message: fmt.Sprintf("Task %s failed", name),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"task": name}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that exceeded its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s exceeded its deadline", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Unavailable creates a new AppError for a dependency that is temporarily unavailable.
func Unavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// --- Request errors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// Conflict creates a new AppError for a change the resource's state forbids.
func Conflict(resource, id, reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: fmt.Sprintf("The %s %s %s.", resource, id, reason),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource, "id": id},
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeValidation, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidToken creates a new AppError for an invalid bearer token.
func InvalidToken() *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "Invalid authentication token.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
