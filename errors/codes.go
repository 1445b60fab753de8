package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Work item and plan errors
const (
	// ErrCodeClassification indicates a malformed work item that cannot be profiled.
	ErrCodeClassification ErrorCode = "CLASSIFICATION_ERROR"
	// ErrCodePolicyInvalid indicates a policy document failed load-time validation.
	ErrCodePolicyInvalid ErrorCode = "POLICY_INVALID"
	// ErrCodePlanInvalid indicates a compiled or supplied plan is not a DAG.
	ErrCodePlanInvalid ErrorCode = "PLAN_INVALID"
	// ErrCodeStuckPlan indicates the executor could not make progress.
	ErrCodeStuckPlan ErrorCode = "STUCK_PLAN"
)

// Task errors
const (
	// ErrCodeTaskNotFound indicates no task is registered under a name.
	ErrCodeTaskNotFound ErrorCode = "TASK_NOT_FOUND"
	// ErrCodeTaskFailed indicates a task returned an error or panicked.
	ErrCodeTaskFailed ErrorCode = "TASK_FAILED"
	// ErrCodeTimeout indicates the task deadline elapsed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeUnavailable indicates a dependency is temporarily unavailable.
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Request errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeConflict indicates the resource is not in a state that allows the change.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeValidation indicates one or more field rules failed.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the bearer token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// ErrCodeInternal indicates an unexpected failure.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:     true,
	ErrCodeUnavailable: true,
	ErrCodeInternal:    false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
