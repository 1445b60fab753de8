package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestClassification(t *testing.T) {
	err := Classification("break_id", "id is required")
	if err.Code != ErrCodeClassification {
		t.Errorf("expected CLASSIFICATION_ERROR, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", err.HTTPStatus)
	}
	if err.Details["field"] != "break_id" {
		t.Errorf("expected field=break_id, got %v", err.Details["field"])
	}
	if !strings.Contains(err.Error(), "id is required") {
		t.Errorf("expected reason in message, got %q", err.Error())
	}
}

func TestPolicyInvalid_KeepsAllProblems(t *testing.T) {
	problems := []string{"a: unknown task X", "b: max_parallel must be >= 1"}
	err := PolicyInvalid("policies.yaml", problems)
	got, ok := err.Details["problems"].([]string)
	if !ok || len(got) != 2 {
		t.Fatalf("expected 2 problems in details, got %v", err.Details["problems"])
	}
	for _, p := range problems {
		if !strings.Contains(err.Message, p) {
			t.Errorf("message missing %q", p)
		}
	}
}

func TestStuckPlan(t *testing.T) {
	err := StuckPlan("PLAN-1", []string{"N2", "N3"})
	if err.Code != ErrCodeStuckPlan {
		t.Errorf("expected STUCK_PLAN, got %s", err.Code)
	}
	if !strings.Contains(err.Message, "2 node(s)") {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestTaskFailed_Unwrap(t *testing.T) {
	cause := fmt.Errorf("reference data unavailable")
	err := TaskFailed("DATA_ENRICHMENT", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Details["task"] != "DATA_ENRICHMENT" {
		t.Errorf("expected task detail, got %v", err.Details["task"])
	}
}

func TestHasCode(t *testing.T) {
	inner := Timeout("task RULES_TOLERANCE")
	outer := TaskFailed("RULES_TOLERANCE", inner)
	wrapped := fmt.Errorf("batch: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"outer code", outer, ErrCodeTaskFailed, true},
		{"cause code", outer, ErrCodeTimeout, true},
		{"through fmt wrap", wrapped, ErrCodeTimeout, true},
		{"absent", outer, ErrCodeNotFound, false},
		{"plain error", fmt.Errorf("boom"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Error("expected nil for nil error")
	}
	plain := fmt.Errorf("boom")
	got := From(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected internal wrapper, got %+v", got)
	}
	nf := NotFound("ticket", "T-1")
	if From(nf) != nf {
		t.Error("expected AppError to pass through unchanged")
	}
}

func TestStatusOf(t *testing.T) {
	if s := StatusOf(MissingField("break_type")); s != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", s)
	}
	if s := StatusOf(fmt.Errorf("plain")); s != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", s)
	}
}

func TestToResponse(t *testing.T) {
	resp := InvalidInput("system_a.amount", "must be finite").ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "system_a.amount" {
		t.Errorf("expected field detail, got %v", resp.Error.Details)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Internal(nil).WithDetail("plan_id", "PLAN-1").WithDetails(map[string]any{"node_id": "N1"})
	if err.Details["plan_id"] != "PLAN-1" || err.Details["node_id"] != "N1" {
		t.Errorf("unexpected details %v", err.Details)
	}
}
