package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/kbukum/reconflow/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New().Required("category", "  ")
	if !v.HasErrors() {
		t.Fatal("expected error for blank value")
	}
	if v.Errors()[0].Field != "category" {
		t.Errorf("unexpected field %q", v.Errors()[0].Field)
	}
}

func TestValidatorMinAndRange(t *testing.T) {
	v := New()
	v.Min("max_parallel", 0, 1)
	v.FloatRange("confidence_threshold", 1.2, 0, 1)
	v.FloatRange("ok", 0.9, 0, 1)
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"AUTO_RESOLVE", "HIL_REVIEW"}
	if New().OneOf("action", "HIL_REVIEW", allowed).HasErrors() {
		t.Error("expected allowed value to pass")
	}
	v := New().OneOf("action", "", allowed)
	if !v.HasErrors() {
		t.Error("expected empty value to fail")
	}
}

func TestValidatorMember(t *testing.T) {
	known := map[string]struct{}{"DECISIONING": {}}
	v := New()
	v.Member("stage_groups[0][0]", "DECISIONING", known, "task")
	v.Member("stage_groups[0][1]", "MYSTERY", known, "task")
	if len(v.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %v", v.Errors())
	}
	if !strings.Contains(v.Errors()[0].Message, `unknown task "MYSTERY"`) {
		t.Errorf("unexpected message %q", v.Errors()[0].Message)
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Validate() != nil {
		t.Error("expected nil for no errors")
	}
	v := New()
	v.AddError("a", "bad")
	v.AddErrorf("b", "bad %d", 2)
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
	}
	if appErr.Message != "a: bad; b: bad 2" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}

type side struct {
	Source string  `json:"source" validate:"required"`
	Amount float64 `json:"amount" validate:"finite"`
}

type item struct {
	ID      string `json:"break_id" validate:"required"`
	SystemA *side  `json:"system_a" validate:"required"`
}

func TestStructValidate(t *testing.T) {
	if err := Validate(item{ID: "B1", SystemA: &side{Source: "OMS", Amount: 10}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Validate(item{SystemA: &side{Amount: math.Inf(1)}})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"break_id: is required", "system_a.source: is required", "system_a.amount: must be a finite number"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestMerge(t *testing.T) {
	v := New()
	v.Merge("policies.DEFAULT.LOW", Validate(item{SystemA: &side{Source: "x"}}))
	if len(v.Errors()) != 1 || v.Errors()[0].Field != "policies.DEFAULT.LOW.break_id" {
		t.Errorf("unexpected merged errors %v", v.Errors())
	}
	v.Merge("", nil)
	if len(v.Errors()) != 1 {
		t.Error("nil error must not add entries")
	}
}
