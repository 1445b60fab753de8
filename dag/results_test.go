package dag

import (
	"encoding/json"
	"testing"
)

func sampleResults() Results {
	return NewResults(map[string]Result{
		"RULES_TOLERANCE": {
			"within_tolerance": true,
			"difference_bps":   2.5,
			"checks":           []any{map[string]any{"name": "currency", "passed": true}},
		},
		"MATCHING_CORRELATION": {
			"confidence": json.Number("0.91"),
			"matches":    []map[string]any{{"score": 7}},
		},
	})
}

func TestResults_Lookup(t *testing.T) {
	r := sampleResults()
	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"RULES_TOLERANCE.within_tolerance", true, true},
		{"RULES_TOLERANCE.checks.0.name", "currency", true},
		{"MATCHING_CORRELATION.matches.0.score", 7, true},
		{"RULES_TOLERANCE.checks.3.name", nil, false},
		{"RULES_TOLERANCE.missing", nil, false},
		{"DECISIONING.decision", nil, false},
		{"RULES_TOLERANCE.within_tolerance.deeper", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.Lookup(tt.path)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResults_WholeTask(t *testing.T) {
	r := sampleResults()
	v, ok := r.Lookup("RULES_TOLERANCE")
	if !ok {
		t.Fatal("expected task lookup to succeed")
	}
	if _, isMap := v.(map[string]any); !isMap {
		t.Errorf("expected map, got %T", v)
	}
	if got := r.Tasks(); len(got) != 2 || got[0] != "MATCHING_CORRELATION" {
		t.Errorf("Tasks() = %v", got)
	}
}

func TestRead(t *testing.T) {
	r := sampleResults()

	conf, ok := Read(r, Port[float64]{Task: "MATCHING_CORRELATION", Field: "confidence"})
	if !ok || conf != 0.91 {
		t.Errorf("confidence = %v, %v", conf, ok)
	}
	score, ok := Read(r, Port[float64]{Task: "MATCHING_CORRELATION", Field: "matches.0.score"})
	if !ok || score != 7 {
		t.Errorf("score = %v, %v", score, ok)
	}
	bps, ok := Read(r, Port[int]{Task: "RULES_TOLERANCE", Field: "difference_bps"})
	if !ok || bps != 2 {
		t.Errorf("bps = %v, %v", bps, ok)
	}
	within, ok := Read(r, Port[bool]{Task: "RULES_TOLERANCE", Field: "within_tolerance"})
	if !ok || !within {
		t.Errorf("within = %v, %v", within, ok)
	}
	if _, ok := Read(r, Port[string]{Task: "RULES_TOLERANCE", Field: "within_tolerance"}); ok {
		t.Error("expected type mismatch to fail")
	}
}

func TestResults_SnapshotIsolation(t *testing.T) {
	var r Results
	r.set("A", Result{"x": 1})
	snap := r.snapshot()
	r.set("B", nil)
	if snap.Has("B") {
		t.Error("snapshot observed a later write")
	}
	if res, _ := r.Get("B"); res == nil {
		t.Error("nil results are stored as empty")
	}
}
