package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func jsonLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: "json"}
	return NewWithWriter(cfg, "reconflow", &buf), &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	l, buf := jsonLogger("debug")
	l.WithComponent("executor").Info("batch complete", Fields(FieldPlanID, "PLAN-1", "size", 3))

	entry := lastEntry(t, buf)
	if entry["message"] != "batch complete" {
		t.Errorf("expected message, got %v", entry["message"])
	}
	if entry[FieldComponent] != "executor" {
		t.Errorf("expected component=executor, got %v", entry[FieldComponent])
	}
	if entry[FieldPlanID] != "PLAN-1" {
		t.Errorf("expected plan_id, got %v", entry[FieldPlanID])
	}
	if entry["service"] != "reconflow" {
		t.Errorf("expected service tag, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := jsonLogger("warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if lastEntry(t, buf)["message"] != "kept" {
		t.Error("expected warn entry")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	l, buf := jsonLogger("invalid-level")
	l.Info("still logs")
	if buf.Len() == 0 {
		t.Fatal("expected fallback to info level")
	}
}

func TestWithContext(t *testing.T) {
	l, buf := jsonLogger("info")
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithWorkItem(ctx, "BRK-001")
	l.WithContext(ctx).Info("processing")

	entry := lastEntry(t, buf)
	if entry[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id, got %v", entry[FieldRequestID])
	}
	if entry[FieldWorkItemID] != "BRK-001" {
		t.Errorf("expected work_item_id, got %v", entry[FieldWorkItemID])
	}
	if RequestIDFromContext(ctx) != "req-1" {
		t.Error("expected request id round trip")
	}
}

func TestWithError(t *testing.T) {
	l, buf := jsonLogger("info")
	l.WithError(fmt.Errorf("boom")).Error("failed")
	if lastEntry(t, buf)["error"] != "boom" {
		t.Error("expected error field")
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.WithComponent("x").Warn("nothing")
}

func TestInitResetsRegistry(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	Register("planner", NewNop())
	Init(Config{Level: "info", Format: "json"}, "reconflow")
	if Get("planner") == nil {
		t.Fatal("expected a logger for unregistered name")
	}
	registry.mu.RLock()
	_, ok := registry.loggers["planner"]
	registry.mu.RUnlock()
	if ok {
		t.Error("expected Init to clear registered loggers")
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewNop()
	Register("custom", l)
	if Get("custom") != l {
		t.Error("expected registered logger")
	}
}

func TestRegisterDefaults(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l, buf := jsonLogger("info")
	SetGlobalLogger(l)
	RegisterDefaults("executor", "orchestrator")

	pinned := Get("executor")
	if Get("executor") != pinned {
		t.Error("expected the registered logger to be reused")
	}
	pinned.Info("batch started")
	if entry := lastEntry(t, buf); entry[FieldComponent] != "executor" {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	Get("orchestrator").Info("report built")
	if entry := lastEntry(t, buf); entry[FieldComponent] != "orchestrator" {
		t.Errorf("component = %v", entry[FieldComponent])
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"bad level", Config{Level: "loud", Format: "json"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields %v", m)
	}
	if len(m) != 2 {
		t.Errorf("expected 2 entries, got %d", len(m))
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("execute", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
	e := ErrorFields("execute", fmt.Errorf("x"))
	if e[FieldError] != "x" {
		t.Errorf("expected error field, got %v", e)
	}
}
