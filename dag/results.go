package dag

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Results is the read-only view of completed task output, keyed by task name.
// Only the executor writes it, and only between batches.
type Results struct {
	byTask map[string]Result
}

// NewResults returns a view over m. It is used by tests and condition tooling;
// the executor builds its own.
func NewResults(m map[string]Result) Results {
	byTask := make(map[string]Result, len(m))
	for k, v := range m {
		byTask[k] = v
	}
	return Results{byTask: byTask}
}

func (r *Results) set(task string, res Result) {
	if r.byTask == nil {
		r.byTask = make(map[string]Result)
	}
	if res == nil {
		res = Result{}
	}
	r.byTask[task] = res
}

// snapshot copies the index so a batch, or a task abandoned after its
// deadline, never observes later writes.
func (r Results) snapshot() Results {
	byTask := make(map[string]Result, len(r.byTask))
	for k, v := range r.byTask {
		byTask[k] = v
	}
	return Results{byTask: byTask}
}

// Get returns the result of task, if it completed.
func (r Results) Get(task string) (Result, bool) {
	res, ok := r.byTask[task]
	return res, ok
}

// Has reports whether task completed.
func (r Results) Has(task string) bool {
	_, ok := r.byTask[task]
	return ok
}

// Tasks returns the names of completed tasks, sorted.
func (r Results) Tasks() []string {
	names := make([]string, 0, len(r.byTask))
	for name := range r.byTask {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of completed tasks.
func (r Results) Len() int { return len(r.byTask) }

// Lookup resolves a dotted path whose first segment is a task name, for
// example "RULES_TOLERANCE.within_tolerance" or "MATCHING_CORRELATION.matches.0.score".
// Numeric segments index into slices.
func (r Results) Lookup(path string) (any, bool) {
	task, rest, _ := strings.Cut(path, ".")
	res, ok := r.byTask[task]
	if !ok {
		return nil, false
	}
	if rest == "" {
		return map[string]any(res), true
	}
	var cur any = map[string]any(res)
	for _, seg := range strings.Split(rest, ".") {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case Result:
		next, ok := v[seg]
		return next, ok
	case map[string]string:
		next, ok := v[seg]
		return next, ok
	case map[string]float64:
		next, ok := v[seg]
		return next, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case []map[string]any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case []string:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	}
	return nil, false
}

// Port is a typed reference to one field of a task's result.
type Port[T any] struct {
	Task  string
	Field string
}

// Path is the dotted lookup path of the port.
func (p Port[T]) Path() string {
	if p.Field == "" {
		return p.Task
	}
	return p.Task + "." + p.Field
}

// Read resolves port against results. Numbers are converted between numeric
// types; any other mismatch reports false.
func Read[T any](results Results, port Port[T]) (T, bool) {
	var zero T
	v, ok := results.Lookup(port.Path())
	if !ok {
		return zero, false
	}
	if typed, ok := v.(T); ok {
		return typed, true
	}
	if _, wantFloat := any(zero).(float64); wantFloat {
		if f, ok := toFloat(v); ok {
			return any(f).(T), true
		}
	}
	if _, wantInt := any(zero).(int); wantInt {
		if f, ok := toFloat(v); ok {
			return any(int(f)).(T), true
		}
	}
	return zero, false
}

// toFloat converts any Go or JSON numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
