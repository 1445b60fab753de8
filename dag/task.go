package dag

import (
	"context"

	"github.com/kbukum/reconflow/profile"
)

// Result is the structured output of one task invocation.
type Result map[string]any

// Task is a named unit of work the executor schedules. Implementations read
// upstream output through results and must not retain it past the call.
type Task interface {
	Name() string
	Invoke(ctx context.Context, item *profile.WorkItem, results Results) (Result, error)
}

// TaskFunc is the signature of a plain function task.
type TaskFunc func(ctx context.Context, item *profile.WorkItem, results Results) (Result, error)

// NewTask adapts fn into a Task called name.
func NewTask(name string, fn TaskFunc) Task {
	return &funcTask{name: name, fn: fn}
}

type funcTask struct {
	name string
	fn   TaskFunc
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Invoke(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
	return t.fn(ctx, item, results)
}
