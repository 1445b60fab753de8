package dag

import (
	"fmt"
	"sort"
	"sync"
)

// Registry provides named task lookup for plan execution.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds task under its own name, wrapped by middlewares in order.
// Registering the same name twice is an error.
func (r *Registry) Register(task Task, middlewares ...Middleware) error {
	if task == nil || task.Name() == "" {
		return fmt.Errorf("dag: task must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.Name()]; exists {
		return fmt.Errorf("dag: task %q already registered", task.Name())
	}
	r.tasks[task.Name()] = Chain(middlewares...)(task)
	return nil
}

// MustRegister is Register that panics on error. Intended for init-time wiring.
func (r *Registry) MustRegister(task Task, middlewares ...Middleware) {
	if err := r.Register(task, middlewares...); err != nil {
		panic(err)
	}
}

// Get retrieves a task by name.
func (r *Registry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// List returns sorted names of all registered tasks.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known returns the registered names as a set, for policy validation.
func (r *Registry) Known() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	known := make(map[string]struct{}, len(r.tasks))
	for name := range r.tasks {
		known[name] = struct{}{}
	}
	return known
}
