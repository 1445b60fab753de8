package recon

import (
	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/store"
)

// Deps are the collaborators the tasks need.
type Deps struct {
	Settings  Settings
	Reference Reference
	Store     store.Repository
}

// Tasks builds one instance of every reconciliation task. Zero Settings are
// replaced by DefaultSettings.
func Tasks(deps Deps) []dag.Task {
	if deps.Settings == (Settings{}) {
		deps.Settings = DefaultSettings()
	}
	return []dag.Task{
		Ingestion{},
		Enrichment{Reference: deps.Reference},
		Matching{Settings: deps.Settings},
		Rules{Settings: deps.Settings},
		Pattern{},
		Decisioning{Settings: deps.Settings},
		Workflow{Store: deps.Store},
	}
}

// MiddlewareFunc returns the middleware chain for the named task.
type MiddlewareFunc func(task string) []dag.Middleware

// Register adds every task to reg. middleware may be nil.
func Register(reg *dag.Registry, deps Deps, middleware MiddlewareFunc) error {
	for _, t := range Tasks(deps) {
		var mws []dag.Middleware
		if middleware != nil {
			mws = middleware(t.Name())
		}
		if err := reg.Register(t, mws...); err != nil {
			return err
		}
	}
	return nil
}
