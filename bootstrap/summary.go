package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/reconflow/component"
)

// ComponentSummary describes one started component.
type ComponentSummary struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type,omitempty"`
	Details string                 `json:"details,omitempty"`
	Status  component.HealthStatus `json:"status"`
	Message string                 `json:"message,omitempty"`
}

// Summary is what the application reports once it is ready.
type Summary struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Startup    time.Duration      `json:"startup_ns"`
	Components []ComponentSummary `json:"components"`
}

// Summarize collects descriptions and health from the component registry.
func (a *App[C]) Summarize(ctx context.Context) Summary {
	s := Summary{Name: a.Name, Version: a.Version, Startup: a.startupDuration, Components: []ComponentSummary{}}
	health := map[string]component.Health{}
	for _, h := range a.Components.HealthAll(ctx) {
		health[h.Name] = h
	}
	for _, c := range a.Components.All() {
		cs := ComponentSummary{Name: c.Name()}
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				cs.Name = desc.Name
			}
			cs.Type = desc.Type
			cs.Details = desc.Details
		}
		h := health[c.Name()]
		cs.Status = h.Status
		cs.Message = h.Message
		s.Components = append(s.Components, cs)
	}
	return s
}

func (a *App[C]) logSummary(ctx context.Context) {
	s := a.Summarize(ctx)
	for _, c := range s.Components {
		a.Logger.Debug("Component ready", map[string]interface{}{
			"name":    c.Name,
			"type":    c.Type,
			"details": c.Details,
			"status":  c.Status,
		})
	}
	a.Logger.Info("Application ready", map[string]interface{}{
		"name":       s.Name,
		"version":    s.Version,
		"components": len(s.Components),
		"startup_ms": s.Startup.Milliseconds(),
	})
}
