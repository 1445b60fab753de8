package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/reconflow/component"
	"github.com/kbukum/reconflow/logger"
)

// Component loads the policy table at start-up. The table is loaded exactly
// once; there is no reload.
type Component struct {
	path string
	opts []Option
	log  *logger.Logger

	mu    sync.RWMutex
	table *Table
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent returns a component that loads path with opts on Start.
func NewComponent(path string, log *logger.Logger, opts ...Option) *Component {
	if log == nil {
		log = logger.NewNop()
	}
	return &Component{path: path, opts: opts, log: log.WithComponent("policy")}
}

// Name implements component.Component.
func (c *Component) Name() string { return "policy" }

// Start loads and freezes the table. A second Start fails.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table != nil {
		return fmt.Errorf("policy table already loaded from %s", c.table.Source())
	}
	t, err := Load(c.path, c.opts...)
	if err != nil {
		return err
	}
	c.table = t
	c.log.Info("policy table loaded", map[string]interface{}{
		"source":   t.Source(),
		"version":  t.Version(),
		"policies": t.Len(),
	})
	return nil
}

// Stop implements component.Component. The table stays readable.
func (c *Component) Stop(ctx context.Context) error { return nil }

// Health reports whether the table is loaded.
func (c *Component) Health(ctx context.Context) component.Health {
	t := c.Table()
	if t == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not loaded"}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d policies, version %s", t.Len(), t.Version()),
	}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := c.path
	if t := c.Table(); t != nil {
		details = fmt.Sprintf("%s v%s (%d policies)", c.path, t.Version(), t.Len())
	}
	return component.Description{Name: "Policy table", Type: "policy", Details: details}
}

// Table returns the loaded table, or nil before Start.
func (c *Component) Table() *Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}
