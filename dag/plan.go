package dag

import (
	"fmt"
	"time"

	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/profile"
)

// TaskNode is one scheduled invocation of a named task.
type TaskNode struct {
	ID        string   `json:"node_id" yaml:"node_id"`
	Task      string   `json:"task_name" yaml:"task_name"`
	DependsOn []string `json:"depends_on" yaml:"depends_on"`
	Mandatory bool     `json:"is_mandatory" yaml:"is_mandatory"`
	// Stage is the index of the policy stage group the node came from.
	Stage int `json:"stage" yaml:"stage"`
}

// Checkpoint is evaluated once all of AfterNodes are resolved.
type Checkpoint struct {
	ID                  string    `json:"checkpoint_id" yaml:"checkpoint_id"`
	AfterNodes          []string  `json:"after_nodes" yaml:"after_nodes"`
	Condition           Condition `json:"condition" yaml:"condition"`
	Action              Action    `json:"action" yaml:"action"`
	ConfidenceThreshold float64   `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// Plan is a compiled, executable DAG for one work item.
type Plan struct {
	ID               string          `json:"plan_id"`
	Profile          profile.Profile `json:"profile"`
	Nodes            []TaskNode      `json:"nodes"`
	Checkpoints      []Checkpoint    `json:"checkpoints"`
	MaxParallel      int             `json:"max_parallel"`
	EarlyExitEnabled bool            `json:"early_exit_enabled"`
	PolicyID         string          `json:"policy_id,omitempty"`
	PolicySource     string          `json:"policy_source,omitempty"`
	PolicyVersion    string          `json:"policy_version,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Node returns the node with id.
func (p *Plan) Node(id string) (TaskNode, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return TaskNode{}, false
}

// Graph projects the plan onto a Graph for level analysis.
func (p *Plan) Graph() *Graph {
	g := &Graph{Nodes: make([]string, 0, len(p.Nodes))}
	for _, n := range p.Nodes {
		g.Nodes = append(g.Nodes, n.ID)
		for _, dep := range n.DependsOn {
			g.Edges = append(g.Edges, Edge{From: dep, To: n.ID})
		}
	}
	return g
}

// Stages returns the node IDs grouped by dependency level.
func (p *Plan) Stages() ([][]string, error) {
	return BuildLevels(p.Graph())
}

// TaskNames lists the plan's task names in node order.
func (p *Plan) TaskNames() []string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Task
	}
	return names
}

// Validate checks that node IDs are unique, every dependency points to an
// earlier node, the graph is acyclic and checkpoints reference real nodes.
// The executor runs plans that fail the dependency checks and reports them
// as stuck.
func (p *Plan) Validate() error {
	if p.MaxParallel < 1 {
		return errors.PlanInvalid(p.ID, fmt.Sprintf("max_parallel must be >= 1, got %d", p.MaxParallel))
	}
	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			return errors.PlanInvalid(p.ID, "node with empty id")
		}
		if n.Task == "" {
			return errors.PlanInvalid(p.ID, fmt.Sprintf("node %s has no task", n.ID))
		}
		if seen[n.ID] {
			return errors.PlanInvalid(p.ID, fmt.Sprintf("duplicate node id %s", n.ID))
		}
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return errors.PlanInvalid(p.ID, fmt.Sprintf("node %s depends on %s which is not an earlier node", n.ID, dep))
			}
		}
		seen[n.ID] = true
	}
	if _, err := BuildLevels(p.Graph()); err != nil {
		return errors.PlanInvalid(p.ID, err.Error())
	}
	for _, cp := range p.Checkpoints {
		if !cp.Action.Valid() {
			return errors.PlanInvalid(p.ID, fmt.Sprintf("checkpoint %s has unknown action %q", cp.ID, cp.Action))
		}
		for _, id := range cp.AfterNodes {
			if !seen[id] {
				return errors.PlanInvalid(p.ID, fmt.Sprintf("checkpoint %s references unknown node %s", cp.ID, id))
			}
		}
	}
	return nil
}
