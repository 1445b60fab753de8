package dag

import (
	"time"
)

// Status is the lifecycle state of one node.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Resolved reports whether s is terminal. FAILED counts as resolved for
// dependency purposes.
func (s Status) Resolved() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Action is the terminal outcome of a plan.
type Action string

const (
	ActionAutoResolve Action = "AUTO_RESOLVE"
	ActionHILReview   Action = "HIL_REVIEW"
	ActionEscalate    Action = "ESCALATE"
	// ActionContinue is only meaningful on checkpoints: record and keep going.
	ActionContinue Action = "CONTINUE"
)

// Actions lists every valid action.
var Actions = []Action{ActionAutoResolve, ActionHILReview, ActionEscalate, ActionContinue}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Decision sources.
const (
	SourceCheckpoint = "checkpoint"
	SourceTask       = "task"
	SourceDefault    = "default"
)

// Skip and failure reasons recorded by the executor.
const (
	ReasonEarlyExit   = "early exit"
	ReasonUnreachable = "unreachable"
	ReasonCanceled    = "canceled"
)

// Decision is the final verdict for a work item.
type Decision struct {
	Action       Action         `json:"action"`
	Confidence   float64        `json:"confidence"`
	Explanation  string         `json:"explanation"`
	Source       string         `json:"source"`
	CheckpointID string         `json:"checkpoint_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// DefaultDecision is used when no checkpoint fired and no decision task completed.
func DefaultDecision() Decision {
	return Decision{
		Action:      ActionHILReview,
		Confidence:  0.5,
		Explanation: "insufficient information",
		Source:      SourceDefault,
	}
}

// NodeExecution is the terminal record of one node.
type NodeExecution struct {
	NodeID      string        `json:"node_id"`
	Task        string        `json:"task_name"`
	Status      Status        `json:"status"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
	Duration    time.Duration `json:"duration_ns"`
	Result      Result        `json:"result,omitempty"`
	Err         error         `json:"-"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	SkipReason  string        `json:"skip_reason,omitempty"`
	Batch       int           `json:"batch,omitempty"`
}

// CheckpointOutcome records one checkpoint evaluation.
type CheckpointOutcome struct {
	CheckpointID string    `json:"checkpoint_id"`
	Condition    string    `json:"condition"`
	Action       Action    `json:"action"`
	Satisfied    bool      `json:"satisfied"`
	Batch        int       `json:"batch"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// ExecutionGraph is the full record of one plan execution.
type ExecutionGraph struct {
	PlanID           string              `json:"plan_id"`
	WorkItemID       string              `json:"work_item_id"`
	Executions       []NodeExecution     `json:"node_executions"`
	Checkpoints      []CheckpointOutcome `json:"checkpoints"`
	Decision         Decision            `json:"decision"`
	EarlyExit        bool                `json:"early_exit"`
	EarlyExitReason  string              `json:"early_exit_reason,omitempty"`
	Incomplete       bool                `json:"incomplete"`
	IncompleteReason string              `json:"incomplete_reason,omitempty"`
	Planned          int                 `json:"planned"`
	AgentsInvoked    int                 `json:"agents_invoked"`
	AgentsSkipped    int                 `json:"agents_skipped"`
	Batches          int                 `json:"batches"`
	StartedAt        time.Time           `json:"started_at"`
	CompletedAt      time.Time           `json:"completed_at"`
	TotalDuration    time.Duration       `json:"total_duration_ns"`
}

// Efficiency is the share of planned nodes that were invoked, in percent.
// An empty plan is 100.
func (g *ExecutionGraph) Efficiency() float64 {
	if g.Planned == 0 {
		return 100
	}
	return float64(g.AgentsInvoked) / float64(g.Planned) * 100
}

// Execution returns the record for nodeID.
func (g *ExecutionGraph) Execution(nodeID string) (NodeExecution, bool) {
	for _, e := range g.Executions {
		if e.NodeID == nodeID {
			return e, true
		}
	}
	return NodeExecution{}, false
}

// CountStatus counts executions in status s.
func (g *ExecutionGraph) CountStatus(s Status) int {
	n := 0
	for _, e := range g.Executions {
		if e.Status == s {
			n++
		}
	}
	return n
}
