package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/planner"
	"github.com/kbukum/reconflow/profile"
)

// PlanSummary counts planned, invoked and skipped nodes.
type PlanSummary struct {
	Planned int `json:"planned"`
	Invoked int `json:"invoked"`
	Skipped int `json:"skipped"`
}

// Report is the externally visible record of one processed work item.
type Report struct {
	WorkItemID         string                  `json:"work_item_id"`
	Profile            profile.Profile         `json:"profile"`
	PlanID             string                  `json:"plan_id"`
	PolicyID           string                  `json:"policy_id"`
	PolicySource       string                  `json:"policy_source"`
	PolicyVersion      string                  `json:"policy_version,omitempty"`
	PlanSummary        PlanSummary             `json:"plan_summary"`
	Nodes              []dag.TaskNode          `json:"nodes"`
	Checkpoints        []dag.Checkpoint        `json:"checkpoints"`
	CheckpointOutcomes []dag.CheckpointOutcome `json:"checkpoint_outcomes"`
	NodeExecutions     []dag.NodeExecution     `json:"node_executions"`
	Decision           dag.Decision            `json:"decision"`
	EarlyExit          bool                    `json:"early_exit"`
	EarlyExitReason    string                  `json:"early_exit_reason,omitempty"`
	Incomplete         bool                    `json:"incomplete"`
	IncompleteReason   string                  `json:"incomplete_reason,omitempty"`
	EfficiencyPercent  float64                 `json:"efficiency_percent"`
	TotalDurationMs    float64                 `json:"total_duration_ms"`
	Reasoning          Reasoning               `json:"reasoning"`
}

// Preview is the result of a dry run: the compiled plan and the reasoning
// behind it, without execution.
type Preview struct {
	WorkItemID        string                  `json:"work_item_id"`
	Profile           profile.Profile         `json:"profile"`
	Plan              *dag.Plan               `json:"plan"`
	Classification    ClassificationReasoning `json:"classification_reasoning"`
	AgentSelection    SelectionReasoning      `json:"agent_selection_reasoning"`
	ExecutionStrategy StrategyReasoning       `json:"execution_strategy"`
}

// Reasoning explains each routing step.
type Reasoning struct {
	Classification    ClassificationReasoning `json:"classification_reasoning"`
	AgentSelection    SelectionReasoning      `json:"agent_selection_reasoning"`
	ExecutionStrategy StrategyReasoning       `json:"execution_strategy"`
	Skips             SkipReasoning           `json:"skip_reasoning"`
	Checkpoints       CheckpointReasoning     `json:"checkpoint_reasoning"`
}

type ClassificationReasoning struct {
	Category   string           `json:"category"`
	RiskTier   profile.RiskTier `json:"risk_tier"`
	Magnitude  float64          `json:"magnitude"`
	AssetClass string           `json:"asset_class"`
	Reasons    []string         `json:"reasons"`
	Summary    string           `json:"summary"`
}

type SelectionReasoning struct {
	Selected   []string            `json:"selected"`
	Excluded   []string            `json:"excluded"`
	Selections []planner.Selection `json:"selections"`
	Summary    string              `json:"summary"`
}

type Stage struct {
	Stage       int      `json:"stage"`
	Tasks       []string `json:"tasks"`
	Parallel    bool     `json:"parallel"`
	Description string   `json:"description"`
}

type StrategyReasoning struct {
	Stages           []Stage  `json:"stages"`
	TotalStages      int      `json:"total_stages"`
	MaxParallel      int      `json:"max_parallel"`
	EarlyExitEnabled bool     `json:"early_exit_enabled"`
	Reasons          []string `json:"reasons"`
	Summary          string   `json:"summary"`
}

type SkipReasoning struct {
	Count   int      `json:"skipped_count"`
	Tasks   []string `json:"skipped_tasks"`
	Reasons []string `json:"reasons"`
	Summary string   `json:"summary"`
}

type CheckpointReasoning struct {
	Count           int      `json:"checkpoint_count"`
	EarlyExit       bool     `json:"early_exit"`
	EarlyExitReason string   `json:"early_exit_reason,omitempty"`
	Reasons         []string `json:"reasons"`
	Summary         string   `json:"summary"`
}

func explainClassification(p profile.Profile) ClassificationReasoning {
	return ClassificationReasoning{
		Category:   p.Category,
		RiskTier:   p.RiskTier,
		Magnitude:  p.Magnitude,
		AssetClass: p.AssetClass,
		Reasons:    nonNil(p.Reasons),
		Summary:    fmt.Sprintf("%s classified as %s risk with magnitude %.2f", p.Category, p.RiskTier, p.Magnitude),
	}
}

func explainSelection(p profile.Profile, sels []planner.Selection) SelectionReasoning {
	r := SelectionReasoning{Selected: []string{}, Excluded: []string{}, Selections: sels}
	if r.Selections == nil {
		r.Selections = []planner.Selection{}
	}
	for _, s := range sels {
		if s.Included {
			r.Selected = append(r.Selected, s.Task)
		} else {
			r.Excluded = append(r.Excluded, s.Task)
		}
	}
	r.Summary = fmt.Sprintf("selected %d of %d tasks for %s (%s risk)",
		len(r.Selected), len(r.Selected)+len(r.Excluded), p.Category, p.RiskTier)
	return r
}

func explainStrategy(plan *dag.Plan) StrategyReasoning {
	r := StrategyReasoning{
		Stages:           []Stage{},
		MaxParallel:      plan.MaxParallel,
		EarlyExitEnabled: plan.EarlyExitEnabled,
	}
	levels, err := plan.Stages()
	if err != nil {
		r.Reasons = []string{"plan has no valid stage order: " + err.Error()}
		r.Summary = "no execution order"
		return r
	}
	for i, ids := range levels {
		tasks := make([]string, len(ids))
		for j, id := range ids {
			n, _ := plan.Node(id)
			tasks[j] = n.Task
		}
		r.Stages = append(r.Stages, Stage{
			Stage:       i + 1,
			Tasks:       tasks,
			Parallel:    len(tasks) > 1,
			Description: fmt.Sprintf("Stage %d: %s", i+1, strings.Join(tasks, " || ")),
		})
	}
	r.TotalStages = len(r.Stages)
	exit := "disabled"
	if plan.EarlyExitEnabled {
		exit = "enabled"
	}
	r.Reasons = []string{
		fmt.Sprintf("execution planned in %d stages", r.TotalStages),
		fmt.Sprintf("at most %d tasks run in parallel", plan.MaxParallel),
		"early exit " + exit,
		fmt.Sprintf("%d decision checkpoints", len(plan.Checkpoints)),
	}
	r.Summary = fmt.Sprintf("%d stages with up to %d parallel tasks", r.TotalStages, plan.MaxParallel)
	return r
}

func explainSkips(g *dag.ExecutionGraph) SkipReasoning {
	r := SkipReasoning{Tasks: []string{}, Reasons: []string{}}
	for _, e := range g.Executions {
		if e.Status != dag.StatusSkipped {
			continue
		}
		r.Tasks = append(r.Tasks, e.Task)
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s: %s", e.Task, e.SkipReason))
	}
	r.Count = len(r.Tasks)
	if r.Count == 0 {
		r.Summary = "no tasks were skipped"
	} else {
		r.Summary = fmt.Sprintf("%d tasks skipped during execution", r.Count)
	}
	return r
}

func explainCheckpoints(plan *dag.Plan, g *dag.ExecutionGraph) CheckpointReasoning {
	r := CheckpointReasoning{Count: len(plan.Checkpoints), EarlyExit: g.EarlyExit, Reasons: []string{}}
	if r.Count == 0 {
		r.Summary = "no decision checkpoints configured"
		return r
	}
	for _, cp := range plan.Checkpoints {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s after %v: if %s then %s", cp.ID, cp.AfterNodes, cp.Condition, cp.Action))
	}
	for _, o := range g.Checkpoints {
		verdict := "not satisfied"
		if o.Satisfied {
			verdict = "satisfied"
		}
		r.Reasons = append(r.Reasons, fmt.Sprintf("%s evaluated after batch %d: %s", o.CheckpointID, o.Batch, verdict))
	}
	if g.EarlyExit {
		r.EarlyExitReason = g.EarlyExitReason
		r.Reasons = append(r.Reasons, "early exit: "+g.EarlyExitReason)
	} else {
		r.Reasons = append(r.Reasons, "no early exit")
	}
	r.Summary = fmt.Sprintf("%d checkpoints configured, early exit: %t", r.Count, g.EarlyExit)
	return r
}

func newReport(plan *dag.Plan, g *dag.ExecutionGraph, sels []planner.Selection) *Report {
	return &Report{
		WorkItemID:    g.WorkItemID,
		Profile:       plan.Profile,
		PlanID:        plan.ID,
		PolicyID:      plan.PolicyID,
		PolicySource:  plan.PolicySource,
		PolicyVersion: plan.PolicyVersion,
		PlanSummary: PlanSummary{
			Planned: g.Planned,
			Invoked: g.AgentsInvoked,
			Skipped: g.AgentsSkipped,
		},
		Nodes:              plan.Nodes,
		Checkpoints:        plan.Checkpoints,
		CheckpointOutcomes: nonNil(g.Checkpoints),
		NodeExecutions:     nonNil(g.Executions),
		Decision:           g.Decision,
		EarlyExit:          g.EarlyExit,
		EarlyExitReason:    g.EarlyExitReason,
		Incomplete:         g.Incomplete,
		IncompleteReason:   g.IncompleteReason,
		EfficiencyPercent:  roundTo(g.Efficiency(), 1),
		TotalDurationMs:    roundTo(float64(g.TotalDuration)/float64(time.Millisecond), 3),
		Reasoning: Reasoning{
			Classification:    explainClassification(plan.Profile),
			AgentSelection:    explainSelection(plan.Profile, sels),
			ExecutionStrategy: explainStrategy(plan),
			Skips:             explainSkips(g),
			Checkpoints:       explainCheckpoints(plan, g),
		},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
