package policy

import (
	"slices"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// DefaultCategory is the category consulted when a category has no entry for
// the requested tier.
const DefaultCategory = "DEFAULT"

// DefaultConfidenceThreshold applies to checkpoints that do not set one.
const DefaultConfidenceThreshold = 0.9

// Source says which fallback level served a lookup.
type Source string

const (
	SourceExact           Source = "exact"
	SourceDefaultCategory Source = "default_category"
	SourceBuiltin         Source = "builtin"
)

// CheckpointSpec is a checkpoint as written in the policy file. AfterNodes
// holds task names; the compiler resolves them to node IDs.
type CheckpointSpec struct {
	AfterNodes          []string      `yaml:"after_nodes" json:"after_nodes"`
	Condition           dag.Condition `yaml:"condition" json:"condition"`
	Action              dag.Action    `yaml:"action" json:"action"`
	ConfidenceThreshold *float64      `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`
}

// Threshold returns the configured threshold or DefaultConfidenceThreshold.
func (c CheckpointSpec) Threshold() float64 {
	if c.ConfidenceThreshold == nil {
		return DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// Policy describes the plan shape for one (category, tier).
type Policy struct {
	ID               string           `yaml:"-" json:"policy_id"`
	Category         string           `yaml:"-" json:"category"`
	Tier             profile.RiskTier `yaml:"-" json:"risk_tier,omitempty"`
	Description      string           `yaml:"description,omitempty" json:"description,omitempty"`
	MandatoryTasks   []string         `yaml:"mandatory_tasks" json:"mandatory_tasks"`
	OptionalTasks    []string         `yaml:"optional_tasks" json:"optional_tasks"`
	StageGroups      [][]string       `yaml:"stage_groups" json:"stage_groups"`
	Checkpoints      []CheckpointSpec `yaml:"decision_checkpoints" json:"decision_checkpoints"`
	MaxParallel      int              `yaml:"max_parallel" json:"max_parallel"`
	EarlyExitEnabled bool             `yaml:"early_exit_enabled" json:"early_exit_enabled"`
}

// IsMandatory reports whether task is mandatory under p.
func (p *Policy) IsMandatory(task string) bool {
	return slices.Contains(p.MandatoryTasks, task)
}

// IsOptional reports whether task is optional under p.
func (p *Policy) IsOptional(task string) bool {
	return slices.Contains(p.OptionalTasks, task)
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.MandatoryTasks = slices.Clone(p.MandatoryTasks)
	c.OptionalTasks = slices.Clone(p.OptionalTasks)
	c.StageGroups = make([][]string, len(p.StageGroups))
	for i, g := range p.StageGroups {
		c.StageGroups[i] = slices.Clone(g)
	}
	c.Checkpoints = make([]CheckpointSpec, len(p.Checkpoints))
	for i, cp := range p.Checkpoints {
		cp.AfterNodes = slices.Clone(cp.AfterNodes)
		if cp.ConfidenceThreshold != nil {
			th := *cp.ConfidenceThreshold
			cp.ConfidenceThreshold = &th
		}
		if cp.Condition.Expr != nil {
			e := cloneExpr(*cp.Condition.Expr)
			cp.Condition.Expr = &e
		}
		c.Checkpoints[i] = cp
	}
	return &c
}

func cloneExpr(e dag.Expr) dag.Expr {
	out := e
	out.All = make([]dag.Expr, len(e.All))
	for i, sub := range e.All {
		out.All[i] = cloneExpr(sub)
	}
	out.Any = make([]dag.Expr, len(e.Any))
	for i, sub := range e.Any {
		out.Any[i] = cloneExpr(sub)
	}
	if len(e.All) == 0 {
		out.All = nil
	}
	if len(e.Any) == 0 {
		out.Any = nil
	}
	return out
}

// Builtin task names used by the minimal fallback policy.
const (
	TaskBreakIngestion      = "BREAK_INGESTION"
	TaskDataEnrichment      = "DATA_ENRICHMENT"
	TaskMatchingCorrelation = "MATCHING_CORRELATION"
	TaskRulesTolerance      = "RULES_TOLERANCE"
	TaskPatternIntelligence = "PATTERN_INTELLIGENCE"
	TaskDecisioning         = "DECISIONING"
	TaskWorkflowFeedback    = "WORKFLOW_FEEDBACK"
)

// StandardTasks returns the reconciliation pipeline task names. Tables are
// checked against them when neither WithKnownTasks nor a tasks list is given.
func StandardTasks() map[string]struct{} {
	return map[string]struct{}{
		TaskBreakIngestion:      {},
		TaskDataEnrichment:      {},
		TaskMatchingCorrelation: {},
		TaskRulesTolerance:      {},
		TaskPatternIntelligence: {},
		TaskDecisioning:         {},
		TaskWorkflowFeedback:    {},
	}
}

// BuiltinPolicy is the last-resort policy: ingest, enrich, decide, one task
// per stage, no checkpoints.
func BuiltinPolicy() *Policy {
	return &Policy{
		ID:             "BUILTIN",
		Category:       "BUILTIN",
		Description:    "minimal fallback policy",
		MandatoryTasks: []string{TaskBreakIngestion, TaskDataEnrichment, TaskDecisioning},
		OptionalTasks:  []string{},
		StageGroups: [][]string{
			{TaskBreakIngestion},
			{TaskDataEnrichment},
			{TaskDecisioning},
		},
		Checkpoints:      []CheckpointSpec{},
		MaxParallel:      1,
		EarlyExitEnabled: false,
	}
}

// Document is the on-disk policy file.
type Document struct {
	Version string `yaml:"version"`
	// Tasks optionally declares the task names the file may reference.
	Tasks    []string                      `yaml:"tasks,omitempty"`
	Policies map[string]map[string]*Policy `yaml:"policies"`
}
