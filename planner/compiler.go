package planner

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/policy"
	"github.com/kbukum/reconflow/profile"
)

// Optional task names with built-in inclusion predicates.
const (
	TaskMatchingCorrelation = "MATCHING_CORRELATION"
	TaskPatternIntelligence = "PATTERN_INTELLIGENCE"
)

// InclusionFunc decides whether an optional task joins the plan for a profile.
type InclusionFunc func(p profile.Profile) bool

// RequiresFlag includes a task when the profile carries flag.
func RequiresFlag(flag profile.Flag) InclusionFunc {
	return func(p profile.Profile) bool { return p.Flags.Has(flag) }
}

// DefaultInclusions gates correlation and deep-cause analysis on their flags.
func DefaultInclusions() map[string]InclusionFunc {
	return map[string]InclusionFunc{
		TaskMatchingCorrelation: RequiresFlag(profile.FlagRequiresCorrelation),
		TaskPatternIntelligence: RequiresFlag(profile.FlagRequiresDeepCause),
	}
}

// Compiler turns a profile and a policy into an executable plan.
type Compiler struct {
	inclusions map[string]InclusionFunc
	log        *logger.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithInclusion sets the inclusion predicate for an optional task. A nil fn
// removes it, so the task is always included.
func WithInclusion(task string, fn InclusionFunc) Option {
	return func(c *Compiler) {
		if fn == nil {
			delete(c.inclusions, task)
			return
		}
		c.inclusions[task] = fn
	}
}

// WithLogger sets the compiler logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// WithClock replaces time.Now for plan timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithIDGenerator replaces the plan ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Compiler) { c.newID = fn }
}

// NewCompiler returns a compiler with the default inclusion predicates.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		inclusions: DefaultInclusions(),
		log:        logger.NewNop(),
		now:        time.Now,
		newID:      NewPlanID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("planner")
	return c
}

// NewPlanID returns "PLAN-" followed by the first eight hex digits of a random UUID.
func NewPlanID() string {
	return "PLAN-" + strings.ToUpper(uuid.NewString()[:8])
}

// Selection explains the fate of one task named in a stage group.
type Selection struct {
	Task      string `json:"task"`
	Stage     int    `json:"stage"`
	Included  bool   `json:"included"`
	Mandatory bool   `json:"mandatory"`
	Reason    string `json:"reason"`
}

// Select walks the policy's stage groups and reports which tasks would be
// placed, in placement order, and why.
func (c *Compiler) Select(prof profile.Profile, pol *policy.Policy) []Selection {
	var out []Selection
	placed := make(map[string]bool)
	for s, group := range pol.StageGroups {
		for _, task := range group {
			sel := Selection{Task: task, Stage: s, Mandatory: pol.IsMandatory(task)}
			switch {
			case placed[task]:
				continue
			case sel.Mandatory:
				sel.Included = true
				sel.Reason = "mandatory"
			case !pol.IsOptional(task):
				sel.Reason = "neither mandatory nor optional under this policy"
			default:
				fn, ok := c.inclusions[task]
				switch {
				case !ok:
					sel.Included = true
					sel.Reason = "optional, no inclusion predicate"
				case fn(prof):
					sel.Included = true
					sel.Reason = "optional, inclusion predicate satisfied"
				default:
					sel.Reason = "optional, inclusion predicate not satisfied"
				}
			}
			if sel.Included {
				placed[task] = true
			}
			out = append(out, sel)
		}
	}
	return out
}

// Compile builds the plan for prof under pol. Each placed node depends on
// every node placed in the previous non-empty stage. Checkpoints whose tasks
// were all left out are dropped.
func (c *Compiler) Compile(prof profile.Profile, pol *policy.Policy) (*dag.Plan, error) {
	if pol == nil {
		return nil, errors.PlanInvalid("", "nil policy")
	}
	plan := &dag.Plan{
		ID:               c.newID(),
		Profile:          prof,
		Nodes:            []dag.TaskNode{},
		Checkpoints:      []dag.Checkpoint{},
		MaxParallel:      pol.MaxParallel,
		EarlyExitEnabled: pol.EarlyExitEnabled,
		PolicyID:         pol.ID,
		CreatedAt:        c.now(),
	}

	nodeByTask := make(map[string]string)
	var prev []string
	stage := -1
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			prev = cur
		}
		cur = nil
	}
	for _, sel := range c.Select(prof, pol) {
		if sel.Stage != stage {
			flush()
			stage = sel.Stage
		}
		if !sel.Included {
			continue
		}
		id := fmt.Sprintf("N%d", len(plan.Nodes)+1)
		plan.Nodes = append(plan.Nodes, dag.TaskNode{
			ID:        id,
			Task:      sel.Task,
			DependsOn: slices.Clone(prev),
			Mandatory: sel.Mandatory,
			Stage:     sel.Stage,
		})
		if plan.Nodes[len(plan.Nodes)-1].DependsOn == nil {
			plan.Nodes[len(plan.Nodes)-1].DependsOn = []string{}
		}
		nodeByTask[sel.Task] = id
		cur = append(cur, id)
	}

	for i, spec := range pol.Checkpoints {
		cpID := fmt.Sprintf("CP%d", i+1)
		var after []string
		var missing []string
		for _, task := range spec.AfterNodes {
			id, ok := nodeByTask[task]
			if !ok {
				missing = append(missing, task)
				continue
			}
			if !slices.Contains(after, id) {
				after = append(after, id)
			}
		}
		if len(after) == 0 {
			c.log.Info("checkpoint unreachable, dropped", map[string]interface{}{
				logger.FieldPlanID:       plan.ID,
				logger.FieldCheckpointID: cpID,
				"tasks":                  spec.AfterNodes,
			})
			continue
		}
		if len(missing) > 0 {
			c.log.Debug("checkpoint partially resolved", map[string]interface{}{
				logger.FieldPlanID:       plan.ID,
				logger.FieldCheckpointID: cpID,
				"missing":                missing,
			})
		}
		plan.Checkpoints = append(plan.Checkpoints, dag.Checkpoint{
			ID:                  cpID,
			AfterNodes:          after,
			Condition:           spec.Condition,
			Action:              spec.Action,
			ConfidenceThreshold: spec.Threshold(),
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	c.log.Debug("plan compiled", map[string]interface{}{
		logger.FieldPlanID:   plan.ID,
		logger.FieldCategory: prof.Category,
		logger.FieldRiskTier: prof.RiskTier,
		"policy":             pol.ID,
		"nodes":              len(plan.Nodes),
		"checkpoints":        len(plan.Checkpoints),
	})
	return plan, nil
}
