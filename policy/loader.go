package policy

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/validation"
)

// Option configures table construction.
type Option func(*options)

type options struct {
	known      map[string]struct{}
	conditions *dag.Conditions
	fallback   *Policy
	fallbackOK bool
}

// WithKnownTasks restricts task names to known, typically dag.Registry.Known().
func WithKnownTasks(known map[string]struct{}) Option {
	return func(o *options) { o.known = known }
}

// WithConditions sets the registry checkpoint condition names are checked against.
func WithConditions(c *dag.Conditions) Option {
	return func(o *options) { o.conditions = c }
}

// WithFallback replaces the built-in fallback policy. Passing nil is a
// configuration error reported by NewTable.
func WithFallback(p *Policy) Option {
	return func(o *options) {
		o.fallback = p
		o.fallbackOK = true
	}
}

// Load reads and validates the policy file at path.
func Load(path string, opts ...Option) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.PolicyInvalid(path, []string{err.Error()}).WithCause(err)
	}
	return Parse(data, path, opts...)
}

// Parse decodes a policy document, rejecting unknown keys, and validates it.
func Parse(data []byte, source string, opts ...Option) (*Table, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.PolicyInvalid(source, []string{err.Error()}).WithCause(err)
	}
	return NewTable(&doc, source, opts...)
}

// NewTable validates doc and freezes it into a Table. Every problem is
// reported in one POLICY_INVALID error.
func NewTable(doc *Document, source string, opts ...Option) (*Table, error) {
	o := options{conditions: dag.NewConditions(), fallback: BuiltinPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fallbackOK && o.fallback == nil {
		return nil, errors.PolicyInvalid(source, []string{"fallback policy is nil"})
	}
	if doc == nil {
		doc = &Document{}
	}

	known := o.known
	v := validation.New()
	if len(doc.Tasks) > 0 {
		declared := make(map[string]struct{}, len(doc.Tasks))
		for i, name := range doc.Tasks {
			if o.known != nil {
				v.Member(fmt.Sprintf("tasks[%d]", i), name, o.known, "task")
			}
			declared[name] = struct{}{}
		}
		if known == nil {
			known = declared
		}
	}
	if known == nil {
		known = StandardTasks()
	}

	t := &Table{
		version:  doc.Version,
		source:   source,
		policies: make(map[string]map[profile.RiskTier]*Policy, len(doc.Policies)),
	}
	for _, category := range slices.Sorted(maps.Keys(doc.Policies)) {
		byTier := doc.Policies[category]
		if strings.TrimSpace(category) == "" {
			v.AddError("policies", "empty category name")
			continue
		}
		for _, tierKey := range slices.Sorted(maps.Keys(byTier)) {
			p := byTier[tierKey]
			field := fmt.Sprintf("policies.%s.%s", category, tierKey)
			tier, err := profile.ParseRiskTier(tierKey)
			if err != nil {
				v.AddError(field, err.Error())
				continue
			}
			if p == nil {
				v.AddError(field, "policy is empty")
				continue
			}
			if t.policies[category] == nil {
				t.policies[category] = make(map[profile.RiskTier]*Policy)
			}
			if _, dup := t.policies[category][tier]; dup {
				v.AddError(field, fmt.Sprintf("tier %s defined twice", tier))
				continue
			}
			validatePolicy(v, field, p, known, o.conditions)
			frozen := p.Clone()
			frozen.ID = category + "/" + string(tier)
			frozen.Category = category
			frozen.Tier = tier
			t.policies[category][tier] = frozen
		}
	}

	validatePolicy(v, "fallback", o.fallback, o.known, o.conditions)
	t.fallback = o.fallback.Clone()

	if v.HasErrors() {
		return nil, errors.PolicyInvalid(source, v.Messages()).WithCause(v.Validate())
	}
	return t, nil
}

func validatePolicy(v *validation.Validator, field string, p *Policy, known map[string]struct{}, conds *dag.Conditions) {
	checkTask := func(path, name string) {
		if strings.TrimSpace(name) == "" {
			v.AddError(path, "empty task name")
			return
		}
		if known != nil {
			v.Member(path, name, known, "task")
		}
	}

	for i, name := range p.MandatoryTasks {
		checkTask(fmt.Sprintf("%s.mandatory_tasks[%d]", field, i), name)
	}
	for i, name := range p.OptionalTasks {
		checkTask(fmt.Sprintf("%s.optional_tasks[%d]", field, i), name)
		v.Custom(!p.IsMandatory(name), fmt.Sprintf("%s.optional_tasks[%d]", field, i),
			fmt.Sprintf("task %s is both mandatory and optional", name))
	}

	placed := make(map[string]bool)
	nonEmpty := 0
	for s, group := range p.StageGroups {
		if len(group) > 0 {
			nonEmpty++
		}
		for i, name := range group {
			checkTask(fmt.Sprintf("%s.stage_groups[%d][%d]", field, s, i), name)
			placed[name] = true
		}
	}
	v.Custom(nonEmpty > 0, field+".stage_groups", "at least one stage group must be non-empty")
	for _, name := range p.MandatoryTasks {
		v.Custom(placed[name], field+".stage_groups", fmt.Sprintf("mandatory task %s is not in any stage group", name))
	}

	for i, cp := range p.Checkpoints {
		cpField := fmt.Sprintf("%s.decision_checkpoints[%d]", field, i)
		v.Custom(len(cp.AfterNodes) > 0, cpField+".after_nodes", "must name at least one task")
		for j, name := range cp.AfterNodes {
			checkTask(fmt.Sprintf("%s.after_nodes[%d]", cpField, j), name)
		}
		if err := cp.Condition.Validate(conds); err != nil {
			v.AddError(cpField+".condition", err.Error())
		}
		v.Custom(cp.Action.Valid(), cpField+".action",
			fmt.Sprintf("unknown action %q", cp.Action))
		if cp.ConfidenceThreshold != nil {
			v.FloatRange(cpField+".confidence_threshold", *cp.ConfidenceThreshold, 0, 1)
		}
	}

	v.Min(field+".max_parallel", p.MaxParallel, 1)
}
