package dag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// ConditionFunc is a named checkpoint predicate. threshold is the
// checkpoint's confidence threshold.
type ConditionFunc func(results Results, threshold float64) bool

// Built-in condition names.
const (
	ConditionAlways = "always"
	ConditionNever  = "never"
)

// Conditions is the registry of named checkpoint predicates.
type Conditions struct {
	mu    sync.RWMutex
	funcs map[string]ConditionFunc
}

// NewConditions returns a registry holding the built-in "always" and "never".
func NewConditions() *Conditions {
	return &Conditions{funcs: map[string]ConditionFunc{
		ConditionAlways: func(Results, float64) bool { return true },
		ConditionNever:  func(Results, float64) bool { return false },
	}}
}

// Register adds fn under name. Names are unique.
func (c *Conditions) Register(name string, fn ConditionFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("dag: condition needs a name and a function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.funcs[name]; exists {
		return fmt.Errorf("dag: condition %q already registered", name)
	}
	c.funcs[name] = fn
	return nil
}

// Lookup returns the predicate registered as name.
func (c *Conditions) Lookup(name string) (ConditionFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Has reports whether name is registered.
func (c *Conditions) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns the registered names, sorted.
func (c *Conditions) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Op is a comparison operator in an Expr.
type Op string

const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpExists Op = "exists"
)

func (o Op) numeric() bool {
	return o == OpGt || o == OpGte || o == OpLt || o == OpLte
}

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpExists:
		return true
	}
	return false
}

// Condition is either a registered predicate name or a typed expression.
//
// In YAML a scalar is a name and a mapping is an expression:
//
//	condition: within_tolerance
//	condition:
//	  all:
//	    - {field: RULES_TOLERANCE.within_tolerance, op: eq, value: true}
//	    - {field: MATCHING_CORRELATION.confidence, op: gte}
type Condition struct {
	Name string
	Expr *Expr
}

// Named returns a Condition referring to a registered predicate.
func Named(name string) Condition { return Condition{Name: name} }

// Where returns an expression Condition.
func Where(e Expr) Condition { return Condition{Expr: &e} }

// IsZero reports whether neither a name nor an expression is set.
func (c Condition) IsZero() bool { return c.Name == "" && c.Expr == nil }

// Expr compares one result field, or combines sub-expressions. Exactly one of
// Field, All and Any is set. A numeric comparison with no Value compares
// against the checkpoint's confidence threshold.
type Expr struct {
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	Op    Op     `json:"op,omitempty" yaml:"op,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
	All   []Expr `json:"all,omitempty" yaml:"all,omitempty"`
	Any   []Expr `json:"any,omitempty" yaml:"any,omitempty"`
}

var exprKeys = map[string]bool{"field": true, "op": true, "value": true, "all": true, "any": true}

// UnmarshalYAML accepts a predicate name or an expression mapping.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		*c = Condition{Name: strings.TrimSpace(name)}
		return nil
	case yaml.MappingNode:
		var e Expr
		if err := node.Decode(&e); err != nil {
			return err
		}
		*c = Condition{Expr: &e}
		return nil
	default:
		return fmt.Errorf("line %d: condition must be a name or a mapping", node.Line)
	}
}

// UnmarshalYAML decodes an expression and rejects unknown keys.
func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expression must be a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !exprKeys[key] {
			return fmt.Errorf("line %d: unknown expression key %q", node.Content[i].Line, key)
		}
	}
	type plain Expr
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Expr(p)
	return nil
}

// MarshalYAML writes a name as a scalar and an expression as a mapping.
func (c Condition) MarshalYAML() (any, error) {
	if c.Expr != nil {
		return c.Expr, nil
	}
	return c.Name, nil
}

// MarshalJSON mirrors MarshalYAML.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Expr != nil {
		return json.Marshal(c.Expr)
	}
	return json.Marshal(c.Name)
}

// UnmarshalJSON mirrors UnmarshalYAML.
func (c *Condition) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*c = Condition{Name: name}
		return nil
	}
	var e Expr
	if err := json.Unmarshal(b, &e); err != nil {
		return fmt.Errorf("condition must be a name or an object: %w", err)
	}
	*c = Condition{Expr: &e}
	return nil
}

func (c Condition) String() string {
	if c.Expr != nil {
		return c.Expr.String()
	}
	return c.Name
}

func (e Expr) String() string {
	join := func(parts []Expr, sep string) string {
		s := make([]string, len(parts))
		for i, p := range parts {
			s[i] = p.String()
		}
		return "(" + strings.Join(s, sep) + ")"
	}
	switch {
	case len(e.All) > 0:
		return join(e.All, " and ")
	case len(e.Any) > 0:
		return join(e.Any, " or ")
	case e.Op == OpExists:
		return e.Field + " exists"
	case e.Value == nil:
		return fmt.Sprintf("%s %s threshold", e.Field, e.Op)
	default:
		return fmt.Sprintf("%s %s %v", e.Field, e.Op, e.Value)
	}
}

// Validate checks that a named condition is registered in reg, or that the
// expression is well formed.
func (c Condition) Validate(reg *Conditions) error {
	switch {
	case c.Expr != nil:
		return c.Expr.Validate()
	case c.Name == "":
		return fmt.Errorf("condition is empty")
	case reg == nil || !reg.Has(c.Name):
		return fmt.Errorf("condition %q is not registered", c.Name)
	}
	return nil
}

// Validate checks operator, operand and composition rules.
func (e Expr) Validate() error {
	set := 0
	if e.Field != "" {
		set++
	}
	if len(e.All) > 0 {
		set++
	}
	if len(e.Any) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("expression must set exactly one of field, all, any")
	}
	for _, sub := range append(e.All, e.Any...) {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	if e.Field == "" {
		return nil
	}
	if !e.Op.valid() {
		return fmt.Errorf("field %s: unknown operator %q", e.Field, e.Op)
	}
	switch {
	case e.Op == OpExists && e.Value != nil:
		return fmt.Errorf("field %s: exists takes no value", e.Field)
	case (e.Op == OpEq || e.Op == OpNe) && e.Value == nil:
		return fmt.Errorf("field %s: %s needs a value", e.Field, e.Op)
	case e.Op.numeric() && e.Value != nil:
		if _, ok := toFloat(e.Value); !ok {
			return fmt.Errorf("field %s: %s needs a numeric value", e.Field, e.Op)
		}
	}
	return nil
}

// Evaluate resolves the condition against results. Unknown names and
// missing fields evaluate to false.
func (c Condition) Evaluate(reg *Conditions, results Results, threshold float64) (ok bool) {
	if c.Expr != nil {
		return c.Expr.Evaluate(results, threshold)
	}
	if reg == nil {
		return false
	}
	fn, found := reg.Lookup(c.Name)
	if !found {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn(results, threshold)
}

// Evaluate applies the expression to results.
func (e Expr) Evaluate(results Results, threshold float64) bool {
	switch {
	case len(e.All) > 0:
		for _, sub := range e.All {
			if !sub.Evaluate(results, threshold) {
				return false
			}
		}
		return true
	case len(e.Any) > 0:
		for _, sub := range e.Any {
			if sub.Evaluate(results, threshold) {
				return true
			}
		}
		return false
	}

	got, ok := results.Lookup(e.Field)
	if !ok {
		return false
	}
	switch e.Op {
	case OpExists:
		return true
	case OpEq:
		return equal(got, e.Value)
	case OpNe:
		return !equal(got, e.Value)
	}

	lhs, ok := toFloat(got)
	if !ok {
		return false
	}
	rhs := threshold
	if e.Value != nil {
		if rhs, ok = toFloat(e.Value); !ok {
			return false
		}
	}
	switch e.Op {
	case OpGt:
		return lhs > rhs
	case OpGte:
		return lhs >= rhs
	case OpLt:
		return lhs < rhs
	case OpLte:
		return lhs <= rhs
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case Action:
		return string(av) == fmt.Sprint(b)
	}
	return false
}
