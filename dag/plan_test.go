package dag

import (
	"strings"
	"testing"

	"github.com/kbukum/reconflow/errors"
)

func TestPlan_Validate(t *testing.T) {
	valid := func() *Plan {
		p := stagedPlan(2, true, []string{tIngest}, []string{tEnrich, tRules}, []string{tDecide})
		p.Checkpoints = []Checkpoint{{ID: "CP1", AfterNodes: []string{"N3"}, Condition: Named("always"), Action: ActionAutoResolve}}
		return p
	}
	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr string
	}{
		{"valid", func(*Plan) {}, ""},
		{"max parallel", func(p *Plan) { p.MaxParallel = 0 }, "max_parallel"},
		{"duplicate id", func(p *Plan) { p.Nodes[1].ID = "N1" }, "duplicate"},
		{"empty task", func(p *Plan) { p.Nodes[0].Task = "" }, "no task"},
		{"forward dep", func(p *Plan) { p.Nodes[0].DependsOn = []string{"N4"} }, "not an earlier node"},
		{"dangling dep", func(p *Plan) { p.Nodes[3].DependsOn = []string{"N99"} }, "not an earlier node"},
		{"bad action", func(p *Plan) { p.Checkpoints[0].Action = "PANIC" }, "unknown action"},
		{"bad checkpoint ref", func(p *Plan) { p.Checkpoints[0].AfterNodes = []string{"N9"} }, "unknown node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCode(err, errors.ErrCodePlanInvalid) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected PLAN_INVALID containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPlan_Accessors(t *testing.T) {
	p := stagedPlan(2, false, []string{tIngest}, []string{tEnrich, tRules}, []string{tDecide})
	stages, err := p.Stages()
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 3 || len(stages[1]) != 2 {
		t.Errorf("stages = %v", stages)
	}
	if n, ok := p.Node("N3"); !ok || n.Task != tRules {
		t.Errorf("Node(N3) = %+v, %v", n, ok)
	}
	if got := strings.Join(p.TaskNames(), ","); got != "BREAK_INGESTION,DATA_ENRICHMENT,RULES_TOLERANCE,DECISIONING" {
		t.Errorf("TaskNames = %s", got)
	}
	if edges := len(p.Graph().Edges); edges != 4 {
		t.Errorf("edges = %d", edges)
	}
}
