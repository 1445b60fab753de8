package orchestrator

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/planner"
	"github.com/kbukum/reconflow/policy"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/recon"
	"github.com/kbukum/reconflow/store"
)

type fixture struct {
	svc     *Service
	repo    *store.Memory
	metrics *Metrics
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	conds := dag.NewConditions()
	if err := recon.RegisterConditions(conds); err != nil {
		t.Fatal(err)
	}
	repo := store.NewMemory()
	reg := dag.NewRegistry()
	if err := recon.Register(reg, recon.Deps{Settings: recon.DefaultSettings(), Reference: recon.DefaultReference(), Store: repo}, nil); err != nil {
		t.Fatal(err)
	}
	table, err := policy.Load(filepath.Join("..", "policies", "routing_policies.yaml"),
		policy.WithConditions(conds), policy.WithKnownTasks(reg.Known()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	classifier, err := profile.NewClassifier(profile.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	metrics := NewMetrics()
	opts = append([]Option{WithConditions(conds), WithStore(repo), WithMetrics(metrics)}, opts...)
	svc, err := New(classifier, table, planner.NewCompiler(), dag.NewExecutor(reg, dag.WithConditions(conds)), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return fixture{svc: svc, repo: repo, metrics: metrics}
}

func breakItem(id, category string, a, b float64) *profile.WorkItem {
	return &profile.WorkItem{
		ID:       id,
		Category: category,
		SystemA:  &profile.Side{Source: "OMS", Amount: a, Quantity: 100, Price: a / 100, Currency: "USD", TradeDate: "2026-01-05"},
		SystemB:  &profile.Side{Source: "BROKER", Amount: b, Quantity: 100, Price: b / 100, Currency: "USD", TradeDate: "2026-01-05"},
		Entities: map[string]string{"instrument": "AAPL", "account": "ACC-001", "counterparty": "GS"},
	}
}

// A rounding difference resolves at the tolerance checkpoint.
func TestProcess_AutoResolveShortCircuit(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Process(context.Background(), breakItem("BRK-A", "TRADE_OMS_MISMATCH", 100_000, 100_000.5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Profile.RiskTier != profile.TierLow || r.PolicySource != string(policy.SourceExact) || r.PolicyID != "TRADE_OMS_MISMATCH/LOW" {
		t.Errorf("routing = %s %s %s", r.Profile.RiskTier, r.PolicySource, r.PolicyID)
	}
	if r.PolicyVersion != "2.1" {
		t.Errorf("policy version = %q", r.PolicyVersion)
	}
	if r.Decision.Action != dag.ActionAutoResolve || r.Decision.Source != dag.SourceCheckpoint {
		t.Errorf("decision = %+v", r.Decision)
	}
	if !r.EarlyExit || r.PlanSummary != (PlanSummary{Planned: 6, Invoked: 4, Skipped: 2}) {
		t.Errorf("early exit %v, summary %+v", r.EarlyExit, r.PlanSummary)
	}
	if r.Reasoning.Skips.Count != 2 || r.Reasoning.Skips.Tasks[0] != recon.TaskDecisioning {
		t.Errorf("skips = %+v", r.Reasoning.Skips)
	}
	if r.EfficiencyPercent != 66.7 {
		t.Errorf("efficiency = %v", r.EfficiencyPercent)
	}

	tickets, _ := f.repo.ListTickets(context.Background(), store.TicketFilter{WorkItemID: "BRK-A"})
	if len(tickets) != 0 {
		t.Errorf("workflow should not have run: %+v", tickets)
	}
	trail, _ := f.repo.Audit(context.Background(), "BRK-A")
	if len(trail) != 1 || trail[0].Event != store.EventDecisionRecorded {
		t.Errorf("audit = %+v", trail)
	}
	if got := testutil.ToFloat64(f.metrics.tasksInvoked); got != 4 {
		t.Errorf("tasks invoked metric = %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.earlyExits.WithLabelValues("AUTO_RESOLVE")); got != 1 {
		t.Errorf("early exit metric = %v", got)
	}
}

// Without correlation the plan is straight-line and resolves after the rules.
func TestProcess_AutoResolveWithoutCorrelation(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Process(context.Background(), breakItem("BRK-A2", "CASH_MISMATCH", 100_000, 100_000.5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Profile.Flags.Has(profile.FlagRequiresCorrelation) || r.PolicyID != "DEFAULT/LOW" {
		t.Errorf("profile %+v policy %s", r.Profile, r.PolicyID)
	}
	if r.Decision.Action != dag.ActionAutoResolve || r.Decision.Source != dag.SourceCheckpoint {
		t.Errorf("decision = %+v", r.Decision)
	}
	if r.PlanSummary != (PlanSummary{Planned: 5, Invoked: 3, Skipped: 2}) || r.EfficiencyPercent != 60 {
		t.Errorf("summary %+v efficiency %v", r.PlanSummary, r.EfficiencyPercent)
	}
	var ran []string
	for _, e := range r.NodeExecutions {
		if e.Status == dag.StatusCompleted {
			ran = append(ran, e.Task)
		}
	}
	want := []string{recon.TaskBreakIngestion, recon.TaskDataEnrichment, recon.TaskRulesTolerance}
	if !slices.Equal(ran, want) {
		t.Errorf("ran %v, want %v", ran, want)
	}
}

// A critical break runs every task and the decision comes from DECISIONING.
func TestProcess_FullTraversal(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Process(context.Background(), breakItem("BRK-B", "TRADE_OMS_MISMATCH", 500_000, 350_000))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Profile.RiskTier != profile.TierCritical {
		t.Fatalf("tier = %s", r.Profile.RiskTier)
	}
	if r.PlanSummary != (PlanSummary{Planned: 7, Invoked: 7, Skipped: 0}) || r.EarlyExit {
		t.Errorf("summary = %+v early exit %v", r.PlanSummary, r.EarlyExit)
	}
	for _, e := range r.NodeExecutions {
		if e.Status != dag.StatusCompleted {
			t.Errorf("%s %s: %s", e.NodeID, e.Task, e.Error)
		}
	}
	if r.Decision.Action != dag.ActionEscalate || r.Decision.Source != dag.SourceTask {
		t.Errorf("decision = %+v", r.Decision)
	}
	if got := r.Reasoning.ExecutionStrategy.TotalStages; got != 6 {
		t.Errorf("stages = %d", got)
	}
	if !r.Reasoning.ExecutionStrategy.Stages[2].Parallel {
		t.Errorf("matching and rules should share a stage: %+v", r.Reasoning.ExecutionStrategy.Stages[2])
	}

	tickets, _ := f.repo.ListTickets(context.Background(), store.TicketFilter{WorkItemID: "BRK-B"})
	if len(tickets) != 1 || tickets[0].Status != store.TicketEscalated {
		t.Errorf("tickets = %+v", tickets)
	}
	trail, _ := f.repo.Audit(context.Background(), "BRK-B")
	if len(trail) != 2 || trail[0].Event != store.EventWorkflowCreated || trail[1].Event != store.EventDecisionRecorded {
		t.Errorf("audit = %+v", trail)
	}
}

func TestProcess_UnknownCategoryFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.Process(context.Background(), breakItem("BRK-C", "CASH_MISMATCH", 1_000, 1_500))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.PolicySource != string(policy.SourceDefaultCategory) || r.PolicyID != "DEFAULT/LOW" {
		t.Errorf("policy = %s via %s", r.PolicyID, r.PolicySource)
	}
	if len(r.Nodes) != 5 || len(r.Reasoning.AgentSelection.Excluded) != 2 {
		t.Errorf("nodes = %v, excluded = %v", len(r.Nodes), r.Reasoning.AgentSelection.Excluded)
	}
	if r.Decision.Action != dag.ActionHILReview || r.EarlyExit {
		t.Errorf("decision = %+v", r.Decision)
	}
	tickets, _ := f.repo.ListTickets(context.Background(), store.TicketFilter{WorkItemID: "BRK-C"})
	if len(tickets) != 1 || tickets[0].Queue != "hil-review" {
		t.Errorf("tickets = %+v", tickets)
	}
}

func TestProcess_ClassificationError(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), &profile.WorkItem{ID: "BRK-BAD"})
	if !errors.HasCode(err, errors.ErrCodeClassification) {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.failures.WithLabelValues(string(errors.ErrCodeClassification))); got != 1 {
		t.Errorf("failure metric = %v", got)
	}
}

func TestProcess_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := f.svc.Process(ctx, breakItem("BRK-X", "TRADE_OMS_MISMATCH", 100, 100))
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if r == nil || !r.Incomplete || r.IncompleteReason != dag.ReasonCanceled || r.PlanSummary.Invoked != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestPlan_DryRun(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Plan(context.Background(), breakItem("BRK-P", "TRADE_OMS_MISMATCH", 100_000, 100_000.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Plan.Nodes) != 6 || p.Plan.PolicySource != string(policy.SourceExact) {
		t.Errorf("plan = %+v", p.Plan)
	}
	if p.ExecutionStrategy.TotalStages != 5 || p.ExecutionStrategy.Stages[2].Description != "Stage 3: MATCHING_CORRELATION || RULES_TOLERANCE" {
		t.Errorf("strategy = %+v", p.ExecutionStrategy)
	}
	if len(p.AgentSelection.Selected) != 6 {
		t.Errorf("selection = %+v", p.AgentSelection)
	}
	if trail, _ := f.repo.Audit(context.Background(), "BRK-P"); len(trail) != 0 {
		t.Error("dry run must not write to the store")
	}
}

func TestPolicies(t *testing.T) {
	f := newFixture(t)
	info := f.svc.Policies()
	if info.Version != "2.1" || len(info.Categories) != 4 || len(info.Conditions) != 6 {
		t.Errorf("info = %+v", info)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["field"] != "classifier" {
		t.Errorf("field = %v", appErr.Details["field"])
	}
}
