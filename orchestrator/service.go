package orchestrator

import (
	"context"
	"time"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/observability"
	"github.com/kbukum/reconflow/planner"
	"github.com/kbukum/reconflow/policy"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/store"
)

// DefaultWorkers bounds ProcessBatch concurrency when no limit is set.
const DefaultWorkers = 4

// Service processes work items end to end.
type Service struct {
	classifier *profile.Classifier
	table      *policy.Table
	compiler   *planner.Compiler
	executor   *dag.Executor

	conds   *dag.Conditions
	store   store.Repository
	metrics *Metrics
	log     *logger.Logger
	workers int
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConditions sets the condition registry reported by Policies.
func WithConditions(c *dag.Conditions) Option {
	return func(s *Service) { s.conds = c }
}

// WithStore records every decision in the audit trail of repo.
func WithStore(repo store.Repository) Option {
	return func(s *Service) { s.store = repo }
}

// WithMetrics records Prometheus metrics for every processed item.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithWorkers bounds ProcessBatch concurrency. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires a service. All four collaborators are required.
func New(classifier *profile.Classifier, table *policy.Table, compiler *planner.Compiler, executor *dag.Executor, opts ...Option) (*Service, error) {
	for _, req := range []struct {
		name    string
		missing bool
	}{
		{"classifier", classifier == nil},
		{"table", table == nil},
		{"compiler", compiler == nil},
		{"executor", executor == nil},
	} {
		if req.missing {
			return nil, errors.InvalidInput(req.name, "orchestrator: "+req.name+" is required")
		}
	}
	s := &Service{
		classifier: classifier,
		table:      table,
		compiler:   compiler,
		executor:   executor,
		log:        logger.NewNop(),
		workers:    DefaultWorkers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("orchestrator")
	return s, nil
}

// Table returns the policy table the service routes with.
func (s *Service) Table() *policy.Table { return s.table }

// Policies describes the loaded policy table.
func (s *Service) Policies() policy.Info {
	return s.table.Info(s.conds)
}

// compile classifies item and compiles its plan.
func (s *Service) compile(item *profile.WorkItem) (*dag.Plan, *policy.Policy, error) {
	prof, err := s.classifier.Classify(item)
	if err != nil {
		return nil, nil, err
	}
	pol, source := s.table.Lookup(prof.Category, prof.RiskTier)
	if source != policy.SourceExact {
		s.log.Debug("policy fallback", map[string]interface{}{
			logger.FieldWorkItemID: prof.ID,
			logger.FieldCategory:   prof.Category,
			logger.FieldRiskTier:   prof.RiskTier,
			"source":               source,
		})
	}
	plan, err := s.compiler.Compile(prof, pol)
	if err != nil {
		return nil, nil, err
	}
	plan.PolicySource = string(source)
	plan.PolicyVersion = s.table.Version()
	return plan, pol, nil
}

// Plan compiles item's plan without executing it.
func (s *Service) Plan(ctx context.Context, item *profile.WorkItem) (*Preview, error) {
	plan, pol, err := s.compile(item)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}
	return &Preview{
		WorkItemID:        plan.Profile.ID,
		Profile:           plan.Profile,
		Plan:              plan,
		Classification:    explainClassification(plan.Profile),
		AgentSelection:    explainSelection(plan.Profile, s.compiler.Select(plan.Profile, pol)),
		ExecutionStrategy: explainStrategy(plan),
	}, nil
}

// Process classifies, plans and executes item. When ctx is canceled mid-run
// the partial report is returned together with the context error.
func (s *Service) Process(ctx context.Context, item *profile.WorkItem) (*Report, error) {
	start := s.now()
	ctx, span := observability.StartSpan(ctx, observability.SpanProcessWorkItem)
	defer span.End()
	if item != nil {
		observability.SetSpanAttribute(ctx, observability.AttrWorkItemID, item.ID)
	}

	plan, pol, err := s.compile(item)
	if err != nil {
		observability.SetSpanError(ctx, err)
		s.recordFailure(ctx, err)
		return nil, err
	}
	observability.SetSpanAttribute(ctx, observability.AttrPlanID, plan.ID)

	graph, err := s.executor.Execute(ctx, plan, item)
	if graph == nil {
		observability.SetSpanError(ctx, err)
		s.recordFailure(ctx, err)
		return nil, err
	}
	report := newReport(plan, graph, s.compiler.Select(plan.Profile, pol))
	observability.SetSpanAttribute(ctx, observability.AttrDecision, string(report.Decision.Action))
	if err != nil {
		observability.SetSpanError(ctx, err)
	}

	s.audit(ctx, report)
	if s.metrics != nil {
		s.metrics.RecordReport(report, s.now().Sub(start))
	}
	s.log.Info("work item processed", map[string]interface{}{
		logger.FieldWorkItemID: report.WorkItemID,
		logger.FieldPlanID:     report.PlanID,
		logger.FieldRiskTier:   report.Profile.RiskTier,
		"policy":               report.PolicyID,
		"policy_source":        report.PolicySource,
		"action":               report.Decision.Action,
		"decision_source":      report.Decision.Source,
		"invoked":              report.PlanSummary.Invoked,
		"planned":              report.PlanSummary.Planned,
		"early_exit":           report.EarlyExit,
		"incomplete":           report.Incomplete,
	})
	return report, err
}

func (s *Service) audit(ctx context.Context, r *Report) {
	if s.store == nil {
		return
	}
	_, err := s.store.AppendAudit(context.WithoutCancel(ctx), store.AuditEntry{
		WorkItemID: r.WorkItemID,
		Event:      store.EventDecisionRecorded,
		Actor:      "orchestrator",
		Details: map[string]any{
			"plan_id":    r.PlanID,
			"policy_id":  r.PolicyID,
			"action":     string(r.Decision.Action),
			"confidence": r.Decision.Confidence,
			"source":     r.Decision.Source,
			"early_exit": r.EarlyExit,
			"incomplete": r.Incomplete,
		},
	})
	if err != nil {
		s.log.Warn("audit write failed", logger.ErrorFields("append_audit", err))
	}
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	code := string(errors.From(err).Code)
	if s.metrics != nil {
		s.metrics.RecordFailure(code)
	}
	s.log.Warn("work item rejected", map[string]interface{}{
		logger.FieldError: err.Error(),
		"code":            code,
	})
}
