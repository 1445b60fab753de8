package dag

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/observability"
	"github.com/kbukum/reconflow/profile"
)

// Defaults for the decision-producing task.
const (
	DefaultDecisionTask = "DECISIONING"
	DefaultDecisionKey  = "decision"
)

// Executor runs plans batch by batch. It is safe for concurrent use; each
// Execute call keeps its own state.
type Executor struct {
	tasks        *Registry
	conditions   *Conditions
	log          *logger.Logger
	metrics      *observability.Metrics
	taskTimeout  time.Duration
	decisionTask string
	decisionKey  string
	now          func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithConditions sets the named predicate registry used by checkpoints.
func WithConditions(c *Conditions) Option {
	return func(e *Executor) { e.conditions = c }
}

// WithLogger sets the executor logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithExecutorMetrics records one plan metric per Execute call.
func WithExecutorMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTaskTimeout bounds every task invocation. Zero disables the deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Executor) { e.taskTimeout = d }
}

// WithDecisionTask names the task whose result carries the final decision,
// and the result key holding it.
func WithDecisionTask(task, key string) Option {
	return func(e *Executor) {
		if task != "" {
			e.decisionTask = task
		}
		if key != "" {
			e.decisionKey = key
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor over tasks.
func NewExecutor(tasks *Registry, opts ...Option) *Executor {
	e := &Executor{
		tasks:        tasks,
		conditions:   NewConditions(),
		log:          logger.NewNop(),
		taskTimeout:  30 * time.Second,
		decisionTask: DefaultDecisionTask,
		decisionKey:  DefaultDecisionKey,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("executor")
	return e
}

// Execute runs plan for item and returns the execution graph. Node failures
// are recorded on the graph and never returned. The error is non-nil only
// for an unusable plan or when ctx ends; in the latter case the partial
// graph is returned too.
func (e *Executor) Execute(ctx context.Context, plan *Plan, item *profile.WorkItem) (*ExecutionGraph, error) {
	if plan == nil {
		return nil, errors.PlanInvalid("", "plan is nil")
	}
	if item == nil {
		return nil, errors.InvalidInput("work_item", "work item is nil")
	}
	seen := make(map[string]bool, len(plan.Nodes))
	for _, n := range plan.Nodes {
		if seen[n.ID] {
			return nil, errors.PlanInvalid(plan.ID, fmt.Sprintf("duplicate node id %s", n.ID))
		}
		seen[n.ID] = true
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanExecutePlan)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrPlanID, plan.ID)
	observability.SetSpanAttribute(ctx, observability.AttrWorkItemID, item.ID)

	r := e.newRun(plan, item)
	r.log.Info("executing plan", map[string]interface{}{
		"nodes":        len(plan.Nodes),
		"max_parallel": plan.MaxParallel,
		"early_exit":   plan.EarlyExitEnabled,
	})

	runErr := r.loop(ctx)
	if !r.graph.EarlyExit {
		r.graph.Decision = e.decide(r)
	}
	r.finish()

	observability.SetSpanAttribute(ctx, observability.AttrDecision, string(r.graph.Decision.Action))
	observability.SetSpanAttribute(ctx, "plan.incomplete", r.graph.Incomplete)
	if runErr != nil {
		observability.SetSpanError(ctx, runErr)
	}
	if e.metrics != nil {
		e.metrics.RecordPlan(ctx, string(r.graph.Decision.Action), r.graph.EarlyExit, r.graph.Incomplete,
			r.graph.AgentsSkipped, r.graph.TotalDuration)
	}

	r.log.Info("plan executed", map[string]interface{}{
		"decision":           r.graph.Decision.Action,
		"decision_source":    r.graph.Decision.Source,
		"early_exit":         r.graph.EarlyExit,
		"incomplete":         r.graph.Incomplete,
		"agents_invoked":     r.graph.AgentsInvoked,
		"agents_skipped":     r.graph.AgentsSkipped,
		logger.FieldDuration: r.graph.TotalDuration.Milliseconds(),
	})
	return r.graph, runErr
}

// run is the per-Execute scheduler state. Only the scheduler goroutine
// touches it.
type run struct {
	e         *Executor
	plan      *Plan
	item      *profile.WorkItem
	log       *logger.Logger
	status    map[string]Status
	invoked   map[string]bool
	evaluated map[string]bool
	results   Results
	graph     *ExecutionGraph
}

func (e *Executor) newRun(plan *Plan, item *profile.WorkItem) *run {
	r := &run{
		e:         e,
		plan:      plan,
		item:      item,
		status:    make(map[string]Status, len(plan.Nodes)),
		invoked:   make(map[string]bool, len(plan.Nodes)),
		evaluated: make(map[string]bool, len(plan.Checkpoints)),
		results:   Results{byTask: make(map[string]Result, len(plan.Nodes))},
		log: e.log.WithFields(map[string]interface{}{
			logger.FieldPlanID:     plan.ID,
			logger.FieldWorkItemID: item.ID,
		}),
		graph: &ExecutionGraph{
			PlanID:      plan.ID,
			WorkItemID:  item.ID,
			Executions:  make([]NodeExecution, 0, len(plan.Nodes)),
			Checkpoints: []CheckpointOutcome{},
			Planned:     len(plan.Nodes),
			StartedAt:   e.now(),
		},
	}
	for _, n := range plan.Nodes {
		r.status[n.ID] = StatusPending
	}
	return r
}

func (r *run) loop(ctx context.Context) error {
	maxParallel := r.plan.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	for r.pending() > 0 {
		if err := ctx.Err(); err != nil {
			r.skipPending(ReasonCanceled)
			r.graph.Incomplete = true
			r.graph.IncompleteReason = ReasonCanceled
			r.log.Warn("plan canceled", map[string]interface{}{logger.FieldError: err.Error()})
			return err
		}

		ready := r.ready()
		if len(ready) == 0 {
			r.stuck(ctx)
			return nil
		}
		if len(ready) > maxParallel {
			ready = ready[:maxParallel]
		}

		r.graph.Batches++
		batch := r.graph.Batches
		for _, n := range ready {
			r.status[n.ID] = StatusRunning
		}
		outcomes := r.e.runBatch(ctx, ready, r.item, r.results.snapshot())
		for i, n := range ready {
			r.record(n, outcomes[i], batch)
		}

		if r.plan.EarlyExitEnabled {
			if cp := r.checkpoints(batch); cp != nil {
				r.earlyExit(cp)
				return nil
			}
		}
	}
	return nil
}

// pending counts nodes not yet resolved.
func (r *run) pending() int {
	n := 0
	for _, node := range r.plan.Nodes {
		if !r.status[node.ID].Resolved() {
			n++
		}
	}
	return n
}

// ready returns PENDING nodes whose dependencies are all resolved, in plan order.
func (r *run) ready() []TaskNode {
	var out []TaskNode
	for _, n := range r.plan.Nodes {
		if r.status[n.ID] != StatusPending {
			continue
		}
		if r.resolved(n.DependsOn) {
			out = append(out, n)
		}
	}
	return out
}

// resolved reports whether every id names a resolved node. Unknown ids
// never resolve.
func (r *run) resolved(ids []string) bool {
	for _, id := range ids {
		st, ok := r.status[id]
		if !ok || !st.Resolved() {
			return false
		}
	}
	return true
}

func (r *run) record(n TaskNode, o outcome, batch int) {
	exec := NodeExecution{
		NodeID:      n.ID,
		Task:        n.Task,
		StartedAt:   o.startedAt,
		CompletedAt: o.completedAt,
		Duration:    o.completedAt.Sub(o.startedAt),
		Batch:       batch,
	}
	if o.invoked {
		r.invoked[n.ID] = true
	}
	fields := map[string]interface{}{
		logger.FieldNodeID:   n.ID,
		logger.FieldTask:     n.Task,
		logger.FieldDuration: exec.Duration.Milliseconds(),
	}
	if o.err != nil {
		exec.Status = StatusFailed
		exec.Err = o.err
		exec.Error = o.err.Error()
		exec.ErrorCode = string(errors.From(o.err).Code)
		fields[logger.FieldError] = exec.Error
		r.log.Warn("node failed", fields)
	} else {
		exec.Status = StatusCompleted
		exec.Result = o.result
		r.results.set(n.Task, o.result)
		r.log.Debug("node completed", fields)
	}
	r.status[n.ID] = exec.Status
	r.graph.Executions = append(r.graph.Executions, exec)
}

// resolvePending closes every PENDING node with status and reason.
func (r *run) resolvePending(status Status, reason string, err error) []string {
	var ids []string
	now := r.e.now()
	for _, n := range r.plan.Nodes {
		if r.status[n.ID] != StatusPending {
			continue
		}
		exec := NodeExecution{NodeID: n.ID, Task: n.Task, Status: status, CompletedAt: now}
		if status == StatusSkipped {
			exec.SkipReason = reason
		} else {
			exec.Err = err
			exec.Error = reason
			exec.ErrorCode = string(errors.From(err).Code)
		}
		r.status[n.ID] = status
		r.graph.Executions = append(r.graph.Executions, exec)
		ids = append(ids, n.ID)
	}
	return ids
}

func (r *run) skipPending(reason string) []string {
	return r.resolvePending(StatusSkipped, reason, nil)
}

func (r *run) stuck(ctx context.Context) {
	var ids []string
	for _, n := range r.plan.Nodes {
		if r.status[n.ID] == StatusPending {
			ids = append(ids, n.ID)
		}
	}
	err := errors.StuckPlan(r.plan.ID, ids)
	r.resolvePending(StatusFailed, ReasonUnreachable, err)
	r.graph.Incomplete = true
	r.graph.IncompleteReason = err.Message
	r.log.Error("plan stuck", map[string]interface{}{
		logger.FieldError: err.Error(),
		"nodes":           ids,
	})
	if r.e.metrics != nil {
		r.e.metrics.RecordError(ctx, string(errors.ErrCodeStuckPlan), "executor")
	}
}

// checkpoints evaluates every checkpoint whose after_nodes are resolved and
// that has not been evaluated yet, in plan order. It returns the first
// satisfied checkpoint with a terminal action.
func (r *run) checkpoints(batch int) *Checkpoint {
	for i := range r.plan.Checkpoints {
		cp := &r.plan.Checkpoints[i]
		if r.evaluated[cp.ID] || !r.resolved(cp.AfterNodes) {
			continue
		}
		r.evaluated[cp.ID] = true
		satisfied := cp.Condition.Evaluate(r.e.conditions, r.results, cp.ConfidenceThreshold)
		r.graph.Checkpoints = append(r.graph.Checkpoints, CheckpointOutcome{
			CheckpointID: cp.ID,
			Condition:    cp.Condition.String(),
			Action:       cp.Action,
			Satisfied:    satisfied,
			Batch:        batch,
			EvaluatedAt:  r.e.now(),
		})
		r.log.Debug("checkpoint evaluated", map[string]interface{}{
			logger.FieldCheckpointID: cp.ID,
			"condition":              cp.Condition.String(),
			"satisfied":              satisfied,
		})
		if satisfied && cp.Action != ActionContinue {
			return cp
		}
	}
	return nil
}

func (r *run) earlyExit(cp *Checkpoint) {
	skipped := r.skipPending(ReasonEarlyExit)
	r.graph.EarlyExit = true
	r.graph.EarlyExitReason = fmt.Sprintf("checkpoint %s (%s) satisfied", cp.ID, cp.Condition)
	r.graph.Decision = Decision{
		Action:       cp.Action,
		Confidence:   cp.ConfidenceThreshold,
		Explanation:  r.graph.EarlyExitReason,
		Source:       SourceCheckpoint,
		CheckpointID: cp.ID,
	}
	r.log.Info("early exit", map[string]interface{}{
		logger.FieldCheckpointID: cp.ID,
		"action":                 cp.Action,
		"skipped":                skipped,
	})
}

func (r *run) finish() {
	g := r.graph
	g.CompletedAt = r.e.now()
	g.TotalDuration = g.CompletedAt.Sub(g.StartedAt)
	g.AgentsInvoked = len(r.invoked)
	g.AgentsSkipped = g.Planned - g.AgentsInvoked
}

// decide derives the decision from the decision task's result, or falls back
// to the conservative default.
func (e *Executor) decide(r *run) Decision {
	res, ok := r.results.Get(e.decisionTask)
	if !ok {
		return DefaultDecision()
	}
	raw, ok := res[e.decisionKey]
	if !ok {
		raw = map[string]any(res)
	}
	d, ok := decisionFrom(raw)
	if !ok || !d.Action.Valid() || d.Action == ActionContinue {
		r.log.Warn("decision task produced no usable decision", map[string]interface{}{
			logger.FieldTask: e.decisionTask,
		})
		return DefaultDecision()
	}
	d.Source = SourceTask
	return d
}

func decisionFrom(v any) (Decision, bool) {
	switch d := v.(type) {
	case Decision:
		return d, true
	case *Decision:
		if d == nil {
			return Decision{}, false
		}
		return *d, true
	case Result:
		return decisionFrom(map[string]any(d))
	case map[string]any:
		action, _ := d["action"].(string)
		if a, ok := d["action"].(Action); ok {
			action = string(a)
		}
		if action == "" {
			return Decision{}, false
		}
		conf, _ := toFloat(d["confidence"])
		explanation, _ := d["explanation"].(string)
		if explanation == "" {
			explanation, _ = d["reasoning"].(string)
		}
		details, _ := d["details"].(map[string]any)
		return Decision{Action: Action(action), Confidence: conf, Explanation: explanation, Details: details}, true
	}
	return Decision{}, false
}

type outcome struct {
	result      Result
	err         error
	invoked     bool
	startedAt   time.Time
	completedAt time.Time
}

// runBatch invokes every node concurrently and waits for all of them. Each
// goroutine writes only its own slot and returns nil, so one failure never
// cancels its siblings.
func (e *Executor) runBatch(ctx context.Context, nodes []TaskNode, item *profile.WorkItem, results Results) []outcome {
	out := make([]outcome, len(nodes))
	var g errgroup.Group
	for i, n := range nodes {
		g.Go(func() error {
			out[i] = e.invoke(ctx, n, item, results)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// invoke runs one task under its own deadline. A task that overruns the
// deadline is abandoned and recorded as TIMEOUT.
func (e *Executor) invoke(ctx context.Context, n TaskNode, item *profile.WorkItem, results Results) outcome {
	o := outcome{startedAt: e.now()}
	task, ok := e.tasks.Get(n.Task)
	if !ok {
		o.err = errors.TaskNotFound(n.Task)
		o.completedAt = e.now()
		return o
	}
	o.invoked = true

	tctx, cancel := ctx, context.CancelFunc(func() {})
	if e.taskTimeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
	}
	defer cancel()

	done := make(chan taskReply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- taskReply{err: errors.TaskFailed(n.Task, fmt.Errorf("panic: %v", p))}
			}
		}()
		res, err := task.Invoke(tctx, item, results)
		done <- taskReply{res: res, err: err}
	}()

	var (
		rep     taskReply
		expired bool
	)
	select {
	case rep = <-done:
	case <-tctx.Done():
		// A reply that raced the deadline still counts.
		select {
		case rep = <-done:
		default:
			rep = taskReply{err: tctx.Err()}
			expired = ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded)
		}
	}
	o.completedAt = e.now()
	o.result, o.err = settle(n.Task, rep, expired)
	return o
}

type taskReply struct {
	res Result
	err error
}

// settle turns a task reply into the node's result or error. expired is set
// only when the deadline fired before any reply arrived.
func settle(task string, rep taskReply, expired bool) (Result, error) {
	switch {
	case expired:
		return nil, errors.Timeout(task).WithCause(rep.err)
	case rep.err != nil && stderrors.Is(rep.err, context.DeadlineExceeded):
		return nil, errors.Timeout(task).WithCause(rep.err)
	case rep.err != nil:
		return nil, taskError(task, rep.err)
	case rep.res == nil:
		return Result{}, nil
	default:
		return rep.res, nil
	}
}

func taskError(task string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.TaskFailed(task, err)
}
