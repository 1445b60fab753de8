package main

import (
	"context"
	"fmt"

	"github.com/kbukum/reconflow/bootstrap"
	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/observability"
	"github.com/kbukum/reconflow/orchestrator"
	"github.com/kbukum/reconflow/planner"
	"github.com/kbukum/reconflow/policy"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/recon"
	"github.com/kbukum/reconflow/store"
	"github.com/kbukum/reconflow/version"
)

// engine is the wired process. service is set once components are started.
type engine struct {
	app      *bootstrap.App[*Config]
	conds    *dag.Conditions
	tasks    *dag.Registry
	policies *policy.Component
	store    *store.Memory
	metrics  *orchestrator.Metrics
	service  *orchestrator.Service
}

func newEngine(cfg *Config, opts ...bootstrap.Option) (*engine, error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log := app.Logger

	e := &engine{
		app:     app,
		conds:   dag.NewConditions(),
		tasks:   dag.NewRegistry(),
		store:   store.NewMemory(store.WithLogger(log)),
		metrics: orchestrator.NewMetrics(),
	}
	if err := recon.RegisterConditions(e.conds); err != nil {
		return nil, err
	}

	taskMetrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, fmt.Errorf("task metrics: %w", err)
	}
	taskLog := logger.Get("tasks")
	middleware := func(task string) []dag.Middleware {
		return []dag.Middleware{
			dag.WithTracing(),
			dag.WithMetrics(taskMetrics),
			dag.WithLogging(taskLog),
			dag.WithRetry(cfg.Task(task).Retry, taskLog),
		}
	}
	deps := recon.Deps{Settings: cfg.Recon, Reference: recon.DefaultReference(), Store: e.store}
	if err := recon.Register(e.tasks, deps, middleware); err != nil {
		return nil, err
	}

	e.policies = policy.NewComponent(cfg.Policy.File, log,
		policy.WithConditions(e.conds), policy.WithKnownTasks(e.tasks.Known()))
	if err := app.RegisterComponent(e.policies); err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(e.store); err != nil {
		return nil, err
	}

	var shutdown observability.ShutdownFunc
	app.OnStart(func(ctx context.Context) error {
		fn, err := observability.Init(ctx, cfg.Observability, cfg.Name, version.Get().Short(), cfg.Environment)
		shutdown = fn
		return err
	})
	app.OnStop(func(ctx context.Context) error {
		if shutdown == nil {
			return nil
		}
		return shutdown(ctx)
	})
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		svc, err := e.build(a.Cfg, taskMetrics, log)
		if err != nil {
			return err
		}
		e.service = svc
		return nil
	})
	return e, nil
}

func (e *engine) build(cfg *Config, taskMetrics *observability.Metrics, log *logger.Logger) (*orchestrator.Service, error) {
	classifier, err := profile.NewClassifier(cfg.Classifier.Rules())
	if err != nil {
		return nil, err
	}
	executor := dag.NewExecutor(e.tasks,
		dag.WithConditions(e.conds),
		dag.WithLogger(log),
		dag.WithExecutorMetrics(taskMetrics),
		dag.WithTaskTimeout(cfg.Executor.TaskTimeout),
		dag.WithDecisionTask(cfg.Executor.DecisionTask, cfg.Executor.DecisionKey),
	)
	return orchestrator.New(classifier, e.policies.Table(), planner.NewCompiler(planner.WithLogger(log)), executor,
		orchestrator.WithConditions(e.conds),
		orchestrator.WithStore(e.store),
		orchestrator.WithMetrics(e.metrics),
		orchestrator.WithLogger(log),
		orchestrator.WithWorkers(cfg.Batch.Workers),
	)
}

// run executes task against the started engine.
func (e *engine) run(ctx context.Context, task func(ctx context.Context, svc *orchestrator.Service) error) error {
	return e.app.RunTask(ctx, func(ctx context.Context) error {
		return task(ctx, e.service)
	})
}
