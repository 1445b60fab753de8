// Package dag executes task plans. A plan is a list of
// TaskNodes with explicit dependencies, and the Executor runs it in
// concurrency-bounded batches.
//
// Each batch takes up to MaxParallel ready nodes (PENDING nodes whose
// dependencies are COMPLETED, FAILED or SKIPPED), invokes their tasks in
// parallel and waits for all of them. Results of completed tasks are stored
// by task name after the batch and are visible to later batches only.
//
// When early exit is enabled, checkpoints are evaluated after every batch.
// The first satisfied checkpoint with a terminal action skips everything
// still pending and decides the outcome. Otherwise the decision comes from
// the decision task (DECISIONING by default) or falls back to HIL_REVIEW.
//
// Tasks are looked up in a Registry and may be decorated with middleware:
//
//	reg := dag.NewRegistry()
//	reg.MustRegister(task, dag.WithLogging(log), dag.WithTracing())
//	graph, err := dag.NewExecutor(reg, dag.WithConditions(conds)).Execute(ctx, plan, item)
package dag
