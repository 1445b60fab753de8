package dag

import (
	"context"
	"time"

	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/logger"
	"github.com/kbukum/reconflow/observability"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/resilience"
)

// Middleware decorates a Task.
type Middleware func(Task) Task

// Chain composes middlewares so the first one is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(t Task) Task {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				t = middlewares[i](t)
			}
		}
		return t
	}
}

// wrapped carries the inner task's name through a middleware.
type wrapped struct {
	inner  Task
	invoke TaskFunc
}

func (w *wrapped) Name() string { return w.inner.Name() }

func (w *wrapped) Invoke(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
	return w.invoke(ctx, item, results)
}

// WithTracing opens a span named "task.invoke" around each invocation.
func WithTracing() Middleware {
	return func(next Task) Task {
		return &wrapped{inner: next, invoke: func(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
			ctx, span := observability.StartSpan(ctx, observability.SpanTaskInvoke)
			defer span.End()

			observability.SetSpanAttribute(ctx, observability.AttrTask, next.Name())
			observability.SetSpanAttribute(ctx, observability.AttrWorkItemID, item.ID)

			res, err := next.Invoke(ctx, item, results)
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			return res, err
		}}
	}
}

// WithMetrics records invocation count, duration and errors.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(next Task) Task {
		if metrics == nil {
			return next
		}
		return &wrapped{inner: next, invoke: func(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
			start := time.Now()
			res, err := next.Invoke(ctx, item, results)
			duration := time.Since(start)

			status := "ok"
			if err != nil {
				status = "error"
				metrics.RecordError(ctx, string(errors.From(err).Code), next.Name())
			}
			metrics.RecordTask(ctx, next.Name(), status, duration)
			return res, err
		}}
	}
}

// WithLogging logs task name, duration and outcome.
func WithLogging(log *logger.Logger) Middleware {
	return func(next Task) Task {
		if log == nil {
			return next
		}
		return &wrapped{inner: next, invoke: func(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
			start := time.Now()
			res, err := next.Invoke(ctx, item, results)

			fields := map[string]interface{}{
				logger.FieldTask:       next.Name(),
				logger.FieldWorkItemID: item.ID,
				logger.FieldDuration:   time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.WithContext(ctx).Warn("task failed", fields)
			} else {
				log.WithContext(ctx).Debug("task completed", fields)
			}
			return res, err
		}}
	}
}

// WithRetry re-invokes the task on retryable errors. A config with one
// attempt or fewer leaves the task unwrapped.
func WithRetry(cfg resilience.RetryConfig, log *logger.Logger) Middleware {
	return func(next Task) Task {
		if !cfg.Enabled() {
			return next
		}
		c := cfg
		if log != nil && c.OnRetry == nil {
			c.OnRetry = func(attempt int, err error, backoff time.Duration) {
				log.Info("retrying task", map[string]interface{}{
					logger.FieldTask:  next.Name(),
					"attempt":         attempt,
					"backoff_ms":      backoff.Milliseconds(),
					logger.FieldError: err.Error(),
				})
			}
		}
		return &wrapped{inner: next, invoke: func(ctx context.Context, item *profile.WorkItem, results Results) (Result, error) {
			return resilience.Retry(ctx, c, func(ctx context.Context) (Result, error) {
				return next.Invoke(ctx, item, results)
			})
		}}
	}
}
