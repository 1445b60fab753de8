package orchestrator

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for processed work items. Each
// instance owns its registry so tests and embedded services never collide on
// the global one.
type Metrics struct {
	workItems      *prometheus.CounterVec
	processLatency *prometheus.HistogramVec
	tasksPlanned   prometheus.Counter
	tasksInvoked   prometheus.Counter
	earlyExits     *prometheus.CounterVec
	incomplete     prometheus.Counter
	failures       *prometheus.CounterVec
	batchSize      prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		workItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconflow_work_items_total",
				Help: "Processed work items by category, risk tier, decision and policy source",
			},
			[]string{"category", "risk_tier", "action", "policy_source"},
		),
		processLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconflow_process_duration_seconds",
				Help:    "End-to-end processing latency per work item",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"risk_tier"},
		),
		tasksPlanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconflow_tasks_planned_total",
				Help: "Task nodes placed in compiled plans",
			},
		),
		tasksInvoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconflow_tasks_invoked_total",
				Help: "Task nodes actually invoked",
			},
		),
		earlyExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconflow_early_exits_total",
				Help: "Plans cut short by a checkpoint, by decision",
			},
			[]string{"action"},
		),
		incomplete: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconflow_incomplete_plans_total",
				Help: "Plans that ended stuck or canceled",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconflow_failures_total",
				Help: "Work items that produced no report, by error code",
			},
			[]string{"code"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconflow_batch_size",
				Help:    "Work items per batch request",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.workItems,
		m.processLatency,
		m.tasksPlanned,
		m.tasksInvoked,
		m.earlyExits,
		m.incomplete,
		m.failures,
		m.batchSize,
	)
	return m
}

// RecordReport records one processed work item.
func (m *Metrics) RecordReport(r *Report, elapsed time.Duration) {
	m.workItems.WithLabelValues(r.Profile.Category, string(r.Profile.RiskTier), string(r.Decision.Action), r.PolicySource).Inc()
	m.processLatency.WithLabelValues(string(r.Profile.RiskTier)).Observe(elapsed.Seconds())
	m.tasksPlanned.Add(float64(r.PlanSummary.Planned))
	m.tasksInvoked.Add(float64(r.PlanSummary.Invoked))
	if r.EarlyExit {
		m.earlyExits.WithLabelValues(string(r.Decision.Action)).Inc()
	}
	if r.Incomplete {
		m.incomplete.Inc()
	}
}

// RecordFailure records a work item that failed before a report existed.
func (m *Metrics) RecordFailure(code string) {
	m.failures.WithLabelValues(code).Inc()
}

// RecordBatch records the size of one batch.
func (m *Metrics) RecordBatch(size int) {
	m.batchSize.Observe(float64(size))
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry, for callers adding collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
