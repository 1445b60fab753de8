package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/reconflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the engine's OpenTelemetry instruments.
type Metrics struct {
	taskTotal    metric.Int64Counter
	taskDuration metric.Float64Histogram
	planTotal    metric.Int64Counter
	planDuration metric.Float64Histogram
	planSkipped  metric.Int64Counter
	errorTotal   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	taskTotal, err := meter.Int64Counter("reconflow.task.invocations",
		metric.WithDescription("Task invocations by task and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("reconflow.task.duration",
		metric.WithDescription("Task invocation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task duration histogram: %w", err)
	}

	planTotal, err := meter.Int64Counter("reconflow.plan.executions",
		metric.WithDescription("Executed plans by decision"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plan counter: %w", err)
	}

	planDuration, err := meter.Float64Histogram("reconflow.plan.duration",
		metric.WithDescription("Plan execution latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plan duration histogram: %w", err)
	}

	planSkipped, err := meter.Int64Counter("reconflow.plan.nodes_skipped",
		metric.WithDescription("Planned nodes that were never invoked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("reconflow.errors",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}

	return &Metrics{
		taskTotal:    taskTotal,
		taskDuration: taskDuration,
		planTotal:    planTotal,
		planDuration: planDuration,
		planSkipped:  planSkipped,
		errorTotal:   errorTotal,
	}, nil
}

// RecordTask records one task invocation.
func (m *Metrics) RecordTask(ctx context.Context, task, status string, duration time.Duration) {
	m.taskTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTask, task),
		attribute.String(AttrStatus, status),
	))
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrTask, task),
	))
}

// RecordPlan records one finished plan execution.
func (m *Metrics) RecordPlan(ctx context.Context, action string, earlyExit, incomplete bool, skipped int, duration time.Duration) {
	m.planTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDecision, action),
		attribute.Bool("early_exit", earlyExit),
		attribute.Bool("incomplete", incomplete),
	))
	m.planDuration.Record(ctx, duration.Seconds())
	if skipped > 0 {
		m.planSkipped.Add(ctx, int64(skipped))
	}
}

// RecordError records an error by code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
