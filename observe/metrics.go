package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricLookupTotal     = "cache.lookup.total"
	MetricComputeTotal    = "cache.compute.total"
	MetricComputeErrors   = "cache.compute.errors"
	MetricComputeDuration = "cache.compute.duration_ms"
)

// Metrics records cache lookups and underlying computations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records a store lookup and whether it hit.
	RecordLookup(ctx context.Context, meta OperationMeta, hit bool)

	// RecordCompute records an underlying execution with duration and error status.
	RecordCompute(ctx context.Context, meta OperationMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	computes     metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		MetricLookupTotal,
		metric.WithDescription("Total number of cache store lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	computes, err := meter.Int64Counter(
		MetricComputeTotal,
		metric.WithDescription("Total number of underlying operation executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricComputeErrors,
		metric.WithDescription("Total number of underlying operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricComputeDuration,
		metric.WithDescription("Underlying operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		computes:     computes,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta OperationMeta, hit bool) {
	attrs := append(meta.attributes(), attribute.Bool("cache.hit", hit))
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordCompute(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.computes.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopMetrics struct{}

// NewNoopMetrics returns Metrics that record nothing.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordLookup(context.Context, OperationMeta, bool) {}

func (noopMetrics) RecordCompute(context.Context, OperationMeta, time.Duration, error) {}
