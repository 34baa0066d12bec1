package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ExecuteFunc is the signature of an underlying operation as seen by Middleware.
type ExecuteFunc func(ctx context.Context, op OperationMeta, args []any) (any, error)

// Middleware wraps underlying computations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: Arguments and results pass through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// WithLogger returns a copy of m that logs to logger.
func (m *Middleware) WithLogger(logger Logger) *Middleware {
	cp := *m
	if logger != nil {
		cp.logger = logger
	}
	return &cp
}

// Lookup records the outcome of a store lookup.
func (m *Middleware) Lookup(ctx context.Context, op OperationMeta, hit bool) {
	m.metrics.RecordLookup(ctx, op, hit)
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging. A panic in fn
// ends the span and is recorded as ErrOperationPanicked before it propagates.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, op OperationMeta, args []any) (result any, err error) {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		defer func() {
			recorded := err
			r := recover()
			if r != nil {
				recorded = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
			}
			m.record(ctx, span, op, time.Since(start), recorded)
			if r != nil {
				panic(r)
			}
		}()

		return fn(ctx, op, args)
	}
}

func (m *Middleware) record(ctx context.Context, span trace.Span, op OperationMeta, duration time.Duration, err error) {
	m.tracer.EndSpan(span, err)
	m.metrics.RecordCompute(ctx, op, duration, err)

	opLogger := m.logger.WithOperation(op)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		opLogger.Warn(ctx, "operation failed", fields...)
	} else {
		opLogger.Debug(ctx, "operation computed", fields...)
	}
}
