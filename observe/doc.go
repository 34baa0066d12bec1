// Package observe provides observability primitives for cached operations.
//
// It is a pure instrumentation library: an Observer bundles an OpenTelemetry
// tracer and meter with a structured Logger, and Middleware wraps the
// underlying computation of a cached operation with a span, metrics and a log
// line. The cache package consumes it through cache.WithObserver and
// cache.WithLogger.
package observe
