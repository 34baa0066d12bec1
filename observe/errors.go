package observe

import (
	"errors"

	"github.com/jonwraymond/cacheproxy/observe/exporters"
)

// Configuration errors.
var (
	// ErrMissingServiceName indicates Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct indicates Tracing.SamplePct is not in [0.0, 1.0].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	// ErrInvalidTracingExporter indicates an unknown tracing exporter name.
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")

	// ErrInvalidMetricsExporter indicates an unknown metrics exporter name.
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("observe: invalid log level")
)

// Runtime errors.
var (
	// ErrNilObserver indicates a nil Observer was provided.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrMissingOperationName indicates OperationMeta.Name is empty.
	ErrMissingOperationName = errors.New("observe: operation name is required")

	// ErrOperationPanicked is recorded on the span and metrics of an
	// operation that panicked. The panic itself is re-raised.
	ErrOperationPanicked = errors.New("observe: operation panicked")
)

// ErrEndpointNotConfigured indicates a required OTLP endpoint environment
// variable is not set.
var ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured

// RedactedFields lists field keys whose values are replaced with "[REDACTED]"
// in log output.
var RedactedFields = []string{
	"args",
	"input",
	"password",
	"secret",
	"token",
	"api_key",
	"credential",
}
