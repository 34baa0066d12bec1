package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing service name", Config{}, ErrMissingServiceName},
		{"minimal", Config{ServiceName: "svc"}, nil},
		{
			"bad tracing exporter",
			Config{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}},
			ErrInvalidTracingExporter,
		},
		{
			"bad sample pct",
			Config{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5}},
			ErrInvalidSamplePct,
		},
		{
			"bad metrics exporter",
			Config{ServiceName: "svc", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}},
			ErrInvalidMetricsExporter,
		},
		{
			"bad log level",
			Config{ServiceName: "svc", Logging: LoggingConfig{Enabled: true, Level: "trace"}},
			ErrInvalidLogLevel,
		},
		{
			"disabled subsystems are not validated",
			Config{ServiceName: "svc", Tracing: TracingConfig{Exporter: "zipkin"}},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, Config{ServiceName: "svc"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("expected non-nil telemetry primitives")
	}
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_StdoutEverything(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	obs, err := NewObserver(ctx, Config{
		ServiceName: "svc",
		Version:     "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}
	fn := mw.Wrap(func(context.Context, OperationMeta, []any) (any, error) {
		return nil, errors.New("boom")
	})
	_, _ = fn(ctx, OperationMeta{Name: "op"}, nil)

	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected exporter or log output")
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("expected ErrMissingServiceName, got %v", err)
	}
}

func TestIsLogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if !IsLogLevel(level) {
			t.Errorf("IsLogLevel(%q) = false, want true", level)
		}
	}
	for _, level := range []string{"trace", "INFO", "verbose"} {
		if IsLogLevel(level) {
			t.Errorf("IsLogLevel(%q) = true, want false", level)
		}
	}
}
