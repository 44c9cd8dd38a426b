package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/querycache/observe/exporters"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"minimal", Config{ServiceName: "svc"}, nil},
		{"missing name", Config{}, ErrMissingServiceName},
		{
			"bad tracing exporter",
			Config{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "zipkin", SamplePct: 1}},
			ErrInvalidTracingExporter,
		},
		{
			"sample above one",
			Config{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5}},
			ErrInvalidSamplePct,
		},
		{
			"sample ignored when disabled",
			Config{ServiceName: "svc", Tracing: TracingConfig{SamplePct: 5}},
			nil,
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
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, Config{
		ServiceName: "querycache",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: false},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("nil telemetry primitive")
	}
	if _, ok := obs.Logger().(nopLogger); !ok {
		t.Errorf("Logger() = %T, want nopLogger when logging is disabled", obs.Logger())
	}
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_Invalid(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("error = %v, want ErrMissingServiceName", err)
	}
}

func TestNewObserver_RemoteExporterWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewObserver(context.Background(), Config{
		ServiceName: "querycache",
		Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1},
	})
	if !errors.Is(err, exporters.ErrEndpointNotConfigured) {
		t.Errorf("error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestNewObserver_LogWriter(t *testing.T) {
	var buf bytes.Buffer
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "querycache",
		Logging:     LoggingConfig{Enabled: true, Level: "warn", Writer: &buf},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	obs.Logger().Info(context.Background(), "dropped")
	obs.Logger().Warn(context.Background(), "rollback")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "rollback") {
		t.Errorf("log output = %q", out)
	}
}
