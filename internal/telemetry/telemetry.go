// Package telemetry wires OpenTelemetry tracing for pipeline stages.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Name is the instrumentation scope used by every tracer in this module.
const Name = "github.com/danielpatrickdp/xtpatterns"

// Config controls span export.
type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	Writer      io.Writer // span sink when Enabled; nil means discard
}

// DefaultConfig has tracing switched off.
func DefaultConfig() Config {
	return Config{ServiceName: "xtpatterns", Version: "dev"}
}

// Init installs a global TracerProvider that writes spans as JSON to
// cfg.Writer. With tracing disabled the global no-op provider is left in
// place and the returned shutdown does nothing. The shutdown func must be
// called before exit to flush pending spans.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, errors.New("telemetry: nil context")
	}
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = io.Discard
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(Name)
}

// Start opens a span for a pipeline stage.
func Start(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, stage, trace.WithAttributes(attrs...))
}
