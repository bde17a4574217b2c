// Package tracing wires OpenTelemetry spans across the request path:
// transport entry (C2), router dispatch (C3), and the broker, push and
// handler operations (C5-C7) a dispatch fans out to. Store calls get no
// span of their own.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls whether and how tracing is enabled.
type Config struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Init installs the global TracerProvider. When cfg.Enabled is false it
// installs a no-op provider, so instrumented code paths never need to
// check whether tracing is turned on. The returned shutdown func flushes
// buffered spans and must be called before the process exits.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: create stdout exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "a2arun"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	if cfg.SamplingRate <= 0 {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the globally installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
