// Package tracing wires the engine's Lifecycle operations and capture
// ticks into OpenTelemetry spans, the way the teacher's
// internal/orchestration/tracing package instruments controlplane/pool
// operations (SPEC_FULL.md DOMAIN STACK). Trimmed to the exporters this
// module actually depends on: stdout, for a collector-free default, and
// none, for tests and operators who don't want span output at all.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether spans are exported at all. When false, a
	// no-op tracer is installed with zero overhead.
	Enabled bool
	// ServiceName identifies this process in exported spans.
	ServiceName string
}

// DefaultConfig matches SPEC_FULL.md's "stdout exporter default": tracing
// on, exporting to stdout, so an operator gets span output with no
// collector to stand up.
func DefaultConfig() Config {
	return Config{Enabled: true, ServiceName: "strategosd"}
}

// NewProvider builds and installs the process-wide TracerProvider
// described by cfg. Lifecycle and control pick up whatever provider is
// installed here via otel.Tracer, so this must run before either is
// constructed.
func NewProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: creating stdout exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "strategosd"
	}

	res := resource.NewSchemaless(serviceNameAttr(serviceName))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider, nil
}

// Tracer returns the lifecycle/control tracer from whatever provider is
// currently installed (the global no-op provider until NewProvider runs).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Shutdown flushes and stops provider, a no-op if provider is nil (tracing
// disabled).
func Shutdown(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
