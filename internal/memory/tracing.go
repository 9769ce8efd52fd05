package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig controls span emission for indexer operations
// (§6 memorySearch.tracing.enabled). This module only creates spans;
// wiring an exporter onto the registered TracerProvider is the embedding
// host process's concern.
type TracingConfig struct {
	Enabled bool
}

// InitTracing installs a default SDK TracerProvider as the global provider
// when tracing is enabled. Callers embedding this module in a host process
// that already manages its own TracerProvider should skip this and let the
// package's tracer pick up the globally registered one on first use.
func InitTracing(cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("memory")
	return tp.Shutdown, nil
}
