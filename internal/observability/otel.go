// Package observability provides OpenTelemetry trace export for the
// application.
//
// Genkit instruments every model call and flow with OTel spans on its own
// TracerProvider; this package attaches an OTLP HTTP exporter to it so those
// spans reach a collector. Tracing is opt-in: an empty endpoint leaves the
// provider without an exporter and Setup returns a no-op shutdown.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector endpoint, host:port without
	// scheme (e.g. "localhost:4318"). Empty disables tracing.
	Endpoint string

	// ServiceName is the service name attached to exported spans.
	ServiceName string

	// Environment is the deployment environment tag (development, production).
	Environment string
}

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider and
// returns a shutdown function that flushes pending spans. It must run before
// genkit.Init so the provider is ready when the first span starts.
//
// Export failures never fail startup; tracing degrades to disabled with a
// warning.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return noop, nil
	}

	// Genkit's TracerProvider reads service identity from the standard OTel
	// env vars. Setup runs once during startup before goroutines spawn, so
	// os.Setenv is safe here.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}
