// Package tracing configures the OpenTelemetry tracer provider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/config"
	"github.com/fabfab/billchat/logging"
)

const ServiceName = "billchat"

// Init installs a global tracer provider exporting over OTLP HTTP. Tracing is
// off unless OTEL_ENABLED=true; the returned shutdown func is always safe to call.
func Init(ctx context.Context, cfg config.OTelConfig, logger *zap.Logger) func(context.Context) error {
	logger = logging.OrNop(logger)
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		logger.Debug("opentelemetry tracing disabled")
		return noop
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("create otlp exporter, tracing disabled", zap.Error(err))
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("opentelemetry tracer initialized", zap.String("endpoint", cfg.Endpoint))

	return tp.Shutdown
}
