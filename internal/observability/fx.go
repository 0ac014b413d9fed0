package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		provideMetrics,
	),
	fx.Invoke(registerPropagator, ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Otel.Enabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Otel.ExporterEndpoint,
		ExporterProtocol: cfg.Otel.ExporterProtocol,
		SamplingRatio:    cfg.Otel.SamplingRatio,
	}
}

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	}
}

func provideMetrics(cfg metrics.Config) *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer, cfg)
}

// registerPropagator makes inbound trace context and baggage visible to the tracing middleware.
func registerPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
