package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/vulndeck/api/internal/config"
	"github.com/vulndeck/api/pkg/logger"
)

// initTracing installs a local tracer provider so service spans carry the
// resource attributes. Span export is left to whatever processor the
// deployment adds; without one, spans are recorded but not shipped.
func initTracing(cfg *config.Config, log *logger.Logger) func(context.Context) error {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.App.Name),
			semconv.DeploymentEnvironmentKey.String(cfg.App.Env),
		),
	)
	if err != nil {
		log.Warn("failed to create trace resource, using default", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown
}
