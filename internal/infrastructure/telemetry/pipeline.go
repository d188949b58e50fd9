package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// pipelineShutdownTimeout bounds how long a pipeline may spend flushing
const pipelineShutdownTimeout = 10 * time.Second

// ExportConfig is the OTLP collector setup shared by the trace, metric and
// log pipelines of the billing service.
type ExportConfig struct {
	CollectorEndpoint string
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

func (c ExportConfig) resource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(c.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// stopPipeline runs stop with a bounded deadline. A nil stop means the
// pipeline was never started.
func stopPipeline(ctx context.Context, name string, logger *zap.Logger, stop func(context.Context) error) error {
	if stop == nil {
		logger.Debug("Pipeline not started, nothing to shut down", zap.String("pipeline", name))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pipelineShutdownTimeout)
	defer cancel()

	if err := stop(ctx); err != nil {
		logger.Error("Error shutting down telemetry pipeline", zap.String("pipeline", name), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s pipeline: %w", name, err)
	}
	logger.Info("Telemetry pipeline stopped", zap.String("pipeline", name))
	return nil
}
