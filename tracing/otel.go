package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once    sync.Once
	initErr error
	tp      *sdktrace.TracerProvider
	mu      sync.Mutex
)

// InitTracer installs the global tracer provider exporting to the OTLP HTTP collector. Only the
// first call has any effect.
func InitTracer(tSettings *settings.Settings, serviceName string) error {
	once.Do(func() {
		if tSettings.Tracing.CollectorURL == nil {
			initErr = errors.NewConfigurationError("tracing enabled without a collector url")
			return
		}

		exporter, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(tSettings.Tracing.CollectorURL.Host),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			initErr = errors.NewProcessingError("failed to create OTLP exporter", err)
			return
		}

		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				semconv.ServiceVersionKey.String(tSettings.Version),
				attribute.String("commit", tSettings.Commit),
				attribute.String("server_id", tSettings.Cluster.ServerID),
			),
		)
		if err != nil {
			initErr = errors.NewProcessingError("failed to create resource", err)
			return
		}

		SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tSettings.Tracing.SamplingRate)),
			sdktrace.WithResource(res),
		))
	})

	return initErr
}

// SetTracerProvider installs provider globally and makes it the one ShutdownTracer flushes.
func SetTracerProvider(provider *sdktrace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()

	tp = provider

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// ShutdownTracer flushes and stops the installed tracer provider. Later calls are no-ops.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp == nil {
		return nil
	}

	if err := tp.ForceFlush(ctx); err != nil {
		return errors.NewProcessingError("failed to flush spans", err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewProcessingError("failed to shutdown tracer", err)
	}

	tp = nil

	return nil
}
