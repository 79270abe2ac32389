// Package tracer sets up optional OTLP tracing for a hostfs run.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	log "hostfs/logger"
)

const shutdownTimeout = 5 * time.Second

// Config describes the OTLP exporter.
type Config struct {
	// ServiceName becomes the service.name resource attribute.
	ServiceName string
	// Endpoint is the OTLP gRPC collector address (host:port). Tracing is
	// disabled when it is empty.
	Endpoint string
	Insecure bool
	// Attributes are appended to the resource.
	Attributes []attribute.KeyValue
}

func NewConfig(serviceName, endpoint string, insecure bool) Config {
	return Config{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		Insecure:    insecure,
	}
}

// Setup installs a global TracerProvider when cfg has an endpoint. The
// returned func flushes and stops it; it is safe to call when tracing is off.
func Setup(ctx context.Context, cfg Config) (func(), error) {
	if cfg.Endpoint == "" {
		return func() {}, nil
	}

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return func() {}, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to flush traces")
		}
	}, nil
}

// NewTracerProvider builds an OTEL TracerProvider according to cfg and
// registers it globally. The caller must Shutdown it.
func NewTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("tracer: service name is required")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(defaultAttributes(cfg)...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracer: resource creation: %w", err)
	}

	exp, err := buildExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// one short run: export synchronously
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

func defaultAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.Int("process.pid", os.Getpid()),
	}
	attrs = append(attrs, cfg.Attributes...)
	return attrs
}

func buildExporter(ctx context.Context, cfg Config) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracer: OTLP exporter creation: %w", err)
	}
	return exp, nil
}
