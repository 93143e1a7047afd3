// Package tracer wires up the optional OTLP tracer used to observe drive
// transitions in the field.
package tracer

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config describes the OTLP exporter target.
type Config struct {
	// ServiceName becomes the service.name resource attribute.
	ServiceName string
	// Endpoint is the OTLP gRPC collector address (host:port). Empty means
	// the exporter's default localhost target.
	Endpoint string
	// Insecure disables transport security. Typical for an on-device
	// collector reachable only over USB networking.
	Insecure bool
}

// NewConfig returns a Config for the named service with everything else at
// its default.
func NewConfig(serviceName string) Config {
	return Config{ServiceName: serviceName}
}

// NewTracerProvider builds an OTLP-backed provider, installs it as the
// global provider, and returns it. The caller owns Shutdown.
func NewTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("tracer: service name is required")
	}

	hostname, _ := os.Hostname()
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.HostNameKey.String(hostname),
		attribute.Int("process.pid", os.Getpid()),
	))
	if err != nil {
		return nil, errors.Wrap(err, "tracer: building resource")
	}

	opts := []otlptracegrpc.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracer: OTLP exporter creation: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
