// Package apm wires OpenTelemetry tracing exporters and exposes a thin tracer
// wrapper used by the business layer.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

type Provider string

const (
	ConsoleProvider  Provider = "console"
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp"
	OTLPHTTPProvider Provider = "otlp-http"
	NoopProvider     Provider = "none"
)

// ParseProvider maps a config value to a Provider. Empty means none.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ConsoleProvider, ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, NoopProvider:
		return p, nil
	case "":
		return NoopProvider, nil
	default:
		return "", fmt.Errorf("unknown trace provider %q", s)
	}
}

type TraceProvider interface {
	Name() Provider
	Stop() error
}

type traceProvider struct {
	name Provider
	tp   *sdktrace.TracerProvider
}

func (p *traceProvider) Name() Provider { return p.name }

func (p *traceProvider) Stop() error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// NewTraceProvider builds the exporter selected by cfg.TraceProvider and
// installs it as the global tracer provider. The none provider leaves the
// global no-op tracer in place.
func NewTraceProvider(log logger.LoggerInterface, cfg config.TelemetryConfig) (TraceProvider, error) {
	name, err := ParseProvider(cfg.TraceProvider)
	if err != nil {
		return nil, err
	}
	if name == NoopProvider {
		return &traceProvider{name: name}, nil
	}

	exp, err := newExporter(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", name, err)
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(name)),
		))
	if err != nil {
		rsrc = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(context.Background(), "tracing initialized", "provider", string(name))
	return &traceProvider{name: name, tp: tp}, nil
}

func newExporter(name Provider, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch name {
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ZipkinProvider:
		if cfg.ZipkinURL == "" {
			return nil, fmt.Errorf("telemetry.zipkin_url is required")
		}
		return zipkin.New(cfg.ZipkinURL)
	case OTLPGRPCProvider:
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("telemetry.otlp_endpoint is required")
		}
		return otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpointURL(cfg.OTLPEndpoint))
	case OTLPHTTPProvider:
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("telemetry.otlp_endpoint is required")
		}
		return otlptracehttp.New(context.Background(), otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	}
	return nil, fmt.Errorf("unsupported provider %q", name)
}
