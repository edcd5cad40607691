package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"", NoopProvider, false},
		{"console", ConsoleProvider, false},
		{" Zipkin ", ZipkinProvider, false},
		{"otlp", OTLPGRPCProvider, false},
		{"otlp-http", OTLPHTTPProvider, false},
		{"jaeger", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProvider(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProvider(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewTraceProvider_None(t *testing.T) {
	tp, err := NewTraceProvider(logger.NewDiscard(), config.TelemetryConfig{TraceProvider: "none"})
	if err != nil {
		t.Fatalf("NewTraceProvider: %v", err)
	}
	if tp.Name() != NoopProvider {
		t.Errorf("name = %s, want none", tp.Name())
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewTraceProvider_ZipkinRequiresURL(t *testing.T) {
	_, err := NewTraceProvider(logger.NewDiscard(), config.TelemetryConfig{TraceProvider: "zipkin"})
	if err == nil {
		t.Error("expected error without zipkin url")
	}
}

func TestSpan_EndWithRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := NewTracerFrom(tp, "test")

	_, span := tracer.Start(context.Background(), "fetch", attribute.String("venue", "quickswap"))
	if span.TraceID() == "" {
		t.Error("expected a trace id on a recording span")
	}
	span.EndWith(errors.New("boom"))

	_, ok := tracer.Start(context.Background(), "ok")
	ok.EndWith(nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Status().Code != codes.Error || ended[0].Status().Description != "boom" {
		t.Errorf("status = %+v, want error boom", ended[0].Status())
	}
	if ended[1].Status().Code != codes.Unset {
		t.Errorf("status = %+v, want unset", ended[1].Status())
	}
}
