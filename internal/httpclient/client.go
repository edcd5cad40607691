// Package httpclient is a small JSON-over-HTTP client for price APIs with
// tracing and request metrics built in.
package httpclient

import (
	"context"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "arbitrage-engine/httpclient"

	defaultTimeout     = 10 * time.Second
	perHostConnections = 5
	idleTimeout        = 2 * time.Minute
	keepAlive          = 10 * time.Second
)

// Client hands out request builders bound to one upstream provider.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

// TraceOption selects which bodies are attached to spans as events.
type TraceOption uint8

const (
	TraceRequest TraceOption = 1 << iota
	TraceResponse
)

type settings struct {
	provider  string
	baseURL   string
	headers   map[string]string
	timeout   time.Duration
	transport http.RoundTripper
	meters    metric.MeterProvider
	tracer    trace.Tracer
	bodies    TraceOption
}

// ClientOption configures NewInstrumentedClient.
type ClientOption func(*settings)

// WithProviderName tags spans and metrics with the upstream's name.
func WithProviderName(name string) ClientOption {
	return func(s *settings) { s.provider = name }
}

// WithBaseURL is prefixed to every relative request path.
func WithBaseURL(url string) ClientOption {
	return func(s *settings) { s.baseURL = url }
}

// WithHeaders are sent on every request. Request-level headers win.
func WithHeaders(headers map[string]string) ClientOption {
	return func(s *settings) { s.headers = headers }
}

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(s *settings) { s.timeout = d }
}

// WithRoundTripper replaces the pooled default transport. It is still
// wrapped for tracing.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(s *settings) { s.transport = rt }
}

func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(s *settings) { s.meters = mp }
}

// WithTraceOptions sets the tracer and which bodies get recorded on spans.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(s *settings) {
		s.tracer = tracer
		for _, o := range opts {
			s.bodies |= o
		}
	}
}

type instrumentedClient struct {
	http     *http.Client
	settings settings
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewInstrumentedClient builds a Client. Without options it talks to
// absolute URLs with a 10s timeout and the global otel providers.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	s := settings{provider: "default", timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	if s.meters == nil {
		s.meters = otel.GetMeterProvider()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}

	transport := s.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			DialContext:     (&net.Dialer{KeepAlive: keepAlive}).DialContext,
			MaxConnsPerHost: perHostConnections,
			IdleConnTimeout: idleTimeout,
		}
	}

	meter := s.meters.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", s.provider)))

	requests, err := meter.Int64Counter("http_client_requests_total",
		metric.WithDescription("HTTP requests sent to price providers"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http_client_request_duration_seconds",
		metric.WithDescription("Round trip time of provider requests"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &instrumentedClient{
		http: &http.Client{
			Timeout: s.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				})),
		},
		settings: s,
		requests: requests,
		latency:  latency,
	}, nil
}

func (c *instrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

func (c *instrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	r := &requestBuilder{
		client:     c,
		headers:    maps.Clone(c.settings.headers),
		onResponse: StatusErrorHandler,
	}
	if r.headers == nil {
		r.headers = map[string]string{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
