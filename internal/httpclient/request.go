package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request builds and executes a single HTTP call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result any) Request
}

// ResponseErrorHandler turns a status and body into an error, or nil when
// the response is usable.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric dimension, e.g. endpoint or symbol.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

// RequestOption configures one request builder.
type RequestOption func(*requestBuilder)

func WithLabels(labels ...*Label) RequestOption {
	return func(r *requestBuilder) { r.labels = labels }
}

func WithResponseErrorHandler(h ResponseErrorHandler) RequestOption {
	return func(r *requestBuilder) {
		if h != nil {
			r.onResponse = h
		}
	}
}

// Response keeps the drained body next to the raw response.
type Response struct {
	*http.Response
	body []byte
}

func (r *Response) Body() []byte { return r.body }

func (r *Response) IsError() bool { return r.StatusCode >= http.StatusBadRequest }

type requestBuilder struct {
	client     *instrumentedClient
	headers    map[string]string
	query      neturl.Values
	body       any
	result     any
	onResponse ResponseErrorHandler
	labels     []*Label
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodPost, path)
}

func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = neturl.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult decodes a successful JSON body into result.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) url(path string) string {
	u := path
	if base := r.client.settings.baseURL; base != "" && !strings.HasPrefix(path, "http") {
		u = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + r.query.Encode()
	}
	return u + "?" + r.query.Encode()
}

func (r *requestBuilder) payload() (io.Reader, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	}
	data, err := json.Marshal(r.body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	if _, ok := r.headers["Content-Type"]; !ok {
		r.headers["Content-Type"] = "application/json"
	}
	return bytes.NewReader(data), nil
}

func (r *requestBuilder) do(ctx context.Context, method, path string) (resp *Response, err error) {
	target := r.url(path)
	s := r.client.settings

	ctx, span := s.tracer.Start(ctx, "http."+strings.ToLower(method), trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", target),
		attribute.String("provider", s.provider),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, context.DeadlineExceeded) {
				span.SetAttributes(attribute.Bool("request.timeout", true))
			}
		}
		r.observe(ctx, start, err == nil)
		span.End()
	}()

	body, err := r.payload()
	if err != nil {
		return nil, err
	}
	if s.bodies&TraceRequest != 0 {
		if text, ok := r.body.(string); ok {
			span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", text)))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	raw, err := r.client.http.Do(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(raw.Body)
	raw.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", raw.StatusCode))
	if s.bodies&TraceResponse != 0 {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(data))))
	}

	resp = &Response{Response: raw, body: data}
	if err := r.onResponse(raw.StatusCode, data); err != nil {
		return resp, err
	}
	if r.result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, r.result); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

func (r *requestBuilder) observe(ctx context.Context, start time.Time, ok bool) {
	attrs := make([]attribute.KeyValue, 0, len(r.labels)+1)
	attrs = append(attrs, attribute.Bool("success", ok))
	for _, l := range r.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	set := metric.WithAttributes(attrs...)
	r.client.requests.Add(ctx, 1, set)
	r.client.latency.Record(ctx, time.Since(start).Seconds(), set)
}
