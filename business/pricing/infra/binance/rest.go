package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/httpclient"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

const (
	BaseAPIURL   = "https://api.binance.com"
	BaseAPIURLUS = "https://api.binance.us"

	bookTickerEndpoint = "/api/v3/ticker/bookTicker"
	httpTimeout        = 10 * time.Second
)

// APIError is an error body returned by the Binance REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Msg)
}

// Unwrap exposes the HTTP status so retry classification sees it.
func (e *APIError) Unwrap() error {
	return &httpclient.StatusError{StatusCode: e.StatusCode, Body: e.Msg}
}

func apiErrorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	apiErr := APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return httpclient.StatusErrorHandler(statusCode, body)
}

// RESTClient reads top of book over the public REST API.
type RESTClient struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
}

func NewRESTClient(baseURL string, limiter *ratelimit.Limiter) (*RESTClient, error) {
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	if limiter == nil {
		limiter = ratelimit.New(0)
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(httpTimeout),
		httpclient.WithTraceOptions(otel.Tracer(tracerName), httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &RESTClient{client: client, limiter: limiter}, nil
}

// BookTicker fetches the best bid and ask for market.
func (c *RESTClient) BookTicker(ctx context.Context, market string) (BookTicker, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return BookTicker{}, err
	}

	var result BookTicker
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "book_ticker"),
			httpclient.NewLabel("symbol", market),
		),
		httpclient.WithResponseErrorHandler(apiErrorHandler),
	).
		SetQueryParam("symbol", market).
		SetResult(&result).
		Get(ctx, bookTickerEndpoint)
	if err != nil {
		return BookTicker{}, apperror.New(apperror.CodeBinanceAPIError,
			apperror.WithCause(err),
			apperror.WithContext(market))
	}
	return result, nil
}
