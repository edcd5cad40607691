// Package coingecko reads aggregated spot prices from the CoinGecko simple
// price API.
package coingecko

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/httpclient"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

const (
	tracerName = "coingecko"

	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	simplePriceEndpoint = "/simple/price"
	apiKeyHeader        = "X-Cg-Pro-Api-Key"
	requestTimeout      = 10 * time.Second
)

var _ app.PriceSource = (*Source)(nil)

// simplePriceResponse is keyed by coin id, then by field:
//
//	{"ethereum": {"usd": 2347.5, "usd_24h_vol": 1.2e10}}
type simplePriceResponse map[string]map[string]decimal.Decimal

// Source is a PriceSource backed by CoinGecko. It reports no venue fee and
// uses 24h volume as the liquidity figure.
type Source struct {
	client   httpclient.Client
	registry *asset.Registry
	limiter  *ratelimit.Limiter
	tracer   *apm.Tracer
	now      func() time.Time
}

func New(cfg config.CoinGeckoConfig, registry *asset.Registry, limiter *ratelimit.Limiter) (*Source, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("coingecko"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(requestTimeout),
		httpclient.WithHeaders(headers),
		httpclient.WithTraceOptions(otel.Tracer(tracerName), httpclient.TraceResponse),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err), apperror.WithContext("coingecko client"))
	}

	if limiter == nil {
		limiter = ratelimit.New(cfg.RequestsPerMinute)
	}

	return &Source{
		client:   client,
		registry: registry,
		limiter:  limiter,
		tracer:   apm.NewTracer(tracerName),
		now:      time.Now,
	}, nil
}

func (s *Source) Name() string { return config.SourceCoinGecko }

func (s *Source) Fetch(ctx context.Context, symbol, venue string) (q domain.PriceQuote, err error) {
	ctx, span := s.tracer.Start(ctx, "coingecko.fetch", attribute.String("asset", symbol))
	defer func() { span.EndWith(err) }()

	id, ok := s.registry.PriceID(symbol)
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeUnsupportedPriceAsset,
			apperror.WithContext("coingecko: "+symbol))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.PriceQuote{}, err
	}

	var result simplePriceResponse
	_, err = s.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "simple_price")),
		httpclient.WithResponseErrorHandler(httpclient.StatusErrorHandler),
	).
		SetQueryParam("ids", id).
		SetQueryParam("vs_currencies", "usd").
		SetQueryParam("include_24hr_vol", "true").
		SetResult(&result).
		Get(ctx, simplePriceEndpoint)
	if err != nil {
		return domain.PriceQuote{}, apperror.New(apperror.CodeCoinGeckoAPIError,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
	}

	fields, ok := result[id]
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeNoPriceAvailable,
			apperror.WithContext("coingecko returned no entry for "+id))
	}
	price, ok := fields["usd"]
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeNoPriceAvailable,
			apperror.WithContext("coingecko returned no usd price for "+id))
	}

	span.SetAttributes(attribute.String("price_usd", price.String()))
	return domain.NewPriceQuote(s.Name(), strings.ToUpper(symbol), price, fields["usd_24h_vol"], decimal.Zero, s.now())
}
