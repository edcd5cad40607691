package app

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/cache"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

const (
	tracerName = "pricing.aggregator"
	meterName  = "pricing.aggregator"
)

type aggregatorMetrics struct {
	requests       metric.Int64Counter
	sourceFailures metric.Int64Counter
	fetchLatency   metric.Float64Histogram
}

// Aggregator turns quotes from several sources into one median USD price per
// (venue, asset), cached for a TTL.
type Aggregator struct {
	registry     *asset.Registry
	policy       *retry.Policy
	log          logger.LoggerInterface
	ttl          time.Duration
	fetchTimeout time.Duration
	assets       []string

	sources map[string][]PriceSource // venue -> sources, fixed after construction
	cache   *cache.Cache[string, domain.AggregatedPrice]
	store   PriceStore
	now     func() time.Time

	mu       sync.RWMutex
	fallback map[string]decimal.Decimal
	flight   singleflight.Group

	tracer  *apm.Tracer
	metrics *aggregatorMetrics
}

type AggregatorOption func(*Aggregator)

// WithPriceStore adds a shared cache tier behind the in-process cache.
func WithPriceStore(s PriceStore) AggregatorOption {
	return func(a *Aggregator) { a.store = s }
}

// WithClock replaces time.Now for TTL and observation timestamps.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// WithSource registers src for venue.
func WithSource(venue string, src PriceSource) AggregatorOption {
	return func(a *Aggregator) {
		venue = strings.ToLower(venue)
		a.sources[venue] = append(a.sources[venue], src)
	}
}

func NewAggregator(cfg config.PricingConfig, registry *asset.Registry, policy *retry.Policy, log logger.LoggerInterface, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		registry:     registry,
		policy:       policy,
		log:          log,
		ttl:          cfg.CacheTTL,
		fetchTimeout: cfg.FetchTimeout,
		assets:       cfg.Assets,
		sources:      make(map[string][]PriceSource),
		fallback:     cfg.FallbackPricesDecimal(),
		now:          time.Now,
		tracer:       apm.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.cache = cache.New[string, domain.AggregatedPrice](a.ttl).WithClock(a.now)
	a.initMetrics()
	return a
}

func (a *Aggregator) initMetrics() {
	meter := otel.Meter(meterName)
	a.metrics = &aggregatorMetrics{}

	a.metrics.requests, _ = meter.Int64Counter(
		"pricing_requests_total",
		metric.WithDescription("Price requests by resolution path"),
	)
	a.metrics.sourceFailures, _ = meter.Int64Counter(
		"pricing_source_failures_total",
		metric.WithDescription("Source fetches that failed after retries"),
	)
	a.metrics.fetchLatency, _ = meter.Float64Histogram(
		"pricing_fetch_latency_ms",
		metric.WithDescription("Fan-out latency across all sources of a venue"),
		metric.WithUnit("ms"),
	)
}

// Venues returns the venues that have at least one source, sorted.
func (a *Aggregator) Venues() []string {
	out := make([]string, 0, len(a.sources))
	for v := range a.sources {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func cacheKey(venue, symbol string) string {
	return venue + "|" + symbol
}

// GetUSDPrice returns the median USD price of symbol at venue.
//
// Stablecoins resolve to exactly 1 without touching any source. Otherwise the
// in-process cache, then the shared store, then every source of the venue is
// consulted. When no source answers the configured fallback price is returned
// with IsFallback set; fallback results are never cached.
func (a *Aggregator) GetUSDPrice(ctx context.Context, symbol, venue string) (price domain.AggregatedPrice, err error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	venue = strings.ToLower(strings.TrimSpace(venue))
	if symbol == "" {
		return domain.AggregatedPrice{}, apperror.New(apperror.CodeInvalidAsset, apperror.WithContext("empty symbol"))
	}

	ctx, span := a.tracer.Start(ctx, "pricing.get_usd_price",
		attribute.String("asset", symbol),
		attribute.String("venue", venue),
	)
	defer func() { span.EndWith(err) }()

	if a.registry.IsStable(symbol) {
		a.count(ctx, "stable")
		return domain.AggregatedPrice{
			Asset:       symbol,
			Venue:       venue,
			PriceUSD:    decimal.NewFromInt(1),
			CachedUntil: a.now(),
			IsStable:    true,
		}, nil
	}

	key := cacheKey(venue, symbol)
	if cached, ok := a.cache.Get(ctx, key); ok {
		a.count(ctx, "cache")
		return cached, nil
	}

	if shared, ok := a.fromStore(ctx, venue, symbol); ok {
		a.count(ctx, "store")
		return shared, nil
	}

	sources, known := a.sources[venue]
	if !known {
		return domain.AggregatedPrice{}, apperror.New(apperror.CodeUnknownVenue, apperror.WithContext(venue))
	}

	// Concurrent misses for one key share a single fan-out.
	v, err, _ := a.flight.Do(key, func() (any, error) {
		if cached, ok := a.cache.Get(ctx, key); ok {
			return cached, nil
		}
		return a.compute(ctx, sources, symbol, venue)
	})
	if err != nil {
		return domain.AggregatedPrice{}, err
	}
	agg := v.(domain.AggregatedPrice)
	if agg.IsFallback {
		return agg, nil
	}

	span.SetAttributes(
		attribute.Int("samples", agg.SampleCount),
		attribute.String("price_usd", agg.PriceUSD.String()),
	)
	a.count(ctx, "computed")
	return agg, nil
}

// compute fetches, aggregates and caches one (venue, asset) price, falling
// back to the static price when no source answers.
func (a *Aggregator) compute(ctx context.Context, sources []PriceSource, symbol, venue string) (domain.AggregatedPrice, error) {
	quotes := a.fetchAll(ctx, sources, symbol, venue)

	agg, ok := domain.Aggregate(symbol, venue, quotes, a.now().Add(a.ttl))
	if !ok {
		return a.fallbackPrice(ctx, symbol, venue)
	}

	a.cache.Set(ctx, cacheKey(venue, symbol), agg, a.ttl)
	if a.store != nil {
		if err := a.store.Set(ctx, agg, a.ttl); err != nil {
			a.log.Warn(ctx, "price store write failed", "venue", venue, "asset", symbol, "error", err)
		}
	}
	return agg, nil
}

func (a *Aggregator) fromStore(ctx context.Context, venue, symbol string) (domain.AggregatedPrice, bool) {
	if a.store == nil {
		return domain.AggregatedPrice{}, false
	}

	p, found, err := a.store.Get(ctx, venue, symbol)
	if err != nil {
		a.log.Warn(ctx, "price store read failed", "venue", venue, "asset", symbol, "error", err)
		return domain.AggregatedPrice{}, false
	}
	if !found {
		return domain.AggregatedPrice{}, false
	}

	remaining := p.CachedUntil.Sub(a.now())
	if remaining <= 0 {
		return domain.AggregatedPrice{}, false
	}
	a.cache.Set(ctx, cacheKey(venue, symbol), p, remaining)
	return p, true
}

// fetchAll queries every source concurrently. Failed sources are logged and
// skipped; results keep source registration order.
func (a *Aggregator) fetchAll(ctx context.Context, sources []PriceSource, symbol, venue string) []domain.PriceQuote {
	start := a.now()
	results := make([]*domain.PriceQuote, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			q, err := retry.Do(ctx, a.policy, func(ctx context.Context) (domain.PriceQuote, error) {
				if a.fetchTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
					defer cancel()
				}
				return src.Fetch(ctx, symbol, venue)
			})
			if err != nil {
				a.metrics.sourceFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", src.Name())))
				a.log.Warn(ctx, "price source failed",
					"source", src.Name(),
					"venue", venue,
					"asset", symbol,
					"error", err,
				)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	a.metrics.fetchLatency.Record(ctx, float64(a.now().Sub(start).Milliseconds()),
		metric.WithAttributes(attribute.String("venue", venue)))

	quotes := make([]domain.PriceQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

func (a *Aggregator) fallbackPrice(ctx context.Context, symbol, venue string) (domain.AggregatedPrice, error) {
	a.mu.RLock()
	fb, ok := a.fallback[symbol]
	a.mu.RUnlock()

	if !ok {
		a.count(ctx, "unavailable")
		return domain.AggregatedPrice{}, apperror.New(apperror.CodeNoPriceAvailable,
			apperror.WithContext(venue+"/"+symbol))
	}

	a.log.Warn(ctx, "all price sources failed, using fallback", "venue", venue, "asset", symbol, "price", fb.String())
	a.count(ctx, "fallback")
	return domain.AggregatedPrice{
		Asset:       symbol,
		Venue:       venue,
		PriceUSD:    fb,
		CachedUntil: a.now(),
		IsFallback:  true,
	}, nil
}

func (a *Aggregator) count(ctx context.Context, path string) {
	a.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

// GetAllPrices resolves every configured asset at venue. Assets without any
// price are left out.
func (a *Aggregator) GetAllPrices(ctx context.Context, venue string) map[string]domain.AggregatedPrice {
	out := make(map[string]domain.AggregatedPrice, len(a.assets))
	for _, sym := range a.assets {
		p, err := a.GetUSDPrice(ctx, sym, venue)
		if err != nil {
			a.log.Debug(ctx, "no price", "venue", venue, "asset", sym, "error", err)
			continue
		}
		out[p.Asset] = p
	}
	return out
}

// ConvertToUSD values amount at its asset's venue price.
func (a *Aggregator) ConvertToUSD(ctx context.Context, amount asset.Amount, venue string) (decimal.Decimal, error) {
	p, err := a.GetUSDPrice(ctx, amount.Asset().Symbol(), venue)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.ToDecimal().Mul(p.PriceUSD), nil
}

// ConvertFromUSD returns how much of target usd buys, truncated to the
// asset's decimals.
func (a *Aggregator) ConvertFromUSD(ctx context.Context, usd decimal.Decimal, target *asset.Asset, venue string) (asset.Amount, error) {
	p, err := a.GetUSDPrice(ctx, target.Symbol(), venue)
	if err != nil {
		return asset.Amount{}, err
	}
	if !p.PriceUSD.IsPositive() {
		return asset.Amount{}, apperror.New(apperror.CodeNoPriceAvailable, apperror.WithContext(target.Symbol()))
	}
	return asset.ParseDecimal(target, usd.Div(p.PriceUSD))
}

// UpdateFallbackPrice replaces the fallback price used when every source fails.
func (a *Aggregator) UpdateFallbackPrice(symbol string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("fallback price must be positive"))
	}
	a.mu.Lock()
	a.fallback[strings.ToUpper(symbol)] = price
	a.mu.Unlock()
	return nil
}

// ClearCache drops every in-process cached price. The shared store expires on
// its own.
func (a *Aggregator) ClearCache() {
	a.cache.Clear()
}

func (a *Aggregator) Close() {
	a.cache.Close()
}
