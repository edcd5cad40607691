// Package binance prices assets from Binance top of book, preferring a live
// bookTicker stream and falling back to REST when the stream is stale.
package binance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

var _ app.PriceSource = (*Source)(nil)

type Source struct {
	rest         *RESTClient
	stream       *Stream
	quoteAsset   string
	takerFee     decimal.Decimal
	staleTimeout time.Duration
	now          func() time.Time
	tracer       *apm.Tracer
}

type Option func(*Source)

// WithStream makes the source read fresh books from s before going to REST.
func WithStream(s *Stream) Option {
	return func(src *Source) { src.stream = s }
}

func WithClock(now func() time.Time) Option {
	return func(src *Source) { src.now = now }
}

func New(cfg config.BinanceConfig, limiter *ratelimit.Limiter, opts ...Option) (*Source, error) {
	rest, err := NewRESTClient(cfg.RESTURL, limiter)
	if err != nil {
		return nil, err
	}

	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}
	stale := cfg.StaleTimeout
	if stale <= 0 {
		stale = 5 * time.Second
	}

	s := &Source{
		rest:         rest,
		quoteAsset:   quote,
		takerFee:     decimal.NewFromFloat(cfg.TakerFee),
		staleTimeout: stale,
		now:          time.Now,
		tracer:       apm.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string { return config.SourceBinance }

// Markets returns the Binance markets for assets, used to build a Stream.
func (s *Source) Markets(assets []string) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = MarketSymbol(a, s.quoteAsset)
	}
	return out
}

func (s *Source) Fetch(ctx context.Context, symbol, venue string) (q domain.PriceQuote, err error) {
	market := MarketSymbol(symbol, s.quoteAsset)

	ctx, span := s.tracer.Start(ctx, "binance.fetch", attribute.String("market", market))
	defer func() { span.EndWith(err) }()

	book, fresh := s.streamBook(market)
	span.SetAttributes(attribute.Bool("from_stream", fresh))

	if !fresh {
		ticker, err := s.rest.BookTicker(ctx, market)
		if err != nil {
			return domain.PriceQuote{}, err
		}
		book = bookFromTicker(ticker, s.now())
	}

	return domain.NewPriceQuote(s.Name(), symbol, book.Mid(), book.DepthUSD(), s.takerFee, book.UpdatedAt)
}

func (s *Source) streamBook(market string) (Book, bool) {
	if s.stream == nil {
		return Book{}, false
	}
	b, ok := s.stream.Book(market)
	if !ok || s.now().Sub(b.UpdatedAt) > s.staleTimeout {
		return Book{}, false
	}
	return b, true
}
