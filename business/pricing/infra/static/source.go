// Package static serves fixed quotes from configuration. It backs DEV and
// SIM runs and tests where no network is available.
package static

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

var _ app.PriceSource = (*Source)(nil)

type Source struct {
	mu     sync.RWMutex
	quotes map[string]map[string]config.StaticQuote // venue -> asset, both lower case
	now    func() time.Time
}

func New(quotes map[string]map[string]config.StaticQuote) *Source {
	s := &Source{
		quotes: make(map[string]map[string]config.StaticQuote, len(quotes)),
		now:    time.Now,
	}
	for venue, byAsset := range quotes {
		for sym, q := range byAsset {
			s.Set(venue, sym, q)
		}
	}
	return s
}

func (s *Source) Name() string { return config.SourceStatic }

// Set replaces the quote for (venue, symbol).
func (s *Source) Set(venue, symbol string, q config.StaticQuote) {
	venue, symbol = strings.ToLower(venue), strings.ToLower(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotes[venue] == nil {
		s.quotes[venue] = make(map[string]config.StaticQuote)
	}
	s.quotes[venue][symbol] = q
}

func (s *Source) Fetch(ctx context.Context, symbol, venue string) (domain.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceQuote{}, err
	}

	s.mu.RLock()
	q, ok := s.quotes[strings.ToLower(venue)][strings.ToLower(symbol)]
	s.mu.RUnlock()
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeNoPriceAvailable,
			apperror.WithContext("static: "+venue+"/"+symbol))
	}

	return domain.NewPriceQuote(s.Name(), symbol,
		decimal.NewFromFloat(q.Price),
		decimal.NewFromFloat(q.LiquidityUSD),
		decimal.NewFromFloat(q.Fee),
		s.now())
}
