package app

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

// ConfidenceFunc scores a candidate from its raw edge fraction.
type ConfidenceFunc func(edge decimal.Decimal) decimal.Decimal

// FixedConfidence scores every candidate the same.
func FixedConfidence(c decimal.Decimal) ConfidenceFunc {
	return func(decimal.Decimal) decimal.Decimal { return c }
}

// Scanner turns quotes into candidates and filters and ranks them.
type Scanner struct {
	minProfitUSD    decimal.Decimal
	minLiquidityUSD decimal.Decimal
	minConfidence   decimal.Decimal

	now   func() time.Time
	newID func() string
}

type ScannerOption func(*Scanner)

// WithScannerClock replaces time.Now for DetectedAt.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// WithIDGenerator replaces the uuid generator for opportunity ids.
func WithIDGenerator(fn func() string) ScannerOption {
	return func(s *Scanner) { s.newID = fn }
}

func NewScanner(cfg config.ScannerConfig, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		minProfitUSD:    cfg.MinProfitUSDDecimal(),
		minLiquidityUSD: cfg.MinLiquidityUSDDecimal(),
		minConfidence:   cfg.MinConfidenceDecimal(),
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build produces one candidate per asset with at least two quotes: buy at
// the cheapest quote, sell at the dearest. Assets keep first-seen order and
// equal prices keep input order.
func (s *Scanner) Build(strategyID string, quotes []pricingDomain.PriceQuote, notional decimal.Decimal, confidence ConfidenceFunc) []domain.Opportunity {
	var order []string
	groups := make(map[string][]pricingDomain.PriceQuote)
	for _, q := range quotes {
		sym := strings.ToUpper(q.Asset)
		if _, ok := groups[sym]; !ok {
			order = append(order, sym)
		}
		groups[sym] = append(groups[sym], q)
	}

	out := make([]domain.Opportunity, 0, len(order))
	for _, sym := range order {
		group := groups[sym]
		if len(group) < 2 {
			continue
		}

		sorted := slices.Clone(group)
		slices.SortStableFunc(sorted, func(a, b pricingDomain.PriceQuote) int {
			return a.PriceUSD.Cmp(b.PriceUSD)
		})
		buy, sell := sorted[0], sorted[len(sorted)-1]
		if !buy.PriceUSD.IsPositive() {
			continue
		}

		edge := sell.PriceUSD.Sub(buy.PriceUSD).Div(buy.PriceUSD)
		fees := buy.Fee.Add(sell.Fee)

		conf := decimal.Zero
		if confidence != nil {
			conf = confidence(edge)
		}

		out = append(out, domain.Opportunity{
			ID:               s.newID(),
			StrategyID:       strategyID,
			Asset:            sym,
			BuySource:        buy.Source,
			SellSource:       sell.Source,
			BuyPrice:         buy.PriceUSD,
			SellPrice:        sell.PriceUSD,
			BuyLiquidityUSD:  buy.LiquidityUSD,
			SellLiquidityUSD: sell.LiquidityUSD,
			Edge:             edge,
			FeeFraction:      fees,
			Confidence:       conf,
			NotionalUSD:      notional,
			Profit:           domain.ComputeProfit(notional, buy.PriceUSD, sell.PriceUSD, fees, decimal.Zero),
			DetectedAt:       s.now(),
		})
	}
	return out
}

// Accepts reports whether opp clears every threshold, and why not.
func (s *Scanner) Accepts(opp domain.Opportunity) (bool, string) {
	switch {
	case opp.Profit.Net.LessThan(s.minProfitUSD):
		return false, "net profit " + opp.Profit.Net.StringFixed(2) + " below " + s.minProfitUSD.String()
	case opp.MinLiquidityUSD().LessThan(s.minLiquidityUSD):
		return false, "liquidity " + opp.MinLiquidityUSD().StringFixed(0) + " below " + s.minLiquidityUSD.String()
	case opp.Confidence.LessThan(s.minConfidence):
		return false, "confidence " + opp.Confidence.String() + " below " + s.minConfidence.String()
	}
	return true, ""
}

// Rank drops candidates that fail a threshold and orders the rest by
// profit times confidence, highest first. Ties keep input order. The
// returned opportunities are copies with a 1-based Rank.
func (s *Scanner) Rank(candidates []domain.Opportunity) []domain.Opportunity {
	ranked := make([]domain.Opportunity, 0, len(candidates))
	for _, c := range candidates {
		if ok, _ := s.Accepts(c); ok {
			ranked = append(ranked, c)
		}
	}

	slices.SortStableFunc(ranked, func(a, b domain.Opportunity) int {
		return b.Score().Cmp(a.Score())
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Scan builds and ranks in one step with a fixed confidence.
func (s *Scanner) Scan(strategyID string, quotes []pricingDomain.PriceQuote, notional, confidence decimal.Decimal) []domain.Opportunity {
	return s.Rank(s.Build(strategyID, quotes, notional, FixedConfidence(confidence)))
}
