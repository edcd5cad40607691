package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AggregatedPrice is the robust USD price of an asset at a venue.
type AggregatedPrice struct {
	Asset        string
	Venue        string
	PriceUSD     decimal.Decimal // median of the sample prices
	LiquidityUSD decimal.Decimal // median of the sample liquidities
	Fee          decimal.Decimal // median of the sample fees
	SampleCount  int
	Sources      []string
	CachedUntil  time.Time
	IsFallback   bool
	IsStable     bool
}

// Quote converts the aggregate back into a PriceQuote attributed to the venue,
// so scanners can compare venues directly.
func (p AggregatedPrice) Quote() (PriceQuote, error) {
	return NewPriceQuote(p.Venue, p.Asset, p.PriceUSD, p.LiquidityUSD, p.Fee, p.CachedUntil)
}

// Median returns the statistical median of values: the middle element for an
// odd count and the mean of the two central elements for an even count.
// It reports false for an empty input. values is not modified.
func Median(values []decimal.Decimal) (decimal.Decimal, bool) {
	n := len(values)
	if n == 0 {
		return decimal.Zero, false
	}

	sorted := slices.Clone(values)
	slices.SortFunc(sorted, func(a, b decimal.Decimal) int { return a.Cmp(b) })

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], true
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)), true
}

// Aggregate folds quotes into an AggregatedPrice. It reports false for an
// empty input.
func Aggregate(asset, venue string, quotes []PriceQuote, cachedUntil time.Time) (AggregatedPrice, bool) {
	if len(quotes) == 0 {
		return AggregatedPrice{}, false
	}

	prices := make([]decimal.Decimal, len(quotes))
	liquidity := make([]decimal.Decimal, len(quotes))
	fees := make([]decimal.Decimal, len(quotes))
	sources := make([]string, len(quotes))
	for i, q := range quotes {
		prices[i] = q.PriceUSD
		liquidity[i] = q.LiquidityUSD
		fees[i] = q.Fee
		sources[i] = q.Source
	}

	price, _ := Median(prices)
	liq, _ := Median(liquidity)
	fee, _ := Median(fees)

	return AggregatedPrice{
		Asset:        asset,
		Venue:        venue,
		PriceUSD:     price,
		LiquidityUSD: liq,
		Fee:          fee,
		SampleCount:  len(quotes),
		Sources:      sources,
		CachedUntil:  cachedUntil,
	}, true
}
