// Package domain contains the core domain types for the pricing context.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// PriceQuote is one observation of an asset's USD price at a source.
// Quotes are values: build them with NewPriceQuote and never mutate them.
type PriceQuote struct {
	Source       string
	Asset        string
	PriceUSD     decimal.Decimal
	LiquidityUSD decimal.Decimal
	Fee          decimal.Decimal // fraction, 0.003 = 0.3%
	ObservedAt   time.Time
}

// NewPriceQuote validates and builds a quote. The asset symbol is upper-cased.
func NewPriceQuote(source, asset string, price, liquidity, fee decimal.Decimal, observedAt time.Time) (PriceQuote, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	switch {
	case source == "":
		return PriceQuote{}, invalidQuote("empty source")
	case asset == "":
		return PriceQuote{}, invalidQuote("empty asset")
	case !price.IsPositive():
		return PriceQuote{}, invalidQuote(asset + " price must be positive, got " + price.String())
	case liquidity.IsNegative():
		return PriceQuote{}, invalidQuote(asset + " liquidity must not be negative")
	case fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return PriceQuote{}, invalidQuote(asset + " fee must be in [0,1), got " + fee.String())
	}

	return PriceQuote{
		Source:       source,
		Asset:        asset,
		PriceUSD:     price,
		LiquidityUSD: liquidity,
		Fee:          fee,
		ObservedAt:   observedAt,
	}, nil
}

func invalidQuote(ctx string) error {
	return apperror.New(apperror.CodeInvalidQuote, apperror.WithContext(ctx))
}
