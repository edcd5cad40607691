// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a single-hop cross-venue trade: buy Asset at BuySource,
// sell it at SellSource. Opportunities are values; ranking returns copies.
type Opportunity struct {
	ID         string
	StrategyID string
	Asset      string

	BuySource        string
	SellSource       string
	BuyPrice         decimal.Decimal
	SellPrice        decimal.Decimal
	BuyLiquidityUSD  decimal.Decimal
	SellLiquidityUSD decimal.Decimal

	Edge        decimal.Decimal // (sell - buy) / buy
	FeeFraction decimal.Decimal // buy fee + sell fee
	Confidence  decimal.Decimal // 0..1, supplied by the strategy
	NotionalUSD decimal.Decimal

	Profit ProfitBreakdown

	Rank       int // 1-based, 0 until ranked
	DetectedAt time.Time
}

// EstimatedProfitUSD is the net profit after fees and costs.
func (o Opportunity) EstimatedProfitUSD() decimal.Decimal {
	return o.Profit.Net
}

// Score orders candidates: net profit weighted by confidence.
func (o Opportunity) Score() decimal.Decimal {
	return o.Profit.Net.Mul(o.Confidence)
}

// EdgePercent returns the edge as a percentage.
func (o Opportunity) EdgePercent() decimal.Decimal {
	return o.Edge.Mul(decimal.NewFromInt(100))
}

// MinLiquidityUSD returns the shallower of the two venues.
func (o Opportunity) MinLiquidityUSD() decimal.Decimal {
	return decimal.Min(o.BuyLiquidityUSD, o.SellLiquidityUSD)
}

// WithCost returns a copy with cost added to the expected costs.
func (o Opportunity) WithCost(cost decimal.Decimal) Opportunity {
	o.Profit = o.Profit.WithCost(o.Profit.CostUSD.Add(cost))
	return o
}

// WithNotional returns a copy resized to notional. Fees scale with the new
// size; fixed costs do not.
func (o Opportunity) WithNotional(notional decimal.Decimal) Opportunity {
	o.NotionalUSD = notional
	o.Profit = ComputeProfit(notional, o.BuyPrice, o.SellPrice, o.FeeFraction, o.Profit.CostUSD)
	return o
}

// Units returns how much of the asset the notional buys.
func (o Opportunity) Units() decimal.Decimal {
	if !o.BuyPrice.IsPositive() {
		return decimal.Zero
	}
	return o.NotionalUSD.Div(o.BuyPrice)
}
