package domain

import (
	"github.com/shopspring/decimal"
)

// ProfitBreakdown splits the expected result of a trade.
type ProfitBreakdown struct {
	GrossUSD decimal.Decimal // notional * edge
	FeesUSD  decimal.Decimal // notional * (buy fee + sell fee)
	CostUSD  decimal.Decimal // gas and other fixed costs
	Net      decimal.Decimal // gross - fees - cost
}

// ComputeProfit prices a round trip of notional USD bought at buy and sold at
// sell, paying feeFraction of the notional in venue fees and cost in fixed costs.
func ComputeProfit(notional, buy, sell, feeFraction, cost decimal.Decimal) ProfitBreakdown {
	if !buy.IsPositive() {
		return ProfitBreakdown{CostUSD: cost, Net: cost.Neg()}
	}

	edge := sell.Sub(buy).Div(buy)
	gross := notional.Mul(edge)
	fees := notional.Mul(feeFraction)

	return ProfitBreakdown{
		GrossUSD: gross,
		FeesUSD:  fees,
		CostUSD:  cost,
		Net:      gross.Sub(fees).Sub(cost),
	}
}

// WithCost replaces the fixed cost and recomputes Net.
func (p ProfitBreakdown) WithCost(cost decimal.Decimal) ProfitBreakdown {
	p.CostUSD = cost
	p.Net = p.GrossUSD.Sub(p.FeesUSD).Sub(cost)
	return p
}

// IsProfitable reports a positive net.
func (p ProfitBreakdown) IsProfitable() bool {
	return p.Net.IsPositive()
}

// NetPercent returns the net profit as a percentage of notional.
func (p ProfitBreakdown) NetPercent(notional decimal.Decimal) decimal.Decimal {
	if notional.IsZero() {
		return decimal.Zero
	}
	return p.Net.Div(notional).Mul(decimal.NewFromInt(100))
}
