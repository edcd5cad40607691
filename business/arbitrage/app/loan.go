package app

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

var defaultLoanFees = map[string]decimal.Decimal{
	domain.ProviderBalancer: decimal.Zero,
	domain.ProviderAave:     decimal.RequireFromString("0.0009"),
}

// LoanCostModel prices flash loans.
type LoanCostModel struct {
	defaultProvider string
	fees            map[string]decimal.Decimal
	maxPoolFraction decimal.Decimal
	simulated       bool
}

// NewLoanCostModel merges configured fee fractions over the built-in ones.
// Simulated models mark their quotes as such.
func NewLoanCostModel(cfg config.LoanConfig, simulated bool) *LoanCostModel {
	fees := make(map[string]decimal.Decimal, len(defaultLoanFees)+len(cfg.ProviderFees))
	for p, f := range defaultLoanFees {
		fees[p] = f
	}
	for p, f := range cfg.ProviderFees {
		fees[strings.ToUpper(p)] = decimal.NewFromFloat(f)
	}

	def := strings.ToUpper(cfg.DefaultProvider)
	if _, ok := fees[def]; !ok {
		def = domain.ProviderBalancer
	}

	maxPool := decimal.NewFromFloat(cfg.MaxPoolFraction)
	if !maxPool.IsPositive() {
		maxPool = decimal.RequireFromString("0.10")
	}

	return &LoanCostModel{
		defaultProvider: def,
		fees:            fees,
		maxPoolFraction: maxPool,
		simulated:       simulated,
	}
}

func (m *LoanCostModel) DefaultProvider() string {
	return m.defaultProvider
}

// ProviderFee returns the fee fraction of a known provider.
func (m *LoanCostModel) ProviderFee(provider string) (decimal.Decimal, error) {
	f, ok := m.fees[strings.ToUpper(provider)]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeUnknownLoanProvider, apperror.WithContext(provider))
	}
	return f, nil
}

// feeFraction falls back to the default provider for unknown names.
func (m *LoanCostModel) feeFraction(provider string) (string, decimal.Decimal) {
	name := strings.ToUpper(provider)
	if f, ok := m.fees[name]; ok {
		return name, f
	}
	return m.defaultProvider, m.fees[m.defaultProvider]
}

// Fee returns the fee in USD for borrowing notional from provider.
func (m *LoanCostModel) Fee(provider string, notional decimal.Decimal) decimal.Decimal {
	_, f := m.feeFraction(provider)
	return notional.Mul(f)
}

func (m *LoanCostModel) Quote(provider string, notional decimal.Decimal) domain.LoanQuote {
	name, f := m.feeFraction(provider)
	fee := notional.Mul(f)
	return domain.LoanQuote{
		Provider:          name,
		NotionalUSD:       notional,
		FeeFraction:       f,
		FeeUSD:            fee,
		TotalRepaymentUSD: notional.Add(fee),
		Simulated:         m.simulated,
	}
}

// IsWorthwhile subtracts the default provider's fee from expectedProfit. A
// non-positive result is not worth borrowing for.
func (m *LoanCostModel) IsWorthwhile(notional, expectedProfit decimal.Decimal) (bool, decimal.Decimal) {
	net := expectedProfit.Sub(m.Fee(m.defaultProvider, notional))
	return net.IsPositive(), net
}

// MaxLoanAmount caps borrowing at a fraction of the pool's TVL.
func (m *LoanCostModel) MaxLoanAmount(poolTVL decimal.Decimal) decimal.Decimal {
	if !poolTVL.IsPositive() {
		return decimal.Zero
	}
	return poolTVL.Mul(m.maxPoolFraction)
}
