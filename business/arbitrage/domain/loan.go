package domain

import "github.com/shopspring/decimal"

// Flash loan providers with built-in fee fractions.
const (
	ProviderBalancer = "BALANCER"
	ProviderAave     = "AAVE"
)

// LoanQuote prices borrowing NotionalUSD from Provider.
type LoanQuote struct {
	Provider          string
	NotionalUSD       decimal.Decimal
	FeeFraction       decimal.Decimal
	FeeUSD            decimal.Decimal
	TotalRepaymentUSD decimal.Decimal
	Simulated         bool
}
