// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Coordinator = di.NewToken[*app.Coordinator]("arbitrage.Coordinator")
	RiskSizer   = di.NewToken[*app.RiskSizer]("arbitrage.RiskSizer")
)

// Private dependency tokens - internal to arbitrage module
var (
	Scanner    = di.NewToken[*app.Scanner]("arbitrage:scanner")
	LoanModel  = di.NewToken[*app.LoanCostModel]("arbitrage:loanModel")
	Strategies = di.NewToken[[]app.Strategy]("arbitrage:strategies")
	Reporter   = di.NewToken[app.Reporter]("arbitrage:reporter")
)

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetRiskSizer(c di.ServiceRegistry) *app.RiskSizer {
	return di.GetToken(c, RiskSizer)
}

func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetLoanModel(c di.ServiceRegistry) *app.LoanCostModel {
	return di.GetToken(c, LoanModel)
}

func GetStrategies(c di.ServiceRegistry) []app.Strategy {
	return di.GetToken(c, Strategies)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
