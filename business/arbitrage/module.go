// Package arbitrage implements the arbitrage bounded context: scan strategies
// for cross-venue opportunities, rank them, size them against the capital
// ledger and execute them.
package arbitrage

import (
	"context"
	"strings"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/arbitrage-engine/business/arbitrage/di"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra/crossvenue"
	blockchainDI "github.com/fd1az/arbitrage-engine/business/blockchain/di"
	pricingDI "github.com/fd1az/arbitrage-engine/business/pricing/di"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

// Module implements the arbitrage bounded context. It depends on pricing for
// venue prices and on blockchain for fees and broadcasts.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewScanner(cfg.Scanner)
	})

	di.RegisterToken(c, arbitrageDI.RiskSizer, func(sr di.ServiceRegistry) *app.RiskSizer {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewRiskSizer(cfg.Risk)
	})

	di.RegisterToken(c, arbitrageDI.LoanModel, func(sr di.ServiceRegistry) *app.LoanCostModel {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewLoanCostModel(cfg.Loan, !cfg.App.IsLive())
	})

	di.RegisterToken(c, arbitrageDI.Strategies, func(sr di.ServiceRegistry) []app.Strategy {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		var out []app.Strategy
		for _, name := range cfg.Strategy.Active {
			switch strings.ToUpper(strings.TrimSpace(name)) {
			case crossvenue.ID:
				out = append(out, crossvenue.New(
					crossvenue.ConfigFrom(cfg),
					arbitrageDI.GetScanner(sr),
					pricingDI.GetAggregator(sr),
					blockchainDI.GetBlockchainService(sr),
					log,
				))
			}
		}
		return out
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return infra.NewConsoleReporter(infra.WithQuiet(cfg.App.Mode != config.ModeDev))
	})

	di.RegisterToken(c, arbitrageDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		opts := []app.CoordinatorOption{app.WithReporter(arbitrageDI.GetReporter(sr))}
		for _, s := range arbitrageDI.GetStrategies(sr) {
			opts = append(opts, app.WithStrategy(s))
		}

		return app.NewCoordinator(
			cfg.Coordinator,
			cfg.Risk,
			arbitrageDI.GetScanner(sr),
			arbitrageDI.GetRiskSizer(sr),
			arbitrageDI.GetLoanModel(sr),
			log,
			opts...,
		)
	})

	return nil
}

func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	for _, name := range cfg.Strategy.Active {
		if !strings.EqualFold(strings.TrimSpace(name), crossvenue.ID) {
			return apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("unknown strategy "+name))
		}
	}

	coord := arbitrageDI.GetCoordinator(mono.Services())
	if len(coord.Strategies()) == 0 {
		log.Warn(ctx, "no active strategies, cycles will be empty")
	}

	ids := make([]string, 0, len(coord.Strategies()))
	for _, s := range coord.Strategies() {
		ids = append(ids, s.ID())
	}

	log.Info(ctx, "arbitrage module started",
		"mode", cfg.App.Mode,
		"live", cfg.App.IsLive(),
		"strategies", ids,
		"top_n", cfg.Coordinator.TopN,
		"capital_usd", cfg.Risk.TotalCapitalUSD)
	return nil
}
