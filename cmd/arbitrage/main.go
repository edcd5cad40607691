// Package main is the entry point for the arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/arbitrage-engine/business/arbitrage"
	arbitrageDI "github.com/fd1az/arbitrage-engine/business/arbitrage/di"
	arbitrageDomain "github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/business/blockchain"
	blockchainDI "github.com/fd1az/arbitrage-engine/business/blockchain/di"
	"github.com/fd1az/arbitrage-engine/business/pricing"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/health"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/metrics"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("arbitrage-engine %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
		"mode", cfg.App.Mode,
		"chain_id", cfg.Chain.ChainID)

	if cfg.App.IsLive() {
		log.Warn(ctx, "live execution enabled, transactions will be broadcast")
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := startTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	app := monolith.New(cfg, log)
	defer func() {
		if err := app.Close(); err != nil {
			log.Error(context.Background(), "shutdown finished with errors", "error", err)
		}
	}()

	modules := []monolith.Module{
		&blockchain.Module{}, // rpc client, fees, broadcast
		&pricing.Module{},    // uniswap source reads contracts through blockchain
		&arbitrage.Module{},  // needs prices and the blockchain service
	}

	if err := app.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := app.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	healthServer := newHealthServer(cfg, app, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Stop(stopCtx)
	}()

	coordinator := arbitrageDI.GetCoordinator(app.Services())

	if once {
		report, err := coordinator.RunCycle(ctx)
		log.Info(ctx, "single cycle finished",
			"state", report.FinalState,
			"ranked", report.Ranked,
			"settled", report.Settled,
			"executed", report.Count(arbitrageDomain.OutcomeExecuted),
			"pnl_usd", report.RealizedPnL.StringFixed(2))
		return err
	}

	return coordinator.Run(ctx)
}

// startTelemetry installs the tracer and meter providers and serves
// /metrics in the background. The returned func flushes both.
func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	tp, err := apm.NewTraceProvider(log, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	mp, err := metrics.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		_ = tp.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go func() {
		if err := mp.Serve(ctx, port, log); err != nil {
			log.Error(ctx, "metrics server stopped", "error", err)
		}
	}()

	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(flushCtx); err != nil {
			log.Warn(flushCtx, "metrics shutdown failed", "error", err)
		}
		if err := tp.Stop(); err != nil {
			log.Warn(flushCtx, "tracing shutdown failed", "error", err)
		}
	}, nil
}

func newHealthServer(cfg *config.Config, app *monolith.App, log logger.LoggerInterface) *health.Server {
	srv := health.NewServer(cfg.Health.Port, version, log)

	if len(cfg.Chain.RPCURLs) > 0 {
		svc := blockchainDI.GetBlockchainService(app.Services())
		srv.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
			if err := svc.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}

	sizer := arbitrageDI.GetRiskSizer(app.Services())
	srv.RegisterCheck("capital", func(context.Context) (bool, string) {
		m := sizer.RiskMetrics()
		msg := fmt.Sprintf("%s of %s USD available, %d open positions",
			m.AvailableCapitalUSD.StringFixed(2), m.TotalCapitalUSD.StringFixed(2), m.OpenPositions)
		return m.AvailableCapitalUSD.IsPositive(), msg
	})

	return srv
}
