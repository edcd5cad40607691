// Package blockchain implements the blockchain bounded context: fee
// estimation, balances, contract reads and transaction broadcast.
package blockchain

import (
	"context"
	"time"

	"github.com/fd1az/arbitrage-engine/business/blockchain/app"
	blockchainDI "github.com/fd1az/arbitrage-engine/business/blockchain/di"
	"github.com/fd1az/arbitrage-engine/business/blockchain/infra/ethereum"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

// Module implements the blockchain bounded context.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.RPCClient, func(sr di.ServiceRegistry) *ethereum.Client {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		return ethereum.NewClient(ethereum.ConfigFrom(cfg.Chain), log)
	})

	di.RegisterToken(c, blockchainDI.ContractCaller, func(sr di.ServiceRegistry) app.ContractCaller {
		return blockchainDI.GetRPCClient(sr)
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		policy := retry.NewFromConfig(cfg.Retry,
			retry.WithName("blockchain"),
			retry.WithLogger(log))
		return app.NewBlockchainService(blockchainDI.GetRPCClient(sr), policy, cfg.Chain.WalletAddressHex())
	})

	return nil
}

func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	client := blockchainDI.GetRPCClient(mono.Services())
	mono.OnClose(client.Close)

	if len(cfg.Chain.RPCURLs) == 0 {
		log.Warn(ctx, "no rpc endpoints configured, on-chain features disabled")
		return nil
	}

	// Reachability is informational here; calls fail over lazily.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	block, err := client.LatestBlock(pingCtx)
	if err != nil {
		log.Warn(ctx, "rpc endpoints unreachable at startup", "error", err)
	} else {
		log.Info(ctx, "blockchain module started",
			"chain_id", cfg.Chain.ChainID,
			"endpoints", len(cfg.Chain.RPCURLs),
			"block", block)
	}

	return nil
}
