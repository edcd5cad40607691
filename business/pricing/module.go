// Package pricing implements the pricing bounded context: per-venue USD
// prices aggregated from static, CoinGecko, Binance and Uniswap sources.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	blockchainDI "github.com/fd1az/arbitrage-engine/business/blockchain/di"
	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	pricingDI "github.com/fd1az/arbitrage-engine/business/pricing/di"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/binance"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/coingecko"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/redisstore"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/static"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/uniswap"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

// Module implements the pricing bounded context. It depends on the
// blockchain module for contract calls when a venue uses uniswap.
type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.RedisClient, func(sr di.ServiceRegistry) *redis.Client {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		if !cfg.Redis.Enabled() {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rdb, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn(ctx, "redis unavailable, using in-process price cache only", "addr", cfg.Redis.Addr, "error", err)
			return nil
		}
		return rdb
	})

	di.RegisterToken(c, pricingDI.PriceStore, func(sr di.ServiceRegistry) *redisstore.Store {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)

		rdb := pricingDI.GetRedisClient(sr)
		if rdb == nil {
			return nil
		}
		return redisstore.New(rdb, cfg.Redis.KeyPrefix)
	})

	di.RegisterToken(c, pricingDI.Limiters, func(sr di.ServiceRegistry) *ratelimit.Keyed {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)

		limiters := ratelimit.NewKeyed(0)
		limiters.SetBudget(config.SourceCoinGecko, cfg.Pricing.CoinGecko.RequestsPerMinute)
		limiters.SetBudget(config.SourceBinance, cfg.Pricing.Binance.RequestsPerMinute)
		return limiters
	})

	di.RegisterToken(c, pricingDI.BinanceStream, func(sr di.ServiceRegistry) *binance.Stream {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		bc := cfg.Pricing.Binance
		if !bc.StreamEnabled || !usesSource(cfg.Pricing, config.SourceBinance) {
			return nil
		}

		quote := bc.QuoteAsset
		if quote == "" {
			quote = "USDT"
		}
		markets := make([]string, 0, len(cfg.Pricing.Assets))
		for _, a := range cfg.Pricing.Assets {
			markets = append(markets, binance.MarketSymbol(a, quote))
		}

		stream, err := binance.NewStream(bc.WebSocketURL, markets, log)
		if err != nil {
			panic("failed to create binance stream: " + err.Error())
		}
		return stream
	})

	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) map[string]app.PriceSource {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)

		sources := make(map[string]app.PriceSource)
		for _, venue := range cfg.Pricing.VenueNames() {
			for _, name := range cfg.Pricing.Venues[venue] {
				name = strings.ToLower(name)
				if _, ok := sources[name]; ok {
					continue
				}
				src, err := newSource(sr, name, cfg, registry, log)
				if err != nil {
					panic("failed to create price source " + name + ": " + err.Error())
				}
				sources[name] = src
			}
		}
		return sources
	})

	di.RegisterToken(c, pricingDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)

		sources := pricingDI.GetSources(sr)
		var opts []app.AggregatorOption
		for venue, names := range cfg.Pricing.Venues {
			for _, name := range names {
				opts = append(opts, app.WithSource(venue, sources[strings.ToLower(name)]))
			}
		}
		if store := pricingDI.GetPriceStore(sr); store != nil {
			opts = append(opts, app.WithPriceStore(store))
		}

		policy := retry.NewFromConfig(cfg.Retry,
			retry.WithName("pricing"),
			retry.WithLogger(log))
		return app.NewAggregator(cfg.Pricing, registry, policy, log, opts...)
	})

	return nil
}

func newSource(sr di.ServiceRegistry, name string, cfg *config.Config, registry *asset.Registry, log logger.LoggerInterface) (app.PriceSource, error) {
	limiters := pricingDI.GetLimiters(sr)

	switch name {
	case config.SourceStatic:
		return static.New(cfg.Pricing.Static), nil
	case config.SourceCoinGecko:
		return coingecko.New(cfg.Pricing.CoinGecko, registry, limiters.Get(config.SourceCoinGecko))
	case config.SourceBinance:
		return binance.New(cfg.Pricing.Binance, limiters.Get(config.SourceBinance),
			binance.WithStream(pricingDI.GetBinanceStream(sr)))
	case config.SourceUniswap:
		return uniswap.New(blockchainDI.GetContractCaller(sr), cfg.Pricing.Uniswap, registry, log)
	}
	return nil, apperror.New(apperror.CodeConfigurationError,
		apperror.WithContext("unknown price source: "+name))
}

func usesSource(cfg config.PricingConfig, source string) bool {
	for _, names := range cfg.Venues {
		for _, n := range names {
			if strings.EqualFold(n, source) {
				return true
			}
		}
	}
	return false
}

func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	agg := pricingDI.GetAggregator(sr)
	mono.OnClose(func() error {
		agg.Close()
		return nil
	})

	if rdb := pricingDI.GetRedisClient(sr); rdb != nil {
		mono.OnClose(rdb.Close)
	}

	if stream := pricingDI.GetBinanceStream(sr); stream != nil {
		mono.OnClose(stream.Close)
		connectStream(ctx, stream, log)
	}

	log.Info(ctx, "pricing module started",
		"venues", mono.Config().Pricing.VenueNames(),
		"shared_cache", pricingDI.GetPriceStore(sr) != nil)
	return nil
}

// connectStream dials the stream without blocking startup for long. Until it
// connects, the binance source answers from REST.
func connectStream(ctx context.Context, stream *binance.Stream, log logger.LoggerInterface) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := stream.Connect(connectCtx)
	if err == nil {
		return
	}
	log.Warn(ctx, "binance stream connection failed, will retry in background", "error", err)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				if err := stream.Connect(ctx); err != nil {
					log.Warn(ctx, "binance stream retry failed", "error", err)
					continue
				}
				log.Info(ctx, "binance stream connected")
				return
			}
		}
	}()
}
