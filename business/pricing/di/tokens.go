// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/binance"
	"github.com/fd1az/arbitrage-engine/business/pricing/infra/redisstore"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("pricing.Aggregator")
)

// Private dependency tokens - internal to pricing module.
// RedisClient, PriceStore and BinanceStream resolve to nil when disabled.
var (
	RedisClient   = di.NewToken[*redis.Client]("pricing:redisClient")
	PriceStore    = di.NewToken[*redisstore.Store]("pricing:priceStore")
	Limiters      = di.NewToken[*ratelimit.Keyed]("pricing:limiters")
	BinanceStream = di.NewToken[*binance.Stream]("pricing:binanceStream")
	Sources       = di.NewToken[map[string]app.PriceSource]("pricing:sources")
)

func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetRedisClient(c di.ServiceRegistry) *redis.Client {
	return di.GetToken(c, RedisClient)
}

func GetPriceStore(c di.ServiceRegistry) *redisstore.Store {
	return di.GetToken(c, PriceStore)
}

func GetLimiters(c di.ServiceRegistry) *ratelimit.Keyed {
	return di.GetToken(c, Limiters)
}

func GetBinanceStream(c di.ServiceRegistry) *binance.Stream {
	return di.GetToken(c, BinanceStream)
}

func GetSources(c di.ServiceRegistry) map[string]app.PriceSource {
	return di.GetToken(c, Sources)
}
