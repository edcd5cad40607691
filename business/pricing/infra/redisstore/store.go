// Package redisstore shares aggregated prices between engine instances
// through Redis hashes.
package redisstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

var _ app.PriceStore = (*Store)(nil)

// Hash fields.
const (
	fieldPrice       = "price"
	fieldLiquidity   = "liquidity"
	fieldFee         = "fee"
	fieldSamples     = "samples"
	fieldSources     = "sources"
	fieldCachedUntil = "cached_until"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.New(apperror.CodePriceStoreFailed, apperror.WithCause(err), apperror.WithContext("ping "+cfg.Addr))
	}
	return rdb, nil
}

// Store implements app.PriceStore.
//
// Key schema:
//
//	{prefix}:price:{venue}:{ASSET} - hash of the fields above, expiring with the price
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "arb"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(venue, symbol string) string {
	return s.prefix + ":price:" + strings.ToLower(venue) + ":" + strings.ToUpper(symbol)
}

func (s *Store) Get(ctx context.Context, venue, symbol string) (domain.AggregatedPrice, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(venue, symbol)).Result()
	if err != nil {
		return domain.AggregatedPrice{}, false, apperror.New(apperror.CodePriceStoreFailed, apperror.WithCause(err))
	}
	if len(fields) == 0 {
		return domain.AggregatedPrice{}, false, nil
	}

	p, err := decode(strings.ToUpper(symbol), strings.ToLower(venue), fields)
	if err != nil {
		return domain.AggregatedPrice{}, false, err
	}
	return p, true, nil
}

func (s *Store) Set(ctx context.Context, p domain.AggregatedPrice, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := s.key(p.Venue, p.Asset)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encode(p))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return apperror.New(apperror.CodePriceStoreFailed, apperror.WithCause(err), apperror.WithContext(key))
	}
	return nil
}

func encode(p domain.AggregatedPrice) map[string]any {
	return map[string]any{
		fieldPrice:       p.PriceUSD.String(),
		fieldLiquidity:   p.LiquidityUSD.String(),
		fieldFee:         p.Fee.String(),
		fieldSamples:     strconv.Itoa(p.SampleCount),
		fieldSources:     strings.Join(p.Sources, ","),
		fieldCachedUntil: strconv.FormatInt(p.CachedUntil.UnixMilli(), 10),
	}
}

func decode(symbol, venue string, fields map[string]string) (domain.AggregatedPrice, error) {
	bad := func(field string, cause error) error {
		return apperror.New(apperror.CodePriceStoreFailed,
			apperror.WithCause(cause),
			apperror.WithContext("corrupt field "+field+" for "+venue+"/"+symbol))
	}

	price, err := decimal.NewFromString(fields[fieldPrice])
	if err != nil {
		return domain.AggregatedPrice{}, bad(fieldPrice, err)
	}
	liquidity, err := decimal.NewFromString(fields[fieldLiquidity])
	if err != nil {
		return domain.AggregatedPrice{}, bad(fieldLiquidity, err)
	}
	fee, err := decimal.NewFromString(fields[fieldFee])
	if err != nil {
		return domain.AggregatedPrice{}, bad(fieldFee, err)
	}
	samples, err := strconv.Atoi(fields[fieldSamples])
	if err != nil {
		return domain.AggregatedPrice{}, bad(fieldSamples, err)
	}
	until, err := strconv.ParseInt(fields[fieldCachedUntil], 10, 64)
	if err != nil {
		return domain.AggregatedPrice{}, bad(fieldCachedUntil, err)
	}

	var sources []string
	if s := fields[fieldSources]; s != "" {
		sources = strings.Split(s, ",")
	}

	return domain.AggregatedPrice{
		Asset:        symbol,
		Venue:        venue,
		PriceUSD:     price,
		LiquidityUSD: liquidity,
		Fee:          fee,
		SampleCount:  samples,
		Sources:      sources,
		CachedUntil:  time.UnixMilli(until),
	}, nil
}
