// Package uniswap prices assets on-chain through the Uniswap V3 QuoterV2,
// valued against a USD stablecoin.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/business/pricing/app"
	"github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

var _ app.PriceSource = (*Source)(nil)

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// poolQuote is the best quote found across fee tiers.
type poolQuote struct {
	pool      common.Address
	feeTier   int
	amountOut *big.Int
}

// Source prices one whole unit of an asset by quoting a swap into the quote
// stablecoin. Liquidity is twice the stablecoin balance held by the pool.
type Source struct {
	caller   ContractCaller
	quoter   common.Address
	factory  common.Address
	feeTiers []int

	quoterABI  abi.ABI
	factoryABI abi.ABI
	erc20ABI   abi.ABI

	registry   *asset.Registry
	quoteToken *asset.Asset
	log        logger.LoggerInterface
	cb         *circuitbreaker.CircuitBreaker[[]byte]
	now        func() time.Time

	tracer  *apm.Tracer
	metrics *sourceMetrics
}

func New(caller ContractCaller, cfg config.UniswapConfig, registry *asset.Registry, log logger.LoggerInterface) (*Source, error) {
	quoterABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	quoteSymbol := cfg.QuoteToken
	if quoteSymbol == "" {
		quoteSymbol = "USDC"
	}
	quoteToken, ok := registry.Lookup(quoteSymbol)
	if !ok || quoteToken.IsNative() {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("uniswap quote token not an ERC20 on this chain: "+quoteSymbol))
	}

	tiers := []int{FeeTier005, FeeTier030, FeeTier100}
	if cfg.DefaultFeeTier > 0 && !slices.Contains(tiers, cfg.DefaultFeeTier) {
		tiers = append([]int{cfg.DefaultFeeTier}, tiers...)
	}

	s := &Source{
		caller:     caller,
		quoter:     cfg.QuoterAddressHex(),
		factory:    cfg.FactoryAddressHex(),
		feeTiers:   tiers,
		quoterABI:  quoterABI,
		factoryABI: factoryABI,
		erc20ABI:   erc20ABI,
		registry:   registry,
		quoteToken: quoteToken,
		log:        log,
		cb:         circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("uniswap")),
		now:        time.Now,
		tracer:     apm.NewTracer(tracerName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Source) initMetrics() {
	meter := otel.Meter(meterName)
	s.metrics = &sourceMetrics{}

	s.metrics.quotesTotal, _ = meter.Int64Counter(
		"uniswap_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	s.metrics.quoteLatency, _ = meter.Float64Histogram(
		"uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	s.metrics.quoteErrors, _ = meter.Int64Counter(
		"uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
}

func (s *Source) Name() string { return config.SourceUniswap }

func (s *Source) Fetch(ctx context.Context, symbol, venue string) (q domain.PriceQuote, err error) {
	ctx, span := s.tracer.Start(ctx, "uniswap.fetch", attribute.String("asset", symbol))
	defer func() { span.EndWith(err) }()

	start := s.now()
	s.metrics.quotesTotal.Add(ctx, 1)
	defer func() {
		s.metrics.quoteLatency.Record(ctx, float64(s.now().Sub(start).Milliseconds()))
		if err != nil {
			s.metrics.quoteErrors.Add(ctx, 1)
		}
	}()

	token, err := s.resolveToken(symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	best, err := s.bestQuote(ctx, token)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	balance, err := s.balanceOf(ctx, s.quoteToken.Address(), best.pool)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	price := asset.NewAmount(s.quoteToken, best.amountOut).ToDecimal()
	liquidity := asset.NewAmount(s.quoteToken, balance).ToDecimal().Mul(decimal.NewFromInt(2))
	fee := decimal.New(int64(best.feeTier), -6)

	span.SetAttributes(
		attribute.String("pool", best.pool.Hex()),
		attribute.Int("fee_tier", best.feeTier),
		attribute.String("price_usd", price.String()),
	)
	s.log.Debug(ctx, "uniswap quote",
		"asset", symbol,
		"pool", best.pool.Hex(),
		"fee_tier", best.feeTier,
		"price_usd", price.String(),
	)

	return domain.NewPriceQuote(s.Name(), symbol, price, liquidity, fee, s.now())
}

// resolveToken maps symbol to an ERC20 on the registry's chain. Native assets
// are priced through their wrapped token.
func (s *Source) resolveToken(symbol string) (*asset.Asset, error) {
	a, ok := s.registry.Lookup(symbol)
	if ok && a.IsNative() {
		a, ok = s.registry.Lookup("W" + strings.ToUpper(symbol))
	}
	if !ok {
		return nil, apperror.New(apperror.CodeUnsupportedPriceAsset, apperror.WithContext("uniswap: "+symbol))
	}
	return a, nil
}

// bestQuote quotes every fee tier that has a pool and keeps the highest output.
func (s *Source) bestQuote(ctx context.Context, token *asset.Asset) (poolQuote, error) {
	var (
		best    poolQuote
		lastErr error
	)
	for _, tier := range s.feeTiers {
		pool, err := s.getPool(ctx, token.Address(), s.quoteToken.Address(), tier)
		if err != nil {
			lastErr = err
			continue
		}
		if pool == (common.Address{}) {
			continue
		}

		out, err := s.quote(ctx, token.Address(), s.quoteToken.Address(), asset.OneUnit(token).Raw(), tier)
		if err != nil {
			lastErr = err
			continue
		}
		if best.amountOut == nil || out.Cmp(best.amountOut) > 0 {
			best = poolQuote{pool: pool, feeTier: tier, amountOut: out}
		}
	}

	switch {
	case best.amountOut != nil:
		return best, nil
	case lastErr != nil:
		return poolQuote{}, lastErr
	default:
		return poolQuote{}, apperror.New(apperror.CodeUniswapPoolNotFound,
			apperror.WithContext(token.Symbol()+"/"+s.quoteToken.Symbol()))
	}
}

func (s *Source) getPool(ctx context.Context, tokenA, tokenB common.Address, tier int) (common.Address, error) {
	data, err := s.factoryABI.Pack(methodGetPool, tokenA, tokenB, big.NewInt(int64(tier)))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode getPool: %w", err)
	}

	out, err := s.call(ctx, s.factory, data)
	if err != nil {
		return common.Address{}, err
	}

	values, err := s.factoryABI.Unpack(methodGetPool, out)
	if err != nil || len(values) != 1 {
		return common.Address{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContext("decode getPool"))
	}
	return values[0].(common.Address), nil
}

func (s *Source) quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, tier int) (*big.Int, error) {
	data, err := s.quoterABI.Pack(methodQuote, QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(tier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode quote: %w", err)
	}

	out, err := s.call(ctx, s.quoter, data)
	if err != nil {
		return nil, apperror.New(apperror.CodeUniswapQuoteFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("fee tier %d", tier)))
	}

	values, err := s.quoterABI.Unpack(methodQuote, out)
	if err != nil || len(values) < 4 {
		return nil, apperror.New(apperror.CodeUniswapQuoteFailed,
			apperror.WithCause(err), apperror.WithContext("decode quote"))
	}
	amountOut := values[0].(*big.Int)
	if amountOut.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeUniswapQuoteFailed, apperror.WithContext("zero output"))
	}
	return amountOut, nil
}

func (s *Source) balanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := s.erc20ABI.Pack(methodBalanceOf, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf: %w", err)
	}

	out, err := s.call(ctx, token, data)
	if err != nil {
		return nil, err
	}

	values, err := s.erc20ABI.Unpack(methodBalanceOf, out)
	if err != nil || len(values) != 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContext("decode balanceOf"))
	}
	return values[0].(*big.Int), nil
}

func (s *Source) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := s.cb.Execute(func() ([]byte, error) {
		return s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(to.Hex()))
	}
	return out, nil
}
