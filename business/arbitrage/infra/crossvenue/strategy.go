// Package crossvenue implements the cross-venue arbitrage strategy: compare
// the aggregated price of each asset across venues, buy where it is cheapest
// and sell where it is dearest.
package crossvenue

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/arbitrage-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

// ID is the strategy identifier used in configuration and reports.
const ID = "CROSS_VENUE_ARBITRAGE"

const (
	tracerName = "arbitrage.crossvenue"
	meterName  = "arbitrage.crossvenue"

	// concurrent price lookups per scan
	maxLookups = 8
)

var (
	baseConfidence = decimal.RequireFromString("0.5")
	ten            = decimal.NewFromInt(10)
	bpsDivisor     = decimal.NewFromInt(10_000)
)

// PriceOracle is the slice of the pricing aggregator the strategy reads.
type PriceOracle interface {
	Venues() []string
	GetUSDPrice(ctx context.Context, symbol, venue string) (pricingDomain.AggregatedPrice, error)
}

// Chain prices and submits transactions.
type Chain interface {
	EstimateFee(ctx context.Context, req blockchainDomain.CallRequest) (blockchainDomain.FeeEstimate, error)
	Broadcast(ctx context.Context, signedTx []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (blockchainDomain.Receipt, error)
}

// Config holds the strategy's tunables in decimal form.
type Config struct {
	Assets         []string
	NativeAsset    string
	Wallet         common.Address
	TradeSizeUSD   decimal.Decimal
	GasFallbackUSD decimal.Decimal
	MaxConfidence  decimal.Decimal
	SlippageBps    int
	Live           bool
}

// ConfigFrom derives the strategy config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Assets:         cfg.Pricing.Assets,
		NativeAsset:    cfg.Chain.NativeAsset,
		Wallet:         cfg.Chain.WalletAddressHex(),
		TradeSizeUSD:   decimal.NewFromFloat(cfg.Strategy.TradeSizeUSD),
		GasFallbackUSD: decimal.NewFromFloat(cfg.Strategy.GasFallbackUSD),
		MaxConfidence:  decimal.NewFromFloat(cfg.Strategy.MaxConfidence),
		SlippageBps:    cfg.Risk.SlippageBps,
		Live:           cfg.App.IsLive(),
	}
}

// Stats is a snapshot of the strategy's counters.
type Stats struct {
	ID                 string
	Enabled            bool
	OpportunitiesFound uint64
	TradesExecuted     uint64
}

type strategyMetrics struct {
	found    metric.Int64Counter
	executed metric.Int64Counter
	gasCost  metric.Float64Histogram
}

// Strategy implements app.Strategy and app.Toggler.
type Strategy struct {
	cfg     Config
	scanner *app.Scanner
	oracle  PriceOracle
	chain   Chain
	builder app.TxBuilder
	log     logger.LoggerInterface

	enabled  atomic.Bool
	found    atomic.Uint64
	executed atomic.Uint64

	tracer  *apm.Tracer
	metrics *strategyMetrics
}

type Option func(*Strategy)

// WithTxBuilder supplies the signer used in live mode.
func WithTxBuilder(b app.TxBuilder) Option {
	return func(s *Strategy) { s.builder = b }
}

func New(cfg Config, scanner *app.Scanner, oracle PriceOracle, chain Chain, log logger.LoggerInterface, opts ...Option) *Strategy {
	if cfg.MaxConfidence.IsZero() {
		cfg.MaxConfidence = decimal.RequireFromString("0.95")
	}

	s := &Strategy{
		cfg:     cfg,
		scanner: scanner,
		oracle:  oracle,
		chain:   chain,
		log:     log,
		tracer:  apm.NewTracer(tracerName),
	}
	s.enabled.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	s.initMetrics()
	return s
}

func (s *Strategy) initMetrics() {
	meter := otel.Meter(meterName)
	s.metrics = &strategyMetrics{}

	s.metrics.found, _ = meter.Int64Counter(
		"crossvenue_opportunities_found_total",
		metric.WithDescription("Candidates that cleared every threshold"),
	)
	s.metrics.executed, _ = meter.Int64Counter(
		"crossvenue_trades_executed_total",
		metric.WithDescription("Executions by mode"),
	)
	s.metrics.gasCost, _ = meter.Float64Histogram(
		"crossvenue_gas_cost_usd",
		metric.WithDescription("Estimated gas cost per trade"),
		metric.WithUnit("USD"),
	)
}

func (s *Strategy) ID() string { return ID }

func (s *Strategy) Enabled() bool { return s.enabled.Load() }

func (s *Strategy) Enable() {
	s.enabled.Store(true)
	s.log.Info(context.Background(), "strategy enabled", "strategy", ID)
}

func (s *Strategy) Disable() {
	s.enabled.Store(false)
	s.log.Warn(context.Background(), "strategy disabled", "strategy", ID)
}

func (s *Strategy) Stats() Stats {
	return Stats{
		ID:                 ID,
		Enabled:            s.Enabled(),
		OpportunitiesFound: s.found.Load(),
		TradesExecuted:     s.executed.Load(),
	}
}

// Confidence maps an edge fraction to min(max, 0.5 + edge%/10).
func (s *Strategy) Confidence(edge decimal.Decimal) decimal.Decimal {
	pct := edge.Mul(decimal.NewFromInt(100))
	return decimal.Min(s.cfg.MaxConfidence, baseConfidence.Add(pct.Div(ten)))
}

// MinAmountOut is the least acceptable output of a swap of amount under the
// slippage bound.
func MinAmountOut(amount decimal.Decimal, slippageBps int) decimal.Decimal {
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromInt(int64(slippageBps)).Div(bpsDivisor))
	return amount.Mul(keep)
}

// Scan prices every asset at every venue and returns one candidate per asset
// quoted by at least two venues, charged with the estimated gas cost.
func (s *Strategy) Scan(ctx context.Context) (opps []domain.Opportunity, err error) {
	if !s.Enabled() {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "crossvenue.scan")
	defer func() { span.EndWith(err) }()

	quotes, err := s.collectQuotes(ctx)
	if err != nil {
		return nil, err
	}

	gas := s.gasCostUSD(ctx)
	candidates := s.scanner.Build(ID, quotes, s.cfg.TradeSizeUSD, s.Confidence)

	for i := range candidates {
		candidates[i] = candidates[i].WithCost(gas)
		if ok, _ := s.scanner.Accepts(candidates[i]); ok {
			s.found.Add(1)
			s.metrics.found.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", candidates[i].Asset)))
			s.log.Info(ctx, "opportunity found",
				"asset", candidates[i].Asset,
				"buy", candidates[i].BuySource,
				"sell", candidates[i].SellSource,
				"edge_pct", candidates[i].EdgePercent().StringFixed(4),
				"net_usd", candidates[i].EstimatedProfitUSD().StringFixed(2),
				"confidence", candidates[i].Confidence.StringFixed(3))
		}
	}

	span.SetAttributes(
		attribute.Int("quotes", len(quotes)),
		attribute.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// collectQuotes resolves every (asset, venue) pair concurrently. Fallback and
// stablecoin prices carry no venue information and are left out. The result
// keeps asset then venue order.
func (s *Strategy) collectQuotes(ctx context.Context) ([]pricingDomain.PriceQuote, error) {
	venues := s.oracle.Venues()
	if len(venues) < 2 || len(s.cfg.Assets) == 0 {
		return nil, nil
	}

	type slot struct {
		quote *pricingDomain.PriceQuote
		err   error
	}
	slots := make([]slot, len(s.cfg.Assets)*len(venues))

	var g errgroup.Group
	g.SetLimit(maxLookups)
	for i, sym := range s.cfg.Assets {
		for j, venue := range venues {
			idx := i*len(venues) + j
			g.Go(func() error {
				p, err := s.oracle.GetUSDPrice(ctx, sym, venue)
				if err != nil {
					slots[idx].err = err
					return nil
				}
				if p.IsFallback || p.IsStable {
					return nil
				}
				q, err := p.Quote()
				if err != nil {
					slots[idx].err = err
					return nil
				}
				slots[idx].quote = &q
				return nil
			})
		}
	}
	_ = g.Wait()

	var (
		quotes   []pricingDomain.PriceQuote
		failures int
		lastErr  error
	)
	for _, sl := range slots {
		switch {
		case sl.err != nil:
			failures++
			lastErr = sl.err
		case sl.quote != nil:
			quotes = append(quotes, *sl.quote)
		}
	}

	if failures == len(slots) {
		return nil, apperror.New(apperror.CodeNoPriceAvailable,
			apperror.WithCause(lastErr),
			apperror.WithContext("no venue returned a price"))
	}
	if failures > 0 {
		s.log.Debug(ctx, "some price lookups failed", "failed", failures, "total", len(slots), "error", lastErr)
	}
	return quotes, nil
}

// gasCostUSD prices one arbitrage transaction. Any failure along the way
// falls back to the configured estimate.
func (s *Strategy) gasCostUSD(ctx context.Context) decimal.Decimal {
	fee, err := s.chain.EstimateFee(ctx, blockchainDomain.CallRequest{
		Operation: blockchainDomain.OpArbitrage,
		From:      s.cfg.Wallet,
	})
	if err != nil {
		s.log.Debug(ctx, "fee estimate failed, using fallback", "error", err)
		return s.cfg.GasFallbackUSD
	}

	native, err := s.nativePrice(ctx)
	if err != nil {
		s.log.Debug(ctx, "native price unavailable, using gas fallback", "asset", s.cfg.NativeAsset, "error", err)
		return s.cfg.GasFallbackUSD
	}

	cost := fee.CostUSD(native)
	f, _ := cost.Float64()
	s.metrics.gasCost.Record(ctx, f)
	return cost
}

func (s *Strategy) nativePrice(ctx context.Context) (decimal.Decimal, error) {
	var lastErr error
	for _, venue := range s.oracle.Venues() {
		p, err := s.oracle.GetUSDPrice(ctx, s.cfg.NativeAsset, venue)
		if err == nil && p.PriceUSD.IsPositive() {
			return p.PriceUSD, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperror.New(apperror.CodeNoPriceAvailable, apperror.WithContext(s.cfg.NativeAsset))
	}
	return decimal.Zero, lastErr
}

// Execute simulates the trade in SIM mode and broadcasts it in LIVE mode. A
// broadcast transaction is reported as pending.
func (s *Strategy) Execute(ctx context.Context, opp domain.Opportunity) (res domain.ExecutionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "crossvenue.execute",
		attribute.String("opportunity", opp.ID),
		attribute.String("asset", opp.Asset),
		attribute.Bool("live", s.cfg.Live),
	)
	defer func() { span.EndWith(err) }()

	units := opp.Units()
	minOut := MinAmountOut(units, s.cfg.SlippageBps)

	if !s.cfg.Live {
		s.log.Info(ctx, "simulated execution",
			"asset", opp.Asset,
			"buy", opp.BuySource+" @ "+opp.BuyPrice.StringFixed(4),
			"sell", opp.SellSource+" @ "+opp.SellPrice.StringFixed(4),
			"units", units.StringFixed(6),
			"min_out", minOut.StringFixed(6),
			"expected_profit_usd", opp.EstimatedProfitUSD().StringFixed(2))
		s.recordTrade(ctx, "sim")
		return domain.ExecutionResult{
			Status:            domain.ExecutionSucceeded,
			RealizedProfitUSD: opp.EstimatedProfitUSD(),
			CostUSD:           opp.Profit.CostUSD,
			Simulated:         true,
		}, nil
	}

	failed := domain.ExecutionResult{Status: domain.ExecutionFailed}

	if s.builder == nil {
		return failed, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithContext("live execution requires a transaction builder"))
	}

	payload, err := s.builder.Build(ctx, opp)
	if err != nil {
		return failed, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err),
			apperror.WithContext("build "+opp.ID))
	}

	hash, err := s.chain.Broadcast(ctx, payload)
	if err != nil {
		if !mayBeInFlight(ctx, err) {
			return failed, err
		}
		// The node may have accepted the transaction before the call failed.
		// A signed transaction's hash is the keccak of its binary encoding.
		hash = crypto.Keccak256Hash(payload)
		s.log.Warn(ctx, "broadcast outcome unknown, tracking as pending",
			"opportunity", opp.ID,
			"tx", hash.Hex(),
			"error", err)
		return domain.ExecutionResult{
			Status:  domain.ExecutionPending,
			CostUSD: opp.Profit.CostUSD,
			TxHash:  hash.Hex(),
		}, err
	}

	s.recordTrade(ctx, "live")
	s.log.Info(ctx, "transaction broadcast",
		"opportunity", opp.ID,
		"tx", hash.Hex(),
		"min_out", minOut.StringFixed(6))
	return domain.ExecutionResult{
		Status:  domain.ExecutionPending,
		CostUSD: opp.Profit.CostUSD,
		TxHash:  hash.Hex(),
	}, nil
}

// mayBeInFlight reports whether a failed broadcast could still have reached
// the mempool: it was cut off by cancellation or a timeout, lost the
// connection, ran out of retries, or a resend found its nonce already used.
func mayBeInFlight(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, retry.ErrRetriesExhausted),
		errors.Is(err, blockchainDomain.ErrNonceConsumed):
		return true
	}
	retryable, _ := retry.Classify(err)
	return retryable
}

// Settle looks up the receipt of a broadcast transaction. A mined trade
// realizes the profit it was opened for; a reverted one loses its costs.
func (s *Strategy) Settle(ctx context.Context, opp domain.Opportunity, txHash string) (domain.ExecutionResult, error) {
	r, err := s.chain.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return domain.ExecutionResult{Status: domain.ExecutionPending, TxHash: txHash}, err
	}

	res := domain.ExecutionResult{
		Status:  domain.ExecutionPending,
		CostUSD: opp.Profit.CostUSD,
		TxHash:  txHash,
	}
	switch r.Status {
	case blockchainDomain.TxConfirmed:
		res.Status = domain.ExecutionSucceeded
		res.RealizedProfitUSD = opp.EstimatedProfitUSD()
		res.ExitPrice = opp.SellPrice
	case blockchainDomain.TxReverted:
		res.Status = domain.ExecutionFailed
		s.log.Warn(ctx, "transaction reverted", "opportunity", opp.ID, "tx", txHash, "block", r.BlockNumber)
	}
	return res, nil
}

func (s *Strategy) recordTrade(ctx context.Context, mode string) {
	s.executed.Add(1)
	s.metrics.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

var (
	_ app.Strategy = (*Strategy)(nil)
	_ app.Toggler  = (*Strategy)(nil)
	_ app.Settler  = (*Strategy)(nil)
)
