// Package ethereum implements the blockchain ports on top of go-ethereum's
// ethclient, spreading calls over one or more RPC endpoints.
package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/business/blockchain/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/cache"
	"github.com/fd1az/arbitrage-engine/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

const (
	tracerName = "ethereum"
	meterName  = "ethereum"

	gasPriceKey = "gas_price"
)

// Backend is the subset of *ethclient.Client used here.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a Backend for an RPC url.
type Dialer func(ctx context.Context, url string) (Backend, error)

func dialEthclient(ctx context.Context, url string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config holds client settings.
type Config struct {
	URLs               []string
	GasPriceMultiplier float64
	GasLimitMargin     float64
	FeeCacheTTL        time.Duration
	RequestTimeout     time.Duration
	MaxGasPrice        *big.Int
}

// ConfigFrom builds a Config from the chain section.
func ConfigFrom(c config.ChainConfig) Config {
	var maxGas *big.Int
	if c.MaxGasPriceGwei > 0 {
		maxGas = new(big.Int).Mul(big.NewInt(c.MaxGasPriceGwei), big.NewInt(1e9))
	}

	return Config{
		URLs:               c.RPCURLs,
		GasPriceMultiplier: c.GasPriceMultiplier,
		GasLimitMargin:     c.GasLimitMargin,
		FeeCacheTTL:        c.FeeCacheTTL,
		RequestTimeout:     c.RequestTimeout,
		MaxGasPrice:        maxGas,
	}
}

type endpoint struct {
	url     string
	backend Backend
	cb      *circuitbreaker.CircuitBreaker[any]

	failures  int
	lastError string
	lastUsed  time.Time
}

// rejected carries a non-retryable call error through the breaker
// without counting it as an endpoint failure.
type rejected struct{ err error }

type clientMetrics struct {
	calls     metric.Int64Counter
	failovers metric.Int64Counter
	gasPrice  metric.Float64Gauge
	cacheHits metric.Int64Counter
}

// Client rotates across RPC endpoints. Each endpoint is dialed lazily and
// guarded by its own circuit breaker. Retryable failures move the active
// endpoint forward; fatal ones are returned as is.
type Client struct {
	cfg  Config
	log  logger.LoggerInterface
	dial Dialer

	mu        sync.Mutex
	endpoints []*endpoint
	active    int

	fees *cache.Cache[string, *big.Int]

	tracer  *apm.Tracer
	metrics *clientMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the ethclient dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

func NewClient(cfg Config, log logger.LoggerInterface, opts ...Option) *Client {
	if cfg.GasPriceMultiplier <= 0 {
		cfg.GasPriceMultiplier = 1
	}

	c := &Client{
		cfg:    cfg,
		log:    log,
		dial:   dialEthclient,
		fees:   cache.New[string, *big.Int](time.Minute),
		tracer: apm.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, url := range cfg.URLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		c.endpoints = append(c.endpoints, &endpoint{
			url: url,
			cb:  circuitbreaker.New[any](circuitbreaker.DefaultConfig("rpc:" + redact(url))),
		})
	}

	c.initMetrics()
	return c
}

func (c *Client) initMetrics() {
	meter := otel.Meter(meterName)
	c.metrics = &clientMetrics{}

	c.metrics.calls, _ = meter.Int64Counter(
		"rpc_calls_total",
		metric.WithDescription("Total RPC calls by method"),
	)
	c.metrics.failovers, _ = meter.Int64Counter(
		"rpc_failovers_total",
		metric.WithDescription("Endpoint rotations after a failed call"),
	)
	c.metrics.gasPrice, _ = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Adjusted gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	c.metrics.cacheHits, _ = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
	)
}

// call runs fn against endpoints starting at the active one.
func call[T any](ctx context.Context, c *Client, method string, fn func(context.Context, Backend) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	n := len(c.endpoints)
	start := c.active
	c.mu.Unlock()

	if n == 0 {
		return zero, apperror.New(apperror.CodeNoRPCEndpoints, apperror.WithContext(method))
	}

	c.metrics.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		ep := c.endpoints[idx]

		res, err := ep.cb.Execute(func() (any, error) {
			b, err := c.backend(ctx, ep)
			if err != nil {
				return nil, err
			}

			callCtx := ctx
			if c.cfg.RequestTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
				defer cancel()
			}
			v, err := fn(callCtx, b)
			if err != nil {
				// The endpoint answered; a revert or bad nonce is not its fault.
				if retryable, _ := retry.Classify(err); !retryable {
					return rejected{err}, nil
				}
				return nil, err
			}
			return v, nil
		})

		if r, ok := res.(rejected); ok && err == nil {
			c.record(idx, nil)
			return zero, r.err
		}

		c.record(idx, err)
		if err == nil {
			out, _ := res.(T)
			return out, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !shouldRotate(err) {
			return zero, err
		}

		if n > 1 {
			c.rotate(idx, n)
			c.metrics.failovers.Add(ctx, 1)
			c.log.Warn(ctx, "rpc endpoint failed, rotating",
				"method", method,
				"endpoint", redact(ep.url),
				"error", err)
		}
	}

	return zero, lastErr
}

func (c *Client) backend(ctx context.Context, ep *endpoint) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ep.backend != nil {
		return ep.backend, nil
	}

	b, err := c.dial(ctx, ep.url)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(redact(ep.url)))
	}
	ep.backend = b
	return b, nil
}

func (c *Client) record(idx int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ep := c.endpoints[idx]
	ep.lastUsed = time.Now()
	if err != nil {
		ep.failures++
		ep.lastError = err.Error()
		return
	}
	ep.failures = 0
	ep.lastError = ""
}

// rotate moves the active endpoint past failed, unless another call already did.
func (c *Client) rotate(failed, n int) {
	c.mu.Lock()
	if c.active == failed {
		c.active = (failed + 1) % n
	}
	c.mu.Unlock()
}

// shouldRotate reports whether err warrants trying the next endpoint:
// transient failures, open breakers and endpoints that cannot be dialed.
func shouldRotate(err error) bool {
	switch apperror.GetCode(err) {
	case apperror.CodeCircuitOpen, apperror.CodeCircuitHalfOpen, apperror.CodeEthereumConnectionFailed:
		return true
	}
	retryable, _ := retry.Classify(err)
	return retryable
}

// LatestBlock returns the head block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := call(ctx, c, "eth_blockNumber", func(ctx context.Context, b Backend) (uint64, error) {
		return b.BlockNumber(ctx)
	})
	if err != nil {
		return 0, wrapRPC(err, "block number")
	}
	return n, nil
}

// GetBalance returns the native balance of account in wei.
func (c *Client) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := call(ctx, c, "eth_getBalance", func(ctx context.Context, b Backend) (*big.Int, error) {
		return b.BalanceAt(ctx, account, nil)
	})
	if err != nil {
		return nil, wrapRPC(err, "balance of "+account.Hex())
	}
	return bal, nil
}

// CallContract executes a read-only call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ctx context.Context, b Backend) ([]byte, error) {
		return b.CallContract(ctx, msg, blockNumber)
	})
}

// GasPrice returns the node's suggested gas price scaled by the configured
// multiplier and capped at MaxGasPrice. Results are cached for FeeCacheTTL.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	if wei, ok := c.fees.Get(ctx, gasPriceKey); ok {
		c.metrics.cacheHits.Add(ctx, 1)
		return new(big.Int).Set(wei), nil
	}

	suggested, err := call(ctx, c, "eth_gasPrice", func(ctx context.Context, b Backend) (*big.Int, error) {
		return b.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, wrapRPC(err, "gas price")
	}

	wei := decimal.NewFromBigInt(suggested, 0).
		Mul(decimal.NewFromFloat(c.cfg.GasPriceMultiplier)).
		Ceil().
		BigInt()

	if c.cfg.MaxGasPrice != nil && wei.Cmp(c.cfg.MaxGasPrice) > 0 {
		c.log.Warn(ctx, "gas price exceeds max", "wei", wei.String(), "max", c.cfg.MaxGasPrice.String())
		wei = new(big.Int).Set(c.cfg.MaxGasPrice)
	}

	if c.cfg.FeeCacheTTL > 0 {
		c.fees.Set(ctx, gasPriceKey, wei, c.cfg.FeeCacheTTL)
	}
	gwei, _ := decimal.NewFromBigInt(wei, -9).Float64()
	c.metrics.gasPrice.Record(ctx, gwei)

	return new(big.Int).Set(wei), nil
}

// EstimateFee prices req. The gas limit is the node estimate plus the
// configured margin, or the operation's default when the node cannot
// estimate it.
func (c *Client) EstimateFee(ctx context.Context, req domain.CallRequest) (fee domain.FeeEstimate, err error) {
	ctx, span := c.tracer.Start(ctx, "ethereum.estimate_fee",
		attribute.String("operation", string(req.Operation)))
	defer func() { span.EndWith(err) }()

	price, err := c.GasPrice(ctx)
	if err != nil {
		return domain.FeeEstimate{}, err
	}

	if req.To != nil {
		gas, estErr := c.estimateGas(ctx, req)
		if estErr == nil {
			return domain.NewFeeEstimate(gas, price, true), nil
		}
		err = estErr
	}

	limit := domain.DefaultGasLimit(req.Operation)
	if limit == 0 {
		if err == nil {
			err = apperror.New(apperror.CodeGasEstimationFailed,
				apperror.WithContext("no target and no default limit for "+string(req.Operation)))
		}
		return domain.FeeEstimate{}, err
	}
	if err != nil {
		c.log.Debug(ctx, "gas estimation failed, using default limit",
			"operation", req.Operation,
			"limit", limit,
			"error", err)
		span.AddEvent("default_gas_limit", attribute.Int64("limit", int64(limit)))
		err = nil
	}
	return domain.NewFeeEstimate(limit, price, false), nil
}

func (c *Client) estimateGas(ctx context.Context, req domain.CallRequest) (uint64, error) {
	msg := ethereum.CallMsg{
		From:  req.From,
		To:    req.To,
		Data:  req.Data,
		Value: req.Value,
	}
	gas, err := call(ctx, c, "eth_estimateGas", func(ctx context.Context, b Backend) (uint64, error) {
		return b.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(req.To.Hex()))
	}

	margin := c.cfg.GasLimitMargin
	if margin < 0 {
		margin = 0
	}
	return gas + uint64(float64(gas)*margin), nil
}

// Broadcast submits a signed, RLP or typed-envelope encoded transaction and
// returns its hash. A node that already knows the transaction counts as
// success so resubmission is safe.
func (c *Client) Broadcast(ctx context.Context, signedTx []byte) (hash common.Hash, err error) {
	ctx, span := c.tracer.Start(ctx, "ethereum.broadcast")
	defer func() { span.EndWith(err) }()

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return common.Hash{}, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext("signed transaction"))
	}
	span.SetAttributes(attribute.String("tx.hash", tx.Hash().Hex()))

	_, err = call(ctx, c, "eth_sendRawTransaction", func(ctx context.Context, b Backend) (struct{}, error) {
		return struct{}{}, b.SendTransaction(ctx, tx)
	})
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already known") {
		err = nil
	}
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeBroadcastFailed,
			apperror.WithCause(err),
			apperror.WithContext(tx.Hash().Hex()))
	}
	return tx.Hash(), nil
}

// TransactionReceipt looks up the receipt of hash. A transaction the node has
// not mined yet is reported as pending, not as an error.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	r, err := call(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context, b Backend) (*types.Receipt, error) {
		return b.TransactionReceipt(ctx, hash)
	})
	if errors.Is(err, ethereum.NotFound) {
		return domain.Receipt{Hash: hash, Status: domain.TxPending}, nil
	}
	if err != nil {
		return domain.Receipt{}, wrapRPC(err, "receipt of "+hash.Hex())
	}

	out := domain.Receipt{
		Hash:    hash,
		Status:  domain.TxReverted,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.Status == types.ReceiptStatusSuccessful {
		out.Status = domain.TxConfirmed
	}
	return out, nil
}

// Status returns a snapshot of every endpoint.
func (c *Client) Status() []domain.EndpointStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.EndpointStatus, len(c.endpoints))
	for i, ep := range c.endpoints {
		state := domain.StateIdle
		switch {
		case ep.failures > 0:
			state = domain.StateFailing
		case ep.backend != nil:
			state = domain.StateConnected
		}
		out[i] = domain.EndpointStatus{
			URL:       redact(ep.url),
			State:     state,
			Active:    i == c.active,
			Failures:  ep.failures,
			LastError: ep.lastError,
			LastUsed:  ep.lastUsed,
		}
	}
	return out
}

// Close releases every dialed backend.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ep := range c.endpoints {
		if ep.backend != nil {
			ep.backend.Close()
			ep.backend = nil
		}
	}
	c.fees.Close()
	return nil
}

func wrapRPC(err error, what string) error {
	if apperror.GetCode(err) == apperror.CodeNoRPCEndpoints {
		return err
	}
	return apperror.New(apperror.CodeEthereumRPCError,
		apperror.WithCause(err),
		apperror.WithContext(what))
}

// redact drops the path of an RPC url, which usually carries an API key.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		rest, scheme = url, ""
	}
	host, _, _ := strings.Cut(rest, "/")
	if scheme == "" {
		return host
	}
	return scheme + "://" + host
}
