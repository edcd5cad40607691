package crossvenue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/arbitrage-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeOracle struct {
	venues  []string
	prices  map[string]map[string]pricingDomain.AggregatedPrice // venue -> asset
	lookups atomic.Int32
}

func (f *fakeOracle) Venues() []string { return f.venues }

func (f *fakeOracle) GetUSDPrice(_ context.Context, symbol, venue string) (pricingDomain.AggregatedPrice, error) {
	f.lookups.Add(1)
	p, ok := f.prices[venue][symbol]
	if !ok {
		return pricingDomain.AggregatedPrice{}, apperror.New(apperror.CodeNoPriceAvailable, apperror.WithContext(venue+"/"+symbol))
	}
	return p, nil
}

func price(venue, asset, usd, fee string) pricingDomain.AggregatedPrice {
	return pricingDomain.AggregatedPrice{
		Asset:        asset,
		Venue:        venue,
		PriceUSD:     d(usd),
		LiquidityUSD: d("2000000"),
		Fee:          d(fee),
		SampleCount:  1,
		CachedUntil:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeChain struct {
	feeErr       error
	broadcastErr error
	sent         [][]byte

	receipt    blockchainDomain.Receipt
	receiptErr error
	looked     []common.Hash
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (blockchainDomain.Receipt, error) {
	f.looked = append(f.looked, hash)
	if f.receiptErr != nil {
		return blockchainDomain.Receipt{}, f.receiptErr
	}
	r := f.receipt
	r.Hash = hash
	return r, nil
}

func (f *fakeChain) EstimateFee(_ context.Context, req blockchainDomain.CallRequest) (blockchainDomain.FeeEstimate, error) {
	if f.feeErr != nil {
		return blockchainDomain.FeeEstimate{}, f.feeErr
	}
	// 50 gwei
	return blockchainDomain.NewFeeEstimate(blockchainDomain.DefaultGasLimit(req.Operation), big.NewInt(50_000_000_000), false), nil
}

func (f *fakeChain) Broadcast(_ context.Context, signedTx []byte) (common.Hash, error) {
	if f.broadcastErr != nil {
		return common.Hash{}, f.broadcastErr
	}
	f.sent = append(f.sent, signedTx)
	return common.HexToHash("0xabc"), nil
}

type fakeBuilder struct {
	err error
}

func (b fakeBuilder) Build(_ context.Context, opp domain.Opportunity) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte("signed:" + opp.ID), nil
}

func newOracle() *fakeOracle {
	return &fakeOracle{
		venues: []string{"quickswap", "sushiswap", "uniswap_v3"},
		prices: map[string]map[string]pricingDomain.AggregatedPrice{
			"quickswap": {
				"WETH":   price("quickswap", "WETH", "2000", "0.003"),
				"WBTC":   price("quickswap", "WBTC", "60000", "0.003"),
				"WMATIC": price("quickswap", "WMATIC", "0.85", "0.003"),
				"USDC":   {Asset: "USDC", Venue: "quickswap", PriceUSD: d("1"), IsStable: true},
			},
			"sushiswap": {
				"WETH": price("sushiswap", "WETH", "2030", "0.003"),
				"USDC": {Asset: "USDC", Venue: "sushiswap", PriceUSD: d("1"), IsStable: true},
			},
			"uniswap_v3": {
				"WETH": price("uniswap_v3", "WETH", "2010", "0.003"),
			},
		},
	}
}

func testConfig() Config {
	return Config{
		Assets:         []string{"WETH", "WBTC", "USDC"},
		NativeAsset:    "WMATIC",
		TradeSizeUSD:   d("10000"),
		GasFallbackUSD: d("10"),
		MaxConfidence:  d("0.95"),
		SlippageBps:    50,
	}
}

func newTestStrategy(cfg Config, oracle PriceOracle, chain Chain, opts ...Option) *Strategy {
	scanner := app.NewScanner(config.ScannerConfig{MinProfitUSD: 15, MinLiquidityUSD: 50000, MinConfidence: 0.55})
	return New(cfg, scanner, oracle, chain, logger.NewDiscard(), opts...)
}

func TestStrategy_Confidence(t *testing.T) {
	s := newTestStrategy(testConfig(), newOracle(), &fakeChain{})

	tests := []struct {
		edge string
		want string
	}{
		{"0", "0.5"},
		{"0.001", "0.51"},
		{"0.015", "0.65"},
		{"0.045", "0.95"},
		{"0.2", "0.95"},
	}
	for _, tt := range tests {
		t.Run(tt.edge, func(t *testing.T) {
			if got := s.Confidence(d(tt.edge)); !got.Equal(d(tt.want)) {
				t.Errorf("Confidence(%s) = %s, want %s", tt.edge, got, tt.want)
			}
		})
	}
}

func TestMinAmountOut(t *testing.T) {
	tests := []struct {
		amount string
		bps    int
		want   string
	}{
		{"5", 50, "4.975"},
		{"100", 0, "100"},
		{"2", 10000, "0"},
	}
	for _, tt := range tests {
		if got := MinAmountOut(d(tt.amount), tt.bps); !got.Equal(d(tt.want)) {
			t.Errorf("MinAmountOut(%s, %d) = %s, want %s", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestStrategy_Scan(t *testing.T) {
	tests := []struct {
		name    string
		chain   *fakeChain
		mutate  func(o *fakeOracle)
		wantNet string
	}{
		{
			// 1.5% edge, 0.6% fees, 800k gas at 50 gwei priced at 0.85
			name:    "estimated gas",
			chain:   &fakeChain{},
			wantNet: "89.966",
		},
		{
			name:    "fee estimate fails",
			chain:   &fakeChain{feeErr: errors.New("connection refused")},
			wantNet: "80",
		},
		{
			name:  "native price missing",
			chain: &fakeChain{},
			mutate: func(o *fakeOracle) {
				delete(o.prices["quickswap"], "WMATIC")
			},
			wantNet: "80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newOracle()
			if tt.mutate != nil {
				tt.mutate(oracle)
			}
			s := newTestStrategy(testConfig(), oracle, tt.chain)

			opps, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(opps) != 1 {
				t.Fatalf("candidates = %d, want 1 (WETH only)", len(opps))
			}

			opp := opps[0]
			if opp.StrategyID != ID || opp.Asset != "WETH" {
				t.Errorf("unexpected candidate %s/%s", opp.StrategyID, opp.Asset)
			}
			if opp.BuySource != "quickswap" || opp.SellSource != "sushiswap" {
				t.Errorf("buy/sell = %s/%s, want quickswap/sushiswap", opp.BuySource, opp.SellSource)
			}
			if !opp.Confidence.Equal(d("0.65")) {
				t.Errorf("confidence = %s, want 0.65", opp.Confidence)
			}
			if !opp.EstimatedProfitUSD().Equal(d(tt.wantNet)) {
				t.Errorf("net = %s, want %s", opp.EstimatedProfitUSD(), tt.wantNet)
			}
			if st := s.Stats(); st.OpportunitiesFound != 1 || !st.Enabled {
				t.Errorf("stats = %+v", st)
			}
		})
	}
}

func TestStrategy_ScanSkipsFallbackPrices(t *testing.T) {
	oracle := newOracle()
	fb := price("sushiswap", "WETH", "2030", "0")
	fb.IsFallback = true
	fb.LiquidityUSD = decimal.Zero
	oracle.prices["sushiswap"]["WETH"] = fb

	s := newTestStrategy(testConfig(), oracle, &fakeChain{})
	opps, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 || opps[0].SellSource != "uniswap_v3" {
		t.Fatalf("candidates = %+v, want WETH sold on uniswap_v3", opps)
	}
}

func TestStrategy_ScanFailsWhenNoVenueAnswers(t *testing.T) {
	oracle := newOracle()
	oracle.prices = map[string]map[string]pricingDomain.AggregatedPrice{}

	s := newTestStrategy(testConfig(), oracle, &fakeChain{})
	_, err := s.Scan(context.Background())
	if apperror.GetCode(err) != apperror.CodeNoPriceAvailable {
		t.Errorf("code = %v, want %v", apperror.GetCode(err), apperror.CodeNoPriceAvailable)
	}
}

func TestStrategy_DisabledSkipsScan(t *testing.T) {
	oracle := newOracle()
	s := newTestStrategy(testConfig(), oracle, &fakeChain{})
	s.Disable()

	opps, err := s.Scan(context.Background())
	if err != nil || len(opps) != 0 {
		t.Fatalf("Scan = %v, %v", opps, err)
	}
	if oracle.lookups.Load() != 0 {
		t.Errorf("lookups = %d, want 0", oracle.lookups.Load())
	}

	s.Enable()
	if !s.Enabled() {
		t.Error("Enable did not take effect")
	}
}

func simulatedOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:          "opp-1",
		StrategyID:  ID,
		Asset:       "WETH",
		BuySource:   "quickswap",
		SellSource:  "sushiswap",
		BuyPrice:    d("2000"),
		SellPrice:   d("2030"),
		NotionalUSD: d("10000"),
		Profit:      domain.ComputeProfit(d("10000"), d("2000"), d("2030"), d("0.006"), d("10")),
	}
}

func TestStrategy_ExecuteSimulated(t *testing.T) {
	chain := &fakeChain{}
	s := newTestStrategy(testConfig(), newOracle(), chain)

	res, err := s.Execute(context.Background(), simulatedOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != domain.ExecutionSucceeded || !res.Simulated {
		t.Errorf("result = %+v", res)
	}
	if !res.RealizedProfitUSD.Equal(d("80")) || !res.CostUSD.Equal(d("10")) {
		t.Errorf("realized %s cost %s, want 80 and 10", res.RealizedProfitUSD, res.CostUSD)
	}
	if len(chain.sent) != 0 {
		t.Error("simulation broadcast a transaction")
	}
	if s.Stats().TradesExecuted != 1 {
		t.Errorf("trades = %d, want 1", s.Stats().TradesExecuted)
	}
}

func TestStrategy_ExecuteLive(t *testing.T) {
	live := testConfig()
	live.Live = true

	tests := []struct {
		name       string
		chain      *fakeChain
		opts       []Option
		wantStatus domain.ExecutionStatus
		wantCode   apperror.Code
		wantSent   int
	}{
		{
			name:       "no builder",
			chain:      &fakeChain{},
			wantStatus: domain.ExecutionFailed,
			wantCode:   apperror.CodeExecutionFailed,
		},
		{
			name:       "builder fails",
			chain:      &fakeChain{},
			opts:       []Option{WithTxBuilder(fakeBuilder{err: errors.New("signer locked")})},
			wantStatus: domain.ExecutionFailed,
			wantCode:   apperror.CodeExecutionFailed,
		},
		{
			name:       "broadcast fails",
			chain:      &fakeChain{broadcastErr: apperror.New(apperror.CodeBroadcastFailed)},
			opts:       []Option{WithTxBuilder(fakeBuilder{})},
			wantStatus: domain.ExecutionFailed,
			wantCode:   apperror.CodeBroadcastFailed,
		},
		{
			name:       "broadcast is pending",
			chain:      &fakeChain{},
			opts:       []Option{WithTxBuilder(fakeBuilder{})},
			wantStatus: domain.ExecutionPending,
			wantSent:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStrategy(live, newOracle(), tt.chain, tt.opts...)

			res, err := s.Execute(context.Background(), simulatedOpportunity())
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if tt.wantCode != "" && apperror.GetCode(err) != tt.wantCode {
				t.Errorf("code = %v, want %v", apperror.GetCode(err), tt.wantCode)
			}
			if tt.wantCode == "" && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if len(tt.chain.sent) != tt.wantSent {
				t.Errorf("sent %d transactions, want %d", len(tt.chain.sent), tt.wantSent)
			}
			if res.Simulated {
				t.Error("live result marked simulated")
			}
		})
	}
}

func TestStrategy_ExecuteLivePendingCarriesHash(t *testing.T) {
	live := testConfig()
	live.Live = true
	chain := &fakeChain{}
	s := newTestStrategy(live, newOracle(), chain, WithTxBuilder(fakeBuilder{}))

	res, err := s.Execute(context.Background(), simulatedOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TxHash != common.HexToHash("0xabc").Hex() {
		t.Errorf("tx = %s", res.TxHash)
	}
	if string(chain.sent[0]) != "signed:opp-1" {
		t.Errorf("payload = %q", chain.sent[0])
	}
	if s.Stats().TradesExecuted != 1 {
		t.Errorf("trades = %d, want 1", s.Stats().TradesExecuted)
	}
}

func TestStrategy_ExecuteLiveUnknownBroadcastIsPending(t *testing.T) {
	live := testConfig()
	live.Live = true

	exhausted := &retry.ExhaustedError{Attempts: 4, Class: retry.ClassTimeout, Last: context.DeadlineExceeded}
	tests := []struct {
		name string
		err  error
	}{
		{"timed out", apperror.New(apperror.CodeBroadcastFailed, apperror.WithCause(context.DeadlineExceeded))},
		{"connection reset", errors.New("read: connection reset by peer")},
		{"retries exhausted", exhausted},
		{"cancelled mid-send", &url.Error{Op: "Post", URL: "http://rpc", Err: context.Canceled}},
		{"resend hit a used nonce", fmt.Errorf("%w: %w", blockchainDomain.ErrNonceConsumed, errors.New("nonce too low"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &fakeChain{broadcastErr: tt.err}
			s := newTestStrategy(live, newOracle(), chain, WithTxBuilder(fakeBuilder{}))

			res, err := s.Execute(context.Background(), simulatedOpportunity())
			if err == nil {
				t.Error("expected the broadcast error to be reported")
			}
			if res.Status != domain.ExecutionPending {
				t.Fatalf("status = %s, want %s", res.Status, domain.ExecutionPending)
			}
			want := crypto.Keccak256Hash([]byte("signed:opp-1")).Hex()
			if res.TxHash != want {
				t.Errorf("tx = %s, want %s", res.TxHash, want)
			}
		})
	}
}

func TestStrategy_Settle(t *testing.T) {
	tests := []struct {
		name       string
		chain      *fakeChain
		wantStatus domain.ExecutionStatus
		wantProfit string
		wantErr    bool
	}{
		{
			name:       "not mined",
			chain:      &fakeChain{receipt: blockchainDomain.Receipt{Status: blockchainDomain.TxPending}},
			wantStatus: domain.ExecutionPending,
			wantProfit: "0",
		},
		{
			name:       "confirmed",
			chain:      &fakeChain{receipt: blockchainDomain.Receipt{Status: blockchainDomain.TxConfirmed, BlockNumber: 7}},
			wantStatus: domain.ExecutionSucceeded,
			wantProfit: "80",
		},
		{
			name:       "reverted",
			chain:      &fakeChain{receipt: blockchainDomain.Receipt{Status: blockchainDomain.TxReverted, BlockNumber: 7}},
			wantStatus: domain.ExecutionFailed,
			wantProfit: "0",
		},
		{
			name:       "lookup fails",
			chain:      &fakeChain{receiptErr: errors.New("connection refused")},
			wantStatus: domain.ExecutionPending,
			wantProfit: "0",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStrategy(testConfig(), newOracle(), tt.chain)
			opp := simulatedOpportunity()

			res, err := s.Settle(context.Background(), opp, "0xabc")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, want error %v", err, tt.wantErr)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if !res.RealizedProfitUSD.Equal(d(tt.wantProfit)) {
				t.Errorf("profit = %s, want %s", res.RealizedProfitUSD, tt.wantProfit)
			}
			if len(tt.chain.looked) != 1 || tt.chain.looked[0] != common.HexToHash("0xabc") {
				t.Errorf("looked up %v", tt.chain.looked)
			}
		})
	}
}
