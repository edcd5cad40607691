package app

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/arbitrage-engine/business/pricing/domain"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quote(t *testing.T, source, asset, price, fee, liquidity string) pricingDomain.PriceQuote {
	t.Helper()
	q, err := pricingDomain.NewPriceQuote(source, asset,
		decimal.RequireFromString(price),
		decimal.RequireFromString(liquidity),
		decimal.RequireFromString(fee),
		testNow)
	if err != nil {
		t.Fatalf("NewPriceQuote: %v", err)
	}
	return q
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "opp-" + strconv.Itoa(n)
	}
}

func newTestScanner() *Scanner {
	return NewScanner(config.ScannerConfig{
		MinProfitUSD:    15,
		MinLiquidityUSD: 50000,
		MinConfidence:   0.55,
	}, WithScannerClock(func() time.Time { return testNow }), WithIDGenerator(sequentialIDs()))
}

func TestScanner_FeeAwareRejection(t *testing.T) {
	s := newTestScanner()
	quotes := []pricingDomain.PriceQuote{
		quote(t, "dex2", "WETH", "2349.00", "0.0003", "1000000"),
		quote(t, "dex1", "WETH", "2347.50", "0.0003", "1000000"),
	}

	tests := []struct {
		name      string
		notional  string
		wantGross string
		wantNet   string
	}{
		{"10k notional", "10000", "6.39", "0.39"},
		{"50k notional", "50000", "31.95", "1.95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built := s.Build("cross", quotes, decimal.RequireFromString(tt.notional), FixedConfidence(decimal.RequireFromString("0.8")))
			if len(built) != 1 {
				t.Fatalf("built %d candidates, want 1", len(built))
			}

			opp := built[0]
			if opp.BuySource != "dex1" || opp.SellSource != "dex2" {
				t.Errorf("buy/sell = %s/%s, want dex1/dex2", opp.BuySource, opp.SellSource)
			}
			if got := opp.EdgePercent().Round(4); !got.Equal(decimal.RequireFromString("0.0639")) {
				t.Errorf("edge = %s%%, want 0.0639%%", got)
			}
			if !opp.FeeFraction.Equal(decimal.RequireFromString("0.0006")) {
				t.Errorf("fees = %s, want 0.0006", opp.FeeFraction)
			}
			if got := opp.Profit.GrossUSD.Round(2); !got.Equal(decimal.RequireFromString(tt.wantGross)) {
				t.Errorf("gross = %s, want %s", got, tt.wantGross)
			}
			if got := opp.EstimatedProfitUSD().Round(2); !got.Equal(decimal.RequireFromString(tt.wantNet)) {
				t.Errorf("net = %s, want %s", got, tt.wantNet)
			}

			ok, reason := s.Accepts(opp)
			if ok || !strings.Contains(reason, "net profit") {
				t.Errorf("Accepts = (%v, %q), want rejection on net profit", ok, reason)
			}
			if ranked := s.Rank(built); len(ranked) != 0 {
				t.Errorf("ranked %d, want 0", len(ranked))
			}
		})
	}
}

func TestScanner_BuildGrouping(t *testing.T) {
	s := newTestScanner()
	quotes := []pricingDomain.PriceQuote{
		quote(t, "a", "wbtc", "60000", "0", "1000000"),
		quote(t, "a", "WETH", "2000", "0", "1000000"),
		quote(t, "b", "WETH", "2010", "0", "1000000"),
		quote(t, "c", "WETH", "1990", "0", "1000000"),
		quote(t, "b", "WBTC", "60300", "0", "1000000"),
		quote(t, "a", "LINK", "15", "0", "1000000"),
	}

	got := s.Build("cross", quotes, decimal.NewFromInt(10000), nil)
	if len(got) != 2 {
		t.Fatalf("built %d, want 2 (LINK has a single quote)", len(got))
	}
	if got[0].Asset != "WBTC" || got[1].Asset != "WETH" {
		t.Errorf("assets = %s,%s, want first-seen order WBTC,WETH", got[0].Asset, got[1].Asset)
	}
	if got[1].BuySource != "c" || got[1].SellSource != "b" {
		t.Errorf("WETH buy/sell = %s/%s, want c/b", got[1].BuySource, got[1].SellSource)
	}
	if !got[0].Confidence.IsZero() {
		t.Errorf("confidence = %s, want 0 without a confidence func", got[0].Confidence)
	}
	if got[0].ID != "opp-1" || got[0].StrategyID != "cross" || !got[0].DetectedAt.Equal(testNow) {
		t.Errorf("unexpected metadata: %+v", got[0])
	}
}

func TestScanner_EqualPricesKeepInputOrder(t *testing.T) {
	s := newTestScanner()
	quotes := []pricingDomain.PriceQuote{
		quote(t, "first", "WETH", "2000", "0", "1000000"),
		quote(t, "second", "WETH", "2000", "0", "1000000"),
		quote(t, "third", "WETH", "2000", "0", "1000000"),
	}

	got := s.Build("cross", quotes, decimal.NewFromInt(10000), nil)
	if got[0].BuySource != "first" || got[0].SellSource != "third" {
		t.Errorf("buy/sell = %s/%s, want first/third", got[0].BuySource, got[0].SellSource)
	}
	if !got[0].Edge.IsZero() {
		t.Errorf("edge = %s, want 0", got[0].Edge)
	}
}

func TestScanner_BuildSkipsNonPositiveBuyPrice(t *testing.T) {
	s := newTestScanner()
	quotes := []pricingDomain.PriceQuote{
		{Source: "broken", Asset: "WETH", PriceUSD: decimal.Zero, LiquidityUSD: decimal.NewFromInt(1000000)},
		quote(t, "uniswap_v3", "WETH", "2000", "0", "1000000"),
		quote(t, "quickswap", "WBTC", "60000", "0", "1000000"),
		quote(t, "sushiswap", "WBTC", "60100", "0", "1000000"),
	}

	got := s.Build("cross", quotes, decimal.NewFromInt(10000), nil)
	if len(got) != 1 || got[0].Asset != "WBTC" {
		t.Fatalf("candidates = %+v, want WBTC only", got)
	}
}

func candidate(id string, net, confidence, liquidity string) domain.Opportunity {
	return domain.Opportunity{
		ID:               id,
		Confidence:       decimal.RequireFromString(confidence),
		BuyLiquidityUSD:  decimal.RequireFromString(liquidity),
		SellLiquidityUSD: decimal.RequireFromString(liquidity),
		Profit:           domain.ProfitBreakdown{Net: decimal.RequireFromString(net)},
	}
}

func TestScanner_Rank(t *testing.T) {
	s := newTestScanner()
	input := []domain.Opportunity{
		candidate("low-profit", "14.99", "0.9", "1000000"),
		candidate("a", "100", "0.6", "1000000"),
		candidate("thin", "500", "0.9", "49999"),
		candidate("b", "50", "0.9", "1000000"),
		candidate("unsure", "500", "0.5", "1000000"),
		candidate("c", "75", "0.8", "1000000"),
		candidate("d", "200", "0.95", "50000"),
	}

	ranked := s.Rank(input)

	// scores: d 190, a 60, c 60, b 45
	wantOrder := []string{"d", "a", "c", "b"}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("ranked %d, want %d", len(ranked), len(wantOrder))
	}
	for i, id := range wantOrder {
		if ranked[i].ID != id {
			t.Errorf("rank %d = %s, want %s", i+1, ranked[i].ID, id)
		}
		if ranked[i].Rank != i+1 {
			t.Errorf("%s rank = %d, want %d", ranked[i].ID, ranked[i].Rank, i+1)
		}
	}

	for _, in := range input {
		if in.Rank != 0 {
			t.Errorf("input %s mutated: rank %d", in.ID, in.Rank)
		}
	}
}

func TestScanner_RankIsDeterministic(t *testing.T) {
	s := newTestScanner()
	input := []domain.Opportunity{
		candidate("x", "100", "0.8", "1000000"),
		candidate("y", "100", "0.8", "1000000"),
		candidate("z", "100", "0.8", "1000000"),
	}

	for i := 0; i < 10; i++ {
		ranked := s.Rank(input)
		if ranked[0].ID != "x" || ranked[1].ID != "y" || ranked[2].ID != "z" {
			t.Fatalf("run %d: order %s,%s,%s, want x,y,z", i, ranked[0].ID, ranked[1].ID, ranked[2].ID)
		}
	}
}

func TestScanner_ScanAcceptsWideSpread(t *testing.T) {
	s := newTestScanner()
	quotes := []pricingDomain.PriceQuote{
		quote(t, "quickswap", "WETH", "2000", "0.003", "2500000"),
		quote(t, "uniswap_v3", "WETH", "2030", "0.0005", "4000000"),
	}

	ranked := s.Scan("cross", quotes, decimal.NewFromInt(10000), decimal.RequireFromString("0.65"))
	if len(ranked) != 1 {
		t.Fatalf("ranked %d, want 1", len(ranked))
	}
	// 1.5% edge minus 0.35% fees on 10k
	if !ranked[0].EstimatedProfitUSD().Equal(decimal.NewFromInt(115)) {
		t.Errorf("net = %s, want 115", ranked[0].EstimatedProfitUSD())
	}
	if ranked[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", ranked[0].Rank)
	}
}
