package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for explicit missing file, got cfg %+v", cfg)
	}

	t.Chdir(t.TempDir())
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.App.Mode != ModeDev {
		t.Errorf("mode = %s, want %s", cfg.App.Mode, ModeDev)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.MaxDelay != 60*time.Second {
		t.Errorf("max_delay = %s, want 60s", cfg.Retry.MaxDelay)
	}
	if cfg.Pricing.CacheTTL != 60*time.Second {
		t.Errorf("cache_ttl = %s, want 60s", cfg.Pricing.CacheTTL)
	}
	if cfg.Scanner.MinProfitUSD != 15 {
		t.Errorf("min_profit_usd = %v, want 15", cfg.Scanner.MinProfitUSD)
	}
	if cfg.Loan.MaxPoolFraction != 0.10 {
		t.Errorf("max_pool_fraction = %v, want 0.10", cfg.Loan.MaxPoolFraction)
	}
	if got := cfg.Pricing.FallbackPricesDecimal()["WMATIC"].String(); got != "0.85" {
		t.Errorf("fallback WMATIC = %s, want 0.85", got)
	}
	if cfg.App.IsLive() {
		t.Error("default config must not be live")
	}
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MIN_PROFIT_USD", "25")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("MODE", "sim")
	t.Setenv("ACTIVE_STRATEGIES", "CROSS_VENUE_ARBITRAGE, OTHER")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Scanner.MinProfitUSD != 25 {
		t.Errorf("min_profit_usd = %v, want 25", cfg.Scanner.MinProfitUSD)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.App.Mode != ModeSim {
		t.Errorf("mode = %s, want %s", cfg.App.Mode, ModeSim)
	}
	if len(cfg.Strategy.Active) != 2 || cfg.Strategy.Active[1] != "OTHER" {
		t.Errorf("active = %v, want [CROSS_VENUE_ARBITRAGE OTHER]", cfg.Strategy.Active)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  mode: SIM
pricing:
  venues:
    alpha: [static]
    beta: [static, coingecko]
risk:
  total_capital_usd: 5000
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Risk.TotalCapitalUSD != 5000 {
		t.Errorf("total_capital_usd = %v, want 5000", cfg.Risk.TotalCapitalUSD)
	}
	venues := cfg.Pricing.VenueNames()
	if len(venues) < 2 || venues[0] != "alpha" {
		t.Errorf("venues = %v, want alpha first", venues)
	}
	if got := cfg.Pricing.Venues["beta"]; len(got) != 2 {
		t.Errorf("beta sources = %v, want 2", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:         AppConfig{Mode: ModeDev},
			Retry:       RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2},
			Risk:        RiskConfig{TotalCapitalUSD: 1000, MaxPositionSizeUSD: 500, KellyCap: 0.25, RiskPerTrade: 0.02},
			Scanner:     ScannerConfig{MinConfidence: 0.5},
			Loan:        LoanConfig{DefaultProvider: "BALANCER", ProviderFees: map[string]float64{"balancer": 0}},
			Coordinator: CoordinatorConfig{ScanInterval: time.Second, MaxConcurrentScans: 1},
			Pricing:     PricingConfig{Venues: map[string][]string{"v": {"static"}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad mode", func(c *Config) { c.App.Mode = "PROD" }, true},
		{"live without live mode", func(c *Config) { c.App.LiveExecution = true }, true},
		{"live without rpc", func(c *Config) {
			c.App.Mode = ModeLive
			c.App.LiveExecution = true
			c.Chain.WalletAddress = "0x0000000000000000000000000000000000000001"
		}, true},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, true},
		{"max below base", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, true},
		{"kelly cap zero", func(c *Config) { c.Risk.KellyCap = 0 }, true},
		{"unknown loan provider", func(c *Config) { c.Loan.DefaultProvider = "MAKER" }, true},
		{"no venues", func(c *Config) { c.Pricing.Venues = nil }, true},
		{"zero concurrency", func(c *Config) { c.Coordinator.MaxConcurrentScans = 0 }, true},
		{"unknown source", func(c *Config) { c.Pricing.Venues["v"] = []string{"kraken"} }, true},
		{"venue without sources", func(c *Config) { c.Pricing.Venues["v"] = nil }, true},
		{"uniswap without rpc", func(c *Config) { c.Pricing.Venues["v"] = []string{"Uniswap"} }, true},
		{"uniswap with rpc", func(c *Config) {
			c.Pricing.Venues["v"] = []string{"uniswap", "coingecko"}
			c.Chain.RPCURLs = []string{"http://localhost:8545"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
