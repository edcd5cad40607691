// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Operating modes.
const (
	ModeDev  = "DEV"
	ModeSim  = "SIM"
	ModeLive = "LIVE"
)

// Price source names accepted in pricing.venues.
const (
	SourceStatic    = "static"
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
	SourceUniswap   = "uniswap"
)

var PriceSources = []string{SourceStatic, SourceCoinGecko, SourceBinance, SourceUniswap}

// Config holds all application configuration. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Loan        LoanConfig        `mapstructure:"loan"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Health      HealthConfig      `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name          string `mapstructure:"name"`
	Environment   string `mapstructure:"environment"`
	LogLevel      string `mapstructure:"log_level"`
	Mode          string `mapstructure:"mode"`
	LiveExecution bool   `mapstructure:"live_execution"`
}

// IsLive reports whether transactions are really broadcast.
func (c AppConfig) IsLive() bool {
	return strings.EqualFold(c.Mode, ModeLive) && c.LiveExecution
}

// ChainConfig holds RPC node configuration.
type ChainConfig struct {
	ChainID            uint64        `mapstructure:"chain_id"`
	RPCURLs            []string      `mapstructure:"rpc_urls"`
	WalletAddress      string        `mapstructure:"wallet_address"`
	NativeAsset        string        `mapstructure:"native_asset"`
	GasPriceMultiplier float64       `mapstructure:"gas_price_multiplier"`
	GasLimitMargin     float64       `mapstructure:"gas_limit_margin"`
	FeeCacheTTL        time.Duration `mapstructure:"fee_cache_ttl"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxGasPriceGwei    int64         `mapstructure:"max_gas_price_gwei"`
}

// WalletAddressHex returns the wallet address as common.Address.
func (c *ChainConfig) WalletAddressHex() common.Address {
	return common.HexToAddress(c.WalletAddress)
}

// RedisConfig holds the shared price tier connection. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// PricingConfig holds aggregator and price source settings.
type PricingConfig struct {
	CacheTTL       time.Duration                     `mapstructure:"cache_ttl"`
	FetchTimeout   time.Duration                     `mapstructure:"fetch_timeout"`
	Assets         []string                          `mapstructure:"assets"`
	Venues         map[string][]string               `mapstructure:"venues"` // venue -> source names
	FallbackPrices map[string]float64                `mapstructure:"fallback_prices"`
	CoinGecko      CoinGeckoConfig                   `mapstructure:"coingecko"`
	Binance        BinanceConfig                     `mapstructure:"binance"`
	Uniswap        UniswapConfig                     `mapstructure:"uniswap"`
	Static         map[string]map[string]StaticQuote `mapstructure:"static"` // venue -> asset -> quote
}

// VenueNames returns configured venues in sorted order.
func (c *PricingConfig) VenueNames() []string {
	names := make([]string, 0, len(c.Venues))
	for v := range c.Venues {
		names = append(names, v)
	}
	slices.Sort(names)
	return names
}

// FallbackPricesDecimal returns the fallback table keyed by upper-case symbol.
func (c *PricingConfig) FallbackPricesDecimal() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.FallbackPrices))
	for sym, p := range c.FallbackPrices {
		out[strings.ToUpper(sym)] = decimal.NewFromFloat(p)
	}
	return out
}

// CoinGeckoConfig holds CoinGecko API settings.
type CoinGeckoConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// BinanceConfig holds Binance REST and stream settings.
type BinanceConfig struct {
	RESTURL           string        `mapstructure:"rest_url"`
	WebSocketURL      string        `mapstructure:"websocket_url"` // wss://stream.binance.com:9443 or wss://stream.binance.us:9443 for US
	QuoteAsset        string        `mapstructure:"quote_asset"`
	StreamEnabled     bool          `mapstructure:"stream_enabled"`
	StaleTimeout      time.Duration `mapstructure:"stale_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	TakerFee          float64       `mapstructure:"taker_fee"`
}

// UniswapConfig holds Uniswap V3 contract addresses.
type UniswapConfig struct {
	QuoterAddress  string `mapstructure:"quoter_address"`
	FactoryAddress string `mapstructure:"factory_address"`
	QuoteToken     string `mapstructure:"quote_token"`
	DefaultFeeTier int    `mapstructure:"default_fee_tier"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c *UniswapConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// FactoryAddressHex returns the factory address as common.Address.
func (c *UniswapConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// StaticQuote is a fixed quote served by the static source.
type StaticQuote struct {
	Price        float64 `mapstructure:"price"`
	LiquidityUSD float64 `mapstructure:"liquidity_usd"`
	Fee          float64 `mapstructure:"fee"`
}

// RetryConfig holds the default backoff policy.
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Jitter          bool          `mapstructure:"jitter"`
	TimeoutMaxDelay time.Duration `mapstructure:"timeout_max_delay"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
}

// ScannerConfig holds opportunity filtering thresholds.
type ScannerConfig struct {
	MinProfitUSD    float64 `mapstructure:"min_profit_usd"`
	MinLiquidityUSD float64 `mapstructure:"min_liquidity_usd"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
}

// MinProfitUSDDecimal returns min profit USD as decimal.Decimal.
func (c *ScannerConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// MinLiquidityUSDDecimal returns min liquidity USD as decimal.Decimal.
func (c *ScannerConfig) MinLiquidityUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinLiquidityUSD)
}

// MinConfidenceDecimal returns min confidence as decimal.Decimal.
func (c *ScannerConfig) MinConfidenceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinConfidence)
}

// RiskConfig holds capital and sizing limits.
type RiskConfig struct {
	TotalCapitalUSD    float64 `mapstructure:"total_capital_usd"`
	MaxPositionSizeUSD float64 `mapstructure:"max_position_size_usd"`
	RiskPerTrade       float64 `mapstructure:"risk_per_trade"`
	KellyCap           float64 `mapstructure:"kelly_cap"`
	SlippageBps        int     `mapstructure:"slippage_bps"`
}

// LoanConfig holds flash loan fee settings.
type LoanConfig struct {
	DefaultProvider string             `mapstructure:"default_provider"`
	ProviderFees    map[string]float64 `mapstructure:"provider_fees"`
	MaxPoolFraction float64            `mapstructure:"max_pool_fraction"`
}

// CoordinatorConfig holds cycle driver settings.
type CoordinatorConfig struct {
	ScanInterval       time.Duration `mapstructure:"scan_interval"`
	MaxConcurrentScans int           `mapstructure:"max_concurrent_scans"`
	TopN               int           `mapstructure:"top_n"`
	CycleTimeout       time.Duration `mapstructure:"cycle_timeout"`
}

// StrategyConfig holds strategy settings.
type StrategyConfig struct {
	Active         []string `mapstructure:"active"`
	TradeSizeUSD   float64  `mapstructure:"trade_size_usd"`
	GasFallbackUSD float64  `mapstructure:"gas_fallback_usd"`
	MaxConfidence  float64  `mapstructure:"max_confidence"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // console, zipkin
	ZipkinURL      string `mapstructure:"zipkin_url"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.App.Mode = strings.ToUpper(cfg.App.Mode)
	cfg.Chain.RPCURLs = splitList(cfg.Chain.RPCURLs)
	cfg.Strategy.Active = splitList(cfg.Strategy.Active)
	cfg.Pricing.Assets = splitList(cfg.Pricing.Assets)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.mode", "ARB_MODE", "MODE")
	v.BindEnv("app.live_execution", "ARB_LIVE_EXECUTION", "LIVE_EXECUTION")

	// Chain
	v.BindEnv("chain.chain_id", "ARB_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("chain.rpc_urls", "ARB_RPC_URLS", "INFURA_POLYGON_RPC")
	v.BindEnv("chain.wallet_address", "ARB_WALLET_ADDRESS", "BOT_ADDRESS")
	v.BindEnv("chain.gas_price_multiplier", "ARB_GAS_PRICE_MULTIPLIER", "GAS_PRICE_MULTIPLIER")
	v.BindEnv("chain.max_gas_price_gwei", "ARB_MAX_GAS_PRICE_GWEI")

	// Redis
	v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Pricing
	v.BindEnv("pricing.coingecko.api_key", "ARB_COINGECKO_API_KEY", "COINGECKO_API_KEY")
	v.BindEnv("pricing.binance.websocket_url", "ARB_BINANCE_WS_URL", "BINANCE_WS_URL")

	// Retry
	v.BindEnv("retry.max_retries", "ARB_RETRY_MAX_ATTEMPTS", "RETRY_MAX_ATTEMPTS")
	v.BindEnv("retry.base_delay", "ARB_RETRY_BASE_DELAY", "RETRY_BASE_DELAY")
	v.BindEnv("retry.max_delay", "ARB_RETRY_MAX_DELAY", "RETRY_MAX_DELAY")
	v.BindEnv("retry.multiplier", "ARB_RETRY_EXPONENTIAL_BASE", "RETRY_EXPONENTIAL_BASE")
	v.BindEnv("retry.jitter", "ARB_RETRY_JITTER", "RETRY_JITTER")

	// Scanner
	v.BindEnv("scanner.min_profit_usd", "ARB_MIN_PROFIT_USD", "MIN_PROFIT_USD")
	v.BindEnv("scanner.min_liquidity_usd", "ARB_MIN_LIQUIDITY_USD", "MIN_LIQUIDITY_USD")
	v.BindEnv("scanner.min_confidence", "ARB_CONFIDENCE_THRESHOLD", "CONFIDENCE_THRESHOLD")

	// Risk
	v.BindEnv("risk.max_position_size_usd", "ARB_MAX_TRADE_SIZE_USD", "MAX_TRADE_SIZE_USD")
	v.BindEnv("risk.slippage_bps", "ARB_SLIPPAGE_BPS", "SLIPPAGE_BPS")

	// Loan
	v.BindEnv("loan.default_provider", "ARB_FLASH_LOAN_PROVIDER", "FLASH_LOAN_PROVIDER")

	// Coordinator
	v.BindEnv("coordinator.max_concurrent_scans", "ARB_MAX_CONCURRENT_SCANS", "MAX_CONCURRENT_SCANS")

	// Strategy
	v.BindEnv("strategy.active", "ARB_ACTIVE_STRATEGIES", "ACTIVE_STRATEGIES")
	v.BindEnv("strategy.trade_size_usd", "ARB_MIN_TRADE_SIZE_USD", "MIN_TRADE_SIZE_USD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "arbitrage-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.mode", ModeDev)
	v.SetDefault("app.live_execution", false)

	// Chain defaults (Polygon)
	v.SetDefault("chain.chain_id", 137)
	v.SetDefault("chain.rpc_urls", []string{})
	v.SetDefault("chain.native_asset", "MATIC")
	v.SetDefault("chain.gas_price_multiplier", 1.2)
	v.SetDefault("chain.gas_limit_margin", 0.10)
	v.SetDefault("chain.fee_cache_ttl", "12s")
	v.SetDefault("chain.request_timeout", "10s")
	v.SetDefault("chain.max_gas_price_gwei", 500)

	// Redis defaults
	v.SetDefault("redis.key_prefix", "arb")
	v.SetDefault("redis.timeout", "500ms")

	// Pricing defaults
	v.SetDefault("pricing.cache_ttl", "60s")
	v.SetDefault("pricing.fetch_timeout", "5s")
	v.SetDefault("pricing.assets", []string{"WETH", "WBTC", "WMATIC", "LINK"})
	v.SetDefault("pricing.venues", map[string][]string{
		"quickswap":  {"static"},
		"uniswap_v3": {"static"},
	})
	v.SetDefault("pricing.fallback_prices", map[string]float64{
		"WMATIC": 0.85, "MATIC": 0.85,
		"ETH": 3000, "WETH": 3000,
		"USDC": 1.0, "USDT": 1.0, "DAI": 1.0,
		"WBTC": 60000, "BTC": 60000,
		"LINK": 15, "AAVE": 100, "UNI": 8,
	})
	v.SetDefault("pricing.static", map[string]map[string]map[string]float64{
		"quickswap": {
			"weth":   {"price": 2347.50, "liquidity_usd": 2500000, "fee": 0.003},
			"wmatic": {"price": 0.85, "liquidity_usd": 900000, "fee": 0.003},
		},
		"uniswap_v3": {
			"weth":   {"price": 2349.00, "liquidity_usd": 4000000, "fee": 0.0005},
			"wmatic": {"price": 0.851, "liquidity_usd": 1200000, "fee": 0.0005},
		},
	})
	v.SetDefault("pricing.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("pricing.coingecko.requests_per_minute", 30)
	v.SetDefault("pricing.binance.rest_url", "https://api.binance.com")
	v.SetDefault("pricing.binance.websocket_url", "wss://stream.binance.com:9443")
	v.SetDefault("pricing.binance.quote_asset", "USDT")
	v.SetDefault("pricing.binance.stream_enabled", false)
	v.SetDefault("pricing.binance.stale_timeout", "5s")
	v.SetDefault("pricing.binance.requests_per_minute", 600)
	v.SetDefault("pricing.binance.taker_fee", 0.001)

	// Uniswap V3 defaults (same addresses on Polygon and Mainnet)
	v.SetDefault("pricing.uniswap.quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("pricing.uniswap.factory_address", "0x1F98431c8aD98523631AE4a59f267346ea31F984")
	v.SetDefault("pricing.uniswap.quote_token", "USDC")
	v.SetDefault("pricing.uniswap.default_fee_tier", 3000) // 0.3%

	// Retry defaults
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "60s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", true)
	v.SetDefault("retry.timeout_max_delay", "10s")
	v.SetDefault("retry.attempt_timeout", "0s")

	// Scanner defaults
	v.SetDefault("scanner.min_profit_usd", 15)
	v.SetDefault("scanner.min_liquidity_usd", 50000)
	v.SetDefault("scanner.min_confidence", 0.55)

	// Risk defaults
	v.SetDefault("risk.total_capital_usd", 100000)
	v.SetDefault("risk.max_position_size_usd", 50000)
	v.SetDefault("risk.risk_per_trade", 0.02)
	v.SetDefault("risk.kelly_cap", 0.25)
	v.SetDefault("risk.slippage_bps", 50)

	// Loan defaults
	v.SetDefault("loan.default_provider", "BALANCER")
	v.SetDefault("loan.provider_fees", map[string]float64{
		"BALANCER": 0.0,
		"AAVE":     0.0009,
	})
	v.SetDefault("loan.max_pool_fraction", 0.10)

	// Coordinator defaults
	v.SetDefault("coordinator.scan_interval", "5s")
	v.SetDefault("coordinator.max_concurrent_scans", 10)
	v.SetDefault("coordinator.top_n", 5)
	v.SetDefault("coordinator.cycle_timeout", "30s")

	// Strategy defaults
	v.SetDefault("strategy.active", []string{"CROSS_VENUE_ARBITRAGE"})
	v.SetDefault("strategy.trade_size_usd", 10000)
	v.SetDefault("strategy.gas_fallback_usd", 10)
	v.SetDefault("strategy.max_confidence", 0.95)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbitrage-engine")
	v.SetDefault("telemetry.trace_provider", "console")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.App.Mode {
	case ModeDev, ModeSim, ModeLive:
	default:
		return fmt.Errorf("app.mode must be one of DEV, SIM, LIVE: %q", c.App.Mode)
	}
	if c.App.LiveExecution {
		if c.App.Mode != ModeLive {
			return fmt.Errorf("app.live_execution requires app.mode LIVE")
		}
		if len(c.Chain.RPCURLs) == 0 {
			return fmt.Errorf("chain.rpc_urls is required for live execution")
		}
		if !common.IsHexAddress(c.Chain.WalletAddress) {
			return fmt.Errorf("chain.wallet_address is required for live execution")
		}
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 <= base_delay <= max_delay")
	}
	if c.Risk.TotalCapitalUSD < 0 || c.Risk.MaxPositionSizeUSD < 0 {
		return fmt.Errorf("risk capital limits cannot be negative")
	}
	if c.Risk.KellyCap <= 0 || c.Risk.KellyCap > 1 {
		return fmt.Errorf("risk.kelly_cap must be in (0,1]")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0,1]")
	}
	if c.Scanner.MinConfidence < 0 || c.Scanner.MinConfidence > 1 {
		return fmt.Errorf("scanner.min_confidence must be in [0,1]")
	}
	if _, ok := c.Loan.ProviderFees[strings.ToUpper(c.Loan.DefaultProvider)]; !ok {
		if _, ok := c.Loan.ProviderFees[strings.ToLower(c.Loan.DefaultProvider)]; !ok {
			return fmt.Errorf("loan.default_provider %q has no fee configured", c.Loan.DefaultProvider)
		}
	}
	if c.Coordinator.ScanInterval <= 0 {
		return fmt.Errorf("coordinator.scan_interval must be positive")
	}
	if c.Coordinator.MaxConcurrentScans < 1 {
		return fmt.Errorf("coordinator.max_concurrent_scans must be >= 1")
	}
	if len(c.Pricing.Venues) == 0 {
		return fmt.Errorf("pricing.venues cannot be empty")
	}
	for venue, sources := range c.Pricing.Venues {
		if len(sources) == 0 {
			return fmt.Errorf("pricing.venues.%s has no sources", venue)
		}
		for _, src := range sources {
			if !slices.Contains(PriceSources, strings.ToLower(src)) {
				return fmt.Errorf("pricing.venues.%s: unknown source %q", venue, src)
			}
			if strings.EqualFold(src, SourceUniswap) && len(c.Chain.RPCURLs) == 0 {
				return fmt.Errorf("pricing.venues.%s: source uniswap requires chain.rpc_urls", venue)
			}
		}
	}
	if c.Pricing.Uniswap.QuoterAddress != "" && !common.IsHexAddress(c.Pricing.Uniswap.QuoterAddress) {
		return fmt.Errorf("invalid pricing.uniswap.quoter_address: %s", c.Pricing.Uniswap.QuoterAddress)
	}
	return nil
}

// splitList expands comma-separated env values that viper leaves as a single item.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
