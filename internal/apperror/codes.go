package apperror

// Code identifies a failure class independent of its message.
type Code string

const (
	CodeUnknownError       Code = "UNKNOWN_ERROR"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// upstream services
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen    Code = "CIRCUIT_HALF_OPEN"

	// chain access
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeNoRPCEndpoints           Code = "NO_RPC_ENDPOINTS"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeBroadcastFailed          Code = "BROADCAST_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"

	// streaming
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// pricing
	CodePriceSourceFailed     Code = "PRICE_SOURCE_FAILED"
	CodeNoPriceAvailable      Code = "NO_PRICE_AVAILABLE"
	CodeUnsupportedPriceAsset Code = "UNSUPPORTED_PRICE_ASSET"
	CodeUnknownVenue          Code = "UNKNOWN_VENUE"
	CodeInvalidAsset          Code = "INVALID_ASSET"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodePriceStoreFailed      Code = "PRICE_STORE_FAILED"
	CodeBinanceAPIError       Code = "BINANCE_API_ERROR"
	CodeCoinGeckoAPIError     Code = "COINGECKO_API_ERROR"
	CodeUniswapQuoteFailed    Code = "UNISWAP_QUOTE_FAILED"
	CodeUniswapPoolNotFound   Code = "UNISWAP_POOL_NOT_FOUND"

	// capital and execution
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInsufficientCapital   Code = "INSUFFICIENT_CAPITAL"
	CodePositionLimitExceeded Code = "POSITION_LIMIT_EXCEEDED"
	CodePositionNotFound      Code = "POSITION_NOT_FOUND"
	CodeUnknownLoanProvider   Code = "UNKNOWN_LOAN_PROVIDER"
	CodeStrategyScanFailed    Code = "STRATEGY_SCAN_FAILED"
	CodeExecutionFailed       Code = "EXECUTION_FAILED"
)

var messages = map[Code]string{
	CodeUnknownError:       "unknown error",
	CodeInvalidInput:       "invalid input",
	CodeInvalidFormat:      "malformed data",
	CodeConfigurationError: "bad configuration",

	CodeServiceTimeout:     "upstream timed out",
	CodeServiceUnavailable: "upstream unavailable",
	CodeRateLimitExceeded:  "rate limited",
	CodeCircuitOpen:        "circuit open",
	CodeCircuitHalfOpen:    "circuit half-open, probe limit reached",

	CodeEthereumConnectionFailed: "cannot reach rpc node",
	CodeEthereumRPCError:         "rpc call failed",
	CodeNoRPCEndpoints:           "no rpc endpoints configured",
	CodeGasEstimationFailed:      "fee estimation failed",
	CodeBroadcastFailed:          "broadcast failed",
	CodeContractCallFailed:       "contract call failed",

	CodeWebSocketConnectionError: "websocket connect failed",
	CodeWebSocketClosed:          "websocket closed",
	CodeWebSocketSendError:       "websocket write failed",

	CodePriceSourceFailed:     "price source failed",
	CodeNoPriceAvailable:      "no price available",
	CodeUnsupportedPriceAsset: "asset not listed by source",
	CodeUnknownVenue:          "unknown venue",
	CodeInvalidAsset:          "invalid asset",
	CodeInvalidQuote:          "invalid quote",
	CodePriceStoreFailed:      "shared price store failed",
	CodeBinanceAPIError:       "binance api error",
	CodeCoinGeckoAPIError:     "coingecko api error",
	CodeUniswapQuoteFailed:    "uniswap quote failed",
	CodeUniswapPoolNotFound:   "uniswap pool not found",

	CodeInvalidAmount:         "invalid amount",
	CodeInsufficientCapital:   "insufficient capital",
	CodePositionLimitExceeded: "position size over limit",
	CodePositionNotFound:      "position not found",
	CodeUnknownLoanProvider:   "unknown loan provider",
	CodeStrategyScanFailed:    "every strategy scan failed",
	CodeExecutionFailed:       "execution failed",
}
