package binance

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// BookTicker is the REST /api/v3/ticker/bookTicker payload.
type BookTicker struct {
	Symbol   string          `json:"symbol"`
	BidPrice decimal.Decimal `json:"bidPrice"`
	BidQty   decimal.Decimal `json:"bidQty"`
	AskPrice decimal.Decimal `json:"askPrice"`
	AskQty   decimal.Decimal `json:"askQty"`
}

// StreamEvent wraps every message on a combined stream connection.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64           `json:"u"`
	Symbol   string          `json:"s"`
	BidPrice decimal.Decimal `json:"b"`
	BidQty   decimal.Decimal `json:"B"`
	AskPrice decimal.Decimal `json:"a"`
	AskQty   decimal.Decimal `json:"A"`
}

// wrapped maps wrapped on-chain tokens to the Binance base asset.
var wrapped = map[string]string{
	"WETH":   "ETH",
	"WBTC":   "BTC",
	"WMATIC": "MATIC",
}

// MarketSymbol returns the Binance market for asset quoted in quote,
// e.g. WETH/USDT -> ETHUSDT.
func MarketSymbol(asset, quote string) string {
	base := strings.ToUpper(asset)
	if b, ok := wrapped[base]; ok {
		base = b
	}
	return base + strings.ToUpper(quote)
}

// BookTickerStream returns the bookTicker stream name for a market.
func BookTickerStream(market string) string {
	return strings.ToLower(market) + "@bookTicker"
}
