package asset

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is token metadata. Symbols are upper-case.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
	stable   bool
	priceID  string
}

// Option configures an Asset.
type Option func(*Asset)

// WithName sets a display name.
func WithName(name string) Option {
	return func(a *Asset) { a.name = name }
}

// Stable marks the asset as a USD stablecoin.
func Stable() Option {
	return func(a *Asset) { a.stable = true }
}

// WithPriceID sets the external price feed id (CoinGecko coin id).
func WithPriceID(id string) Option {
	return func(a *Asset) { a.priceID = id }
}

// NewAsset creates an Asset.
func NewAsset(id AssetID, symbol string, decimals uint8, opts ...Option) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	a := &Asset{
		id:       id,
		symbol:   strings.ToUpper(symbol),
		decimals: decimals,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Asset) ID() AssetID             { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) IsStable() bool          { return a.stable }
func (a *Asset) PriceID() string         { return a.priceID }
func (a *Asset) ChainID() uint64         { return a.id.ChainID() }
func (a *Asset) Address() common.Address { return a.id.Address() }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) String() string          { return a.symbol }

// Name returns the display name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}
