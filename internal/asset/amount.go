package asset

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrNegativeAmount is returned when parsing a negative quantity.
var ErrNegativeAmount = errors.New("asset: negative amount")

// Amount is a quantity of an asset in its smallest unit.
type Amount struct {
	asset *Asset
	raw   *big.Int
}

// NewAmount wraps a raw smallest-unit value. The value is copied.
func NewAmount(a *Asset, raw *big.Int) Amount {
	if a == nil {
		panic("asset: nil asset")
	}
	if raw == nil {
		raw = new(big.Int)
	}
	return Amount{asset: a, raw: new(big.Int).Set(raw)}
}

// OneUnit returns 10^decimals of the asset, one whole token.
func OneUnit(a *Asset) Amount {
	return NewAmount(a, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.Decimals())), nil))
}

// ParseDecimal converts a whole-token quantity to smallest units, truncating
// precision beyond the asset's decimals.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	raw := d.Shift(int32(a.Decimals())).Truncate(0).BigInt()
	return NewAmount(a, raw), nil
}

// Raw returns a copy of the smallest-unit value.
func (m Amount) Raw() *big.Int {
	if m.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(m.raw)
}

func (m Amount) Asset() *Asset {
	return m.asset
}

func (m Amount) IsZero() bool {
	return m.raw == nil || m.raw.Sign() == 0
}

// ToDecimal returns the quantity in whole tokens.
func (m Amount) ToDecimal() decimal.Decimal {
	if m.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(m.Raw(), -int32(m.asset.Decimals()))
}

// String renders e.g. "1.5 WETH".
func (m Amount) String() string {
	if m.asset == nil {
		return "0"
	}
	return m.ToDecimal().String() + " " + m.asset.Symbol()
}
