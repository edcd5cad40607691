// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// OperationType names the kind of transaction a fee is estimated for.
type OperationType string

const (
	OpSwap      OperationType = "SWAP"
	OpFlashLoan OperationType = "FLASHLOAN"
	OpArbitrage OperationType = "ARBITRAGE"
)

// Default gas limits used when the node cannot estimate.
const (
	GasLimitSwap      uint64 = 200_000
	GasLimitFlashLoan uint64 = 500_000
	GasLimitArbitrage uint64 = 800_000
)

// DefaultGasLimit returns the fallback limit for op, or 0 if op is unknown.
func DefaultGasLimit(op OperationType) uint64 {
	switch op {
	case OpSwap:
		return GasLimitSwap
	case OpFlashLoan:
		return GasLimitFlashLoan
	case OpArbitrage:
		return GasLimitArbitrage
	}
	return 0
}

// CallRequest describes a transaction to price. A nil To skips node
// estimation and uses the operation's default limit.
type CallRequest struct {
	Operation OperationType
	From      common.Address
	To        *common.Address
	Data      []byte
	Value     *big.Int
}

// FeeEstimate is the expected network fee of one transaction.
type FeeEstimate struct {
	GasLimit    uint64
	GasPriceWei *big.Int
	TotalWei    *big.Int
	// Estimated is false when GasLimit is a default rather than a node estimate.
	Estimated bool
}

func NewFeeEstimate(gasLimit uint64, gasPriceWei *big.Int, estimated bool) FeeEstimate {
	total := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasLimit))
	return FeeEstimate{
		GasLimit:    gasLimit,
		GasPriceWei: gasPriceWei,
		TotalWei:    total,
		Estimated:   estimated,
	}
}

// TotalNative returns the fee in whole native tokens (18 decimals).
func (f FeeEstimate) TotalNative() decimal.Decimal {
	if f.TotalWei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(f.TotalWei, -18)
}

// GasPriceGwei returns the gas price in gwei.
func (f FeeEstimate) GasPriceGwei() decimal.Decimal {
	if f.GasPriceWei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(f.GasPriceWei, -9)
}

// CostUSD values the fee at the native token's USD price.
func (f FeeEstimate) CostUSD(nativePriceUSD decimal.Decimal) decimal.Decimal {
	return f.TotalNative().Mul(nativePriceUSD)
}
