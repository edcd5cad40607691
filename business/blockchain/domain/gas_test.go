package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultGasLimit(t *testing.T) {
	tests := []struct {
		op   OperationType
		want uint64
	}{
		{OpSwap, 200_000},
		{OpFlashLoan, 500_000},
		{OpArbitrage, 800_000},
		{"BRIDGE", 0},
	}
	for _, tt := range tests {
		if got := DefaultGasLimit(tt.op); got != tt.want {
			t.Errorf("DefaultGasLimit(%s) = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestFeeEstimate_CostUSD(t *testing.T) {
	// 200k gas at 50 gwei = 0.01 native
	fee := NewFeeEstimate(200_000, big.NewInt(50_000_000_000), true)

	if want := decimal.RequireFromString("0.01"); !fee.TotalNative().Equal(want) {
		t.Errorf("TotalNative = %s, want %s", fee.TotalNative(), want)
	}
	if want := decimal.NewFromInt(50); !fee.GasPriceGwei().Equal(want) {
		t.Errorf("GasPriceGwei = %s, want %s", fee.GasPriceGwei(), want)
	}
	if want := decimal.RequireFromString("0.0085"); !fee.CostUSD(decimal.RequireFromString("0.85")).Equal(want) {
		t.Errorf("CostUSD = %s, want %s", fee.CostUSD(decimal.RequireFromString("0.85")), want)
	}
}
