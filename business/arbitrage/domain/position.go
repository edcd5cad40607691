package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is capital committed to one opportunity.
type Position struct {
	ID            string
	OpportunityID string
	StrategyID    string
	NotionalUSD   decimal.Decimal
	EntryPrice    decimal.Decimal
	TargetPrice   decimal.Decimal // sell price the trade was opened for
	Status        PositionStatus

	// Set on close.
	ExitPrice      decimal.Decimal
	RealizedPnLUSD decimal.Decimal

	OpenedAt time.Time
	ClosedAt time.Time
}

// RiskMetrics is a snapshot of the capital ledger.
type RiskMetrics struct {
	TotalCapitalUSD     decimal.Decimal
	UsedCapitalUSD      decimal.Decimal
	AvailableCapitalUSD decimal.Decimal
	UtilizationPercent  decimal.Decimal
	OpenPositions       int
	ClosedPositions     int
	RealizedPnLUSD      decimal.Decimal
	MaxPositionSizeUSD  decimal.Decimal
	RiskPerTrade        decimal.Decimal
}
