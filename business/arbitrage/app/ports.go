// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

// Strategy finds and executes opportunities. Scan returns raw, unranked
// candidates carrying the strategy's ID and confidence.
type Strategy interface {
	ID() string
	Scan(ctx context.Context) ([]domain.Opportunity, error)
	Execute(ctx context.Context, opp domain.Opportunity) (domain.ExecutionResult, error)
}

// Toggler is implemented by strategies that can be switched off at runtime.
type Toggler interface {
	Enabled() bool
}

// Settler is implemented by strategies whose executions can stay pending.
// Settle reports the current outcome of the transaction txHash that was sent
// for opp; ExecutionPending means it is still unknown.
type Settler interface {
	Settle(ctx context.Context, opp domain.Opportunity, txHash string) (domain.ExecutionResult, error)
}

// Reporter receives a summary of every cycle.
type Reporter interface {
	Start(ctx context.Context) error
	ReportCycle(ctx context.Context, report domain.CycleReport)
	Stop() error
}

// TxBuilder produces a signed transaction for an opportunity. Key custody
// lives behind this interface.
type TxBuilder interface {
	Build(ctx context.Context, opp domain.Opportunity) ([]byte, error)
}
