package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleState is the coordinator's position within one scan cycle.
type CycleState string

const (
	StateIdle      CycleState = "IDLE"
	StateScanning  CycleState = "SCANNING"
	StateRanking   CycleState = "RANKING"
	StateSizing    CycleState = "SIZING"
	StateLoanCheck CycleState = "LOAN_CHECK"
	StateExecuting CycleState = "EXECUTING"
	StateSettled   CycleState = "SETTLED"
	StateFailed    CycleState = "FAILED"
)

// ExecutionStatus is what a strategy reports for one execution.
type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	// ExecutionPending means the outcome is not known yet, e.g. a broadcast
	// transaction without a receipt. Capital stays committed.
	ExecutionPending ExecutionStatus = "PENDING"
)

// ExecutionResult is a strategy's report on one executed opportunity.
type ExecutionResult struct {
	Status            ExecutionStatus
	RealizedProfitUSD decimal.Decimal
	CostUSD           decimal.Decimal
	TxHash            string
	Simulated         bool
	// ExitPrice is the realized sell price; zero means the position's target.
	ExitPrice decimal.Decimal
}

// Outcome is the coordinator's decision for one ranked opportunity.
type Outcome string

const (
	OutcomeExecuted      Outcome = "EXECUTED"
	OutcomeFailed        Outcome = "FAILED"
	OutcomePending       Outcome = "PENDING"
	OutcomeSkippedSize   Outcome = "SKIPPED_ZERO_SIZE"
	OutcomeSkippedLoan   Outcome = "SKIPPED_LOAN"
	OutcomeSkippedLimits Outcome = "SKIPPED_LIMITS"
)

// Decision records what happened to one opportunity in a cycle.
type Decision struct {
	Opportunity Opportunity
	Outcome     Outcome
	SizeUSD     decimal.Decimal
	PositionID  string
	Loan        *LoanQuote
	Result      *ExecutionResult
	Reason      string
}

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	Number        uint64
	StartedAt     time.Time
	Duration      time.Duration
	FinalState    CycleState
	Candidates    int
	Ranked        int
	Settled       int // pending positions resolved at the start of the cycle
	Decisions     []Decision
	StrategyError map[string]string
	RealizedPnL   decimal.Decimal
	Risk          RiskMetrics
}

// Count returns how many decisions had outcome o.
func (r CycleReport) Count(o Outcome) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome == o {
			n++
		}
	}
	return n
}
