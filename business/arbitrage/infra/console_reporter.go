// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

const rule = "--------------------------------------------------------------------------------"

// ConsoleReporter prints a block per scan cycle.
type ConsoleReporter struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

type ConsoleOption func(*ConsoleReporter)

// WithWriter redirects output, stdout by default.
func WithWriter(w io.Writer) ConsoleOption {
	return func(r *ConsoleReporter) { r.out = w }
}

// WithQuiet only prints cycles that produced a decision or a strategy error.
func WithQuiet(quiet bool) ConsoleOption {
	return func(r *ConsoleReporter) { r.quiet = quiet }
}

func NewConsoleReporter(opts ...ConsoleOption) *ConsoleReporter {
	r := &ConsoleReporter{out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Arbitrage Engine Started")
	fmt.Fprintln(r.out, "========================")
	return nil
}

func (r *ConsoleReporter) ReportCycle(_ context.Context, rep domain.CycleReport) {
	if r.quiet && len(rep.Decisions) == 0 && len(rep.StrategyError) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "CYCLE #%d  %s  %s  (%s)\n",
		rep.Number, rep.StartedAt.Format(time.RFC3339), rep.FinalState, rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "Candidates: %d   Ranked: %d   Executed: %d   Pending: %d   Settled: %d   Failed: %d\n",
		rep.Candidates, rep.Ranked,
		rep.Count(domain.OutcomeExecuted), rep.Count(domain.OutcomePending), rep.Settled, rep.Count(domain.OutcomeFailed))

	if len(rep.StrategyError) > 0 {
		ids := make([]string, 0, len(rep.StrategyError))
		for id := range rep.StrategyError {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(r.out, "  ! %s: %s\n", id, rep.StrategyError[id])
		}
	}

	for _, d := range rep.Decisions {
		o := d.Opportunity
		fmt.Fprintf(r.out, "  #%d %-6s %s -> %s  edge %s%%  net $%s  conf %s  => %s",
			o.Rank, o.Asset, o.BuySource, o.SellSource,
			o.EdgePercent().StringFixed(3), o.EstimatedProfitUSD().StringFixed(2),
			o.Confidence.StringFixed(2), d.Outcome)
		if d.SizeUSD.IsPositive() {
			fmt.Fprintf(r.out, "  size $%s", d.SizeUSD.StringFixed(2))
		}
		if d.Loan != nil {
			fmt.Fprintf(r.out, "  loan %s fee $%s", d.Loan.Provider, d.Loan.FeeUSD.StringFixed(2))
		}
		if d.Result != nil && d.Result.TxHash != "" {
			fmt.Fprintf(r.out, "  tx %s", d.Result.TxHash)
		}
		if d.Reason != "" {
			fmt.Fprintf(r.out, "  (%s)", d.Reason)
		}
		fmt.Fprintln(r.out)
	}

	fmt.Fprintf(r.out, "PnL: $%s   Capital: $%s used of $%s (%s%%)   Open: %d\n",
		rep.RealizedPnL.StringFixed(2),
		rep.Risk.UsedCapitalUSD.StringFixed(2),
		rep.Risk.TotalCapitalUSD.StringFixed(2),
		rep.Risk.UtilizationPercent.StringFixed(1),
		rep.Risk.OpenPositions)
}

func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Engine Stopped")
	return nil
}
