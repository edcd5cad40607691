package app

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const (
	tracerName = "arbitrage"
	meterName  = "arbitrage"
)

var bpsDivisor = decimal.NewFromInt(10_000)

type coordinatorMetrics struct {
	cycles        metric.Int64Counter
	cycleDuration metric.Float64Histogram
	decisions     metric.Int64Counter
	strategyFails metric.Int64Counter
}

// Coordinator drives scan cycles: fan out to strategies, rank, size, check
// loans and execute in rank order.
type Coordinator struct {
	cfg         config.CoordinatorConfig
	slippageBps decimal.Decimal

	strategies []Strategy
	byID       map[string]Strategy

	scanner  *Scanner
	sizer    *RiskSizer
	loans    *LoanCostModel
	reporter Reporter
	log      logger.LoggerInterface
	now      func() time.Time

	mu      sync.Mutex
	state   domain.CycleState
	pending map[string]pendingTrade // by position ID
	cycles  atomic.Uint64

	tracer  *apm.Tracer
	metrics *coordinatorMetrics
}

// pendingTrade is an execution whose transaction has no receipt yet.
type pendingTrade struct {
	trade  domain.Opportunity
	txHash string
}

type CoordinatorOption func(*Coordinator)

func WithStrategy(s Strategy) CoordinatorOption {
	return func(c *Coordinator) {
		c.strategies = append(c.strategies, s)
		c.byID[s.ID()] = s
	}
}

func WithReporter(r Reporter) CoordinatorOption {
	return func(c *Coordinator) { c.reporter = r }
}

// WithCoordinatorClock replaces time.Now for cycle timing.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(
	cfg config.CoordinatorConfig,
	risk config.RiskConfig,
	scanner *Scanner,
	sizer *RiskSizer,
	loans *LoanCostModel,
	log logger.LoggerInterface,
	opts ...CoordinatorOption,
) *Coordinator {
	if cfg.MaxConcurrentScans < 1 {
		cfg.MaxConcurrentScans = 1
	}
	if cfg.TopN < 1 {
		cfg.TopN = 5
	}

	c := &Coordinator{
		cfg:         cfg,
		slippageBps: decimal.NewFromInt(int64(risk.SlippageBps)),
		byID:        make(map[string]Strategy),
		pending:     make(map[string]pendingTrade),
		scanner:     scanner,
		sizer:       sizer,
		loans:       loans,
		log:         log,
		now:         time.Now,
		state:       domain.StateIdle,
		tracer:      apm.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initMetrics()
	return c
}

func (c *Coordinator) initMetrics() {
	meter := otel.Meter(meterName)
	c.metrics = &coordinatorMetrics{}

	c.metrics.cycles, _ = meter.Int64Counter(
		"arbitrage_cycles_total",
		metric.WithDescription("Scan cycles by final state"),
	)
	c.metrics.cycleDuration, _ = meter.Float64Histogram(
		"arbitrage_cycle_duration_ms",
		metric.WithDescription("Wall time of one scan cycle"),
		metric.WithUnit("ms"),
	)
	c.metrics.decisions, _ = meter.Int64Counter(
		"arbitrage_decisions_total",
		metric.WithDescription("Ranked opportunities by outcome"),
	)
	c.metrics.strategyFails, _ = meter.Int64Counter(
		"arbitrage_strategy_scan_failures_total",
		metric.WithDescription("Strategy scans that returned an error"),
	)
}

// State returns the current cycle state.
func (c *Coordinator) State() domain.CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s domain.CycleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Cycles returns how many cycles have completed.
func (c *Coordinator) Cycles() uint64 {
	return c.cycles.Load()
}

// Strategies returns the registered strategies.
func (c *Coordinator) Strategies() []Strategy {
	return c.strategies
}

// Run executes a cycle immediately and then every scan interval until ctx is
// done. Cycle errors are logged; they never stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.reporter != nil {
		if err := c.reporter.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := c.reporter.Stop(); err != nil {
				c.log.Warn(ctx, "reporter stop failed", "error", err)
			}
		}()
	}

	c.log.Info(ctx, "coordinator started",
		"strategies", len(c.strategies),
		"interval", c.cfg.ScanInterval,
		"top_n", c.cfg.TopN)

	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := c.RunCycle(ctx); err != nil && ctx.Err() == nil {
			c.log.Error(ctx, "scan cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			c.log.Info(ctx, "coordinator stopping", "reason", ctx.Err(), "cycles", c.Cycles())
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full cycle and returns its report. The error is set
// when the cycle ended in FAILED.
func (c *Coordinator) RunCycle(ctx context.Context) (report domain.CycleReport, err error) {
	start := c.now()
	report = domain.CycleReport{
		Number:    c.cycles.Add(1),
		StartedAt: start,
	}

	if c.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CycleTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "arbitrage.cycle", attribute.Int64("cycle", int64(report.Number)))
	defer func() {
		report.FinalState = domain.StateSettled
		if err != nil {
			report.FinalState = domain.StateFailed
		}
		report.Duration = c.now().Sub(start)
		report.Risk = c.sizer.RiskMetrics()

		c.setState(report.FinalState)
		c.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(report.FinalState))))
		c.metrics.cycleDuration.Record(ctx, float64(report.Duration.Milliseconds()))
		if c.reporter != nil {
			c.reporter.ReportCycle(ctx, report)
		}
		c.setState(domain.StateIdle)
		span.EndWith(err)
	}()

	report.Settled = c.sweepPending(ctx)

	c.setState(domain.StateScanning)
	candidates, scanErrs := c.scanAll(ctx)
	report.Candidates = len(candidates)
	report.StrategyError = scanErrs

	if len(scanErrs) > 0 && len(scanErrs) == c.activeCount() {
		return report, apperror.New(apperror.CodeStrategyScanFailed,
			apperror.WithContext("every strategy failed to scan"))
	}

	c.setState(domain.StateRanking)
	ranked := c.scanner.Rank(candidates)
	report.Ranked = len(ranked)
	if len(ranked) > c.cfg.TopN {
		ranked = ranked[:c.cfg.TopN]
	}

	for _, opp := range ranked {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d := c.process(ctx, opp)
		report.Decisions = append(report.Decisions, d)
		if d.Result != nil && d.Outcome == domain.OutcomeExecuted {
			report.RealizedPnL = report.RealizedPnL.Add(d.Result.RealizedProfitUSD)
		}
		c.metrics.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", string(d.Outcome)),
			attribute.String("strategy", opp.StrategyID)))
	}

	return report, nil
}

func (c *Coordinator) activeCount() int {
	n := 0
	for _, s := range c.strategies {
		if enabled(s) {
			n++
		}
	}
	return n
}

func enabled(s Strategy) bool {
	if t, ok := s.(Toggler); ok {
		return t.Enabled()
	}
	return true
}

// scanAll runs every enabled strategy concurrently. Results are merged in
// registration order; a failing strategy only loses its own candidates.
func (c *Coordinator) scanAll(ctx context.Context) ([]domain.Opportunity, map[string]string) {
	results := make([][]domain.Opportunity, len(c.strategies))
	errs := make([]error, len(c.strategies))

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrentScans)

	for i, s := range c.strategies {
		if !enabled(s) {
			continue
		}
		g.Go(func() error {
			opps, err := s.Scan(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = opps
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.Opportunity
	failures := make(map[string]string)
	for i, s := range c.strategies {
		if errs[i] != nil {
			failures[s.ID()] = errs[i].Error()
			c.metrics.strategyFails.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", s.ID())))
			c.log.Warn(ctx, "strategy scan failed", "strategy", s.ID(), "error", errs[i])
			continue
		}
		merged = append(merged, results[i]...)
	}
	return merged, failures
}

// expectedLoss is the slippage on the notional plus the estimated cost.
func (c *Coordinator) expectedLoss(opp domain.Opportunity) decimal.Decimal {
	return opp.NotionalUSD.Mul(c.slippageBps).Div(bpsDivisor).Add(opp.Profit.CostUSD)
}

func (c *Coordinator) process(ctx context.Context, opp domain.Opportunity) domain.Decision {
	d := domain.Decision{Opportunity: opp}

	c.setState(domain.StateSizing)
	available := c.sizer.Available()
	size := c.sizer.Size(available, opp.Confidence, opp.Profit.Net, c.expectedLoss(opp), c.sizer.MaxPosition())
	// Never commit more than the trade needs.
	size = decimal.Min(size, opp.NotionalUSD)
	d.SizeUSD = size
	if !size.IsPositive() {
		d.Outcome = domain.OutcomeSkippedSize
		d.Reason = "position size is zero"
		return d
	}

	// trade is what the strategy executes. Own capital backs size of it; a
	// notional beyond what is available is topped up with a flash loan for
	// the difference, otherwise the trade shrinks to size.
	trade := opp
	switch {
	case opp.NotionalUSD.GreaterThan(available):
		c.setState(domain.StateLoanCheck)
		borrowed := opp.NotionalUSD.Sub(size)
		quote := c.loans.Quote(c.loans.DefaultProvider(), borrowed)
		d.Loan = &quote
		ok, net := c.loans.IsWorthwhile(borrowed, opp.Profit.Net)
		if !ok {
			d.Outcome = domain.OutcomeSkippedLoan
			d.Reason = "loan fee leaves net " + net.StringFixed(2)
			return d
		}
		trade = opp.WithCost(quote.FeeUSD)

	case size.LessThan(opp.NotionalUSD):
		trade = opp.WithNotional(size)
		if !trade.Profit.IsProfitable() {
			d.Outcome = domain.OutcomeSkippedSize
			d.Reason = "net at size " + size.StringFixed(2) + " is " + trade.Profit.Net.StringFixed(2)
			return d
		}
	}
	d.Opportunity = trade

	pos, err := c.sizer.Open(trade, size)
	if err != nil {
		d.Outcome = domain.OutcomeSkippedLimits
		d.Reason = err.Error()
		return d
	}
	d.PositionID = pos.ID

	strategy, ok := c.byID[trade.StrategyID]
	if !ok {
		c.closePosition(ctx, pos.ID, trade, decimal.Zero)
		d.Outcome = domain.OutcomeFailed
		d.Reason = "unknown strategy " + trade.StrategyID
		return d
	}

	c.setState(domain.StateExecuting)
	res, err := strategy.Execute(ctx, trade)
	d.Result = &res

	switch {
	case res.Status == domain.ExecutionPending:
		d.Outcome = domain.OutcomePending
		if err != nil {
			d.Reason = err.Error()
		}
		c.mu.Lock()
		c.pending[pos.ID] = pendingTrade{trade: trade, txHash: res.TxHash}
		c.mu.Unlock()
		c.log.Info(ctx, "execution pending, capital stays committed",
			"position", pos.ID,
			"opportunity", trade.ID,
			"tx", res.TxHash,
			"error", err)

	case err != nil || res.Status != domain.ExecutionSucceeded:
		c.closePosition(ctx, pos.ID, trade, res.CostUSD.Neg())
		d.Outcome = domain.OutcomeFailed
		if err != nil {
			d.Reason = err.Error()
		}
		c.log.Warn(ctx, "execution failed",
			"opportunity", trade.ID,
			"strategy", trade.StrategyID,
			"cost_usd", res.CostUSD.StringFixed(2),
			"error", err)

	default:
		c.closePosition(ctx, pos.ID, trade, res.RealizedProfitUSD)
		d.Outcome = domain.OutcomeExecuted
		c.log.Info(ctx, "opportunity executed",
			"opportunity", trade.ID,
			"asset", trade.Asset,
			"buy", trade.BuySource,
			"sell", trade.SellSource,
			"notional_usd", trade.NotionalUSD.StringFixed(2),
			"size_usd", size.StringFixed(2),
			"profit_usd", res.RealizedProfitUSD.StringFixed(2),
			"simulated", res.Simulated)
	}
	return d
}

func (c *Coordinator) closePosition(ctx context.Context, id string, opp domain.Opportunity, pnl decimal.Decimal) {
	if _, err := c.sizer.Close(id, opp.SellPrice, pnl); err != nil {
		c.log.Error(ctx, "failed to close position", "position", id, "error", err)
	}
}

// PendingPositions returns the IDs of positions waiting on a receipt.
func (c *Coordinator) PendingPositions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sweepPending asks the owning strategies for the outcome of every pending
// execution and settles the ones that are known. Lookup failures leave the
// position pending for the next cycle.
func (c *Coordinator) sweepPending(ctx context.Context) int {
	settled := 0
	for _, id := range c.PendingPositions() {
		c.mu.Lock()
		p, ok := c.pending[id]
		c.mu.Unlock()
		if !ok {
			continue
		}

		settler, ok := c.byID[p.trade.StrategyID].(Settler)
		if !ok {
			continue
		}

		res, err := settler.Settle(ctx, p.trade, p.txHash)
		if err != nil {
			c.log.Warn(ctx, "receipt lookup failed", "position", id, "tx", p.txHash, "error", err)
			continue
		}
		if res.Status == domain.ExecutionPending {
			continue
		}

		if err := c.SettlePending(ctx, id, res); err != nil {
			c.log.Error(ctx, "failed to settle position", "position", id, "error", err)
			continue
		}
		settled++
		c.log.Info(ctx, "pending execution settled",
			"position", id,
			"tx", p.txHash,
			"status", res.Status,
			"profit_usd", res.RealizedProfitUSD.StringFixed(2))
	}
	return settled
}

// SettlePending closes a position left open by a pending execution once its
// outcome is known.
func (c *Coordinator) SettlePending(ctx context.Context, positionID string, res domain.ExecutionResult) error {
	pos, ok := c.sizer.Position(positionID)
	if !ok {
		return apperror.New(apperror.CodePositionNotFound, apperror.WithContext(positionID))
	}
	if res.Status == domain.ExecutionPending {
		return nil
	}

	exit := res.ExitPrice
	if !exit.IsPositive() {
		exit = pos.TargetPrice
	}

	pnl := res.RealizedProfitUSD
	if res.Status != domain.ExecutionSucceeded {
		pnl = res.CostUSD.Neg()
	}
	if _, err := c.sizer.Close(positionID, exit, pnl); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.pending, positionID)
	c.mu.Unlock()
	return nil
}
