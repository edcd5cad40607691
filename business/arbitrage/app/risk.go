package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

var hundred = decimal.NewFromInt(100)

// Kelly returns the Kelly fraction (p*b - q) / b for win probability p and
// payoff ratio b. It is 0 when p is outside (0,1), when b <= 0, and when the
// signal has no edge.
func Kelly(p, b decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !p.IsPositive() || p.GreaterThanOrEqual(one) || !b.IsPositive() {
		return decimal.Zero
	}

	q := one.Sub(p)
	f := p.Mul(b).Sub(q).Div(b)
	if f.IsNegative() {
		return decimal.Zero
	}
	return f
}

// RiskSizer sizes positions and keeps the capital ledger. Every ledger
// mutation holds mu, so at most total capital is ever committed.
type RiskSizer struct {
	maxPosition  decimal.Decimal
	riskPerTrade decimal.Decimal
	kellyCap     decimal.Decimal

	mu        sync.Mutex
	total     decimal.Decimal
	used      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]*domain.Position
	closed    int

	now   func() time.Time
	newID func() string
}

type RiskOption func(*RiskSizer)

// WithRiskClock replaces time.Now for position timestamps.
func WithRiskClock(now func() time.Time) RiskOption {
	return func(r *RiskSizer) { r.now = now }
}

func NewRiskSizer(cfg config.RiskConfig, opts ...RiskOption) *RiskSizer {
	r := &RiskSizer{
		maxPosition:  decimal.NewFromFloat(cfg.MaxPositionSizeUSD),
		riskPerTrade: decimal.NewFromFloat(cfg.RiskPerTrade),
		kellyCap:     decimal.NewFromFloat(cfg.KellyCap),
		total:        decimal.NewFromFloat(cfg.TotalCapitalUSD),
		used:         decimal.Zero,
		realized:     decimal.Zero,
		positions:    make(map[string]*domain.Position),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// KellyFraction is Kelly clamped to the configured cap.
func (r *RiskSizer) KellyFraction(p, b decimal.Decimal) decimal.Decimal {
	return decimal.Min(Kelly(p, b), r.kellyCap)
}

// Size returns the position size in USD:
//
//	min(capped kelly * available, maxPosition, total capital * risk per trade)
//
// A degenerate signal (p outside (0,1), non-positive profit or loss) sizes to 0.
func (r *RiskSizer) Size(available, p, expectedProfit, expectedLoss, maxPosition decimal.Decimal) decimal.Decimal {
	if !expectedLoss.IsPositive() || !available.IsPositive() {
		return decimal.Zero
	}

	f := r.KellyFraction(p, expectedProfit.Div(expectedLoss))
	size := f.Mul(available)
	size = decimal.Min(size, maxPosition)

	r.mu.Lock()
	budget := r.total.Mul(r.riskPerTrade)
	r.mu.Unlock()
	size = decimal.Min(size, budget)

	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

func (r *RiskSizer) MaxPosition() decimal.Decimal {
	return r.maxPosition
}

// CanOpen reports whether a position of size would fit the limits now.
func (r *RiskSizer) CanOpen(size decimal.Decimal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkOpen(size) == nil
}

func (r *RiskSizer) checkOpen(size decimal.Decimal) error {
	switch {
	case !size.IsPositive():
		return apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContext("position size must be positive, got "+size.String()))
	case size.GreaterThan(r.maxPosition):
		return apperror.New(apperror.CodePositionLimitExceeded,
			apperror.WithContext(size.StringFixed(2)+" exceeds max position "+r.maxPosition.StringFixed(2)))
	case r.used.Add(size).GreaterThan(r.total):
		return apperror.New(apperror.CodeInsufficientCapital,
			apperror.WithContext(size.StringFixed(2)+" requested, "+r.total.Sub(r.used).StringFixed(2)+" available"))
	}
	return nil
}

// Open commits size USD of capital to opp.
func (r *RiskSizer) Open(opp domain.Opportunity, size decimal.Decimal) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(size); err != nil {
		return domain.Position{}, err
	}

	p := &domain.Position{
		ID:            r.newID(),
		OpportunityID: opp.ID,
		StrategyID:    opp.StrategyID,
		NotionalUSD:   size,
		EntryPrice:    opp.BuyPrice,
		TargetPrice:   opp.SellPrice,
		Status:        domain.PositionOpen,
		OpenedAt:      r.now(),
	}
	r.positions[p.ID] = p
	r.used = r.used.Add(size)
	return *p, nil
}

// Close releases the position's capital and books pnl into total capital.
func (r *RiskSizer) Close(id string, exitPrice, pnl decimal.Decimal) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return domain.Position{}, apperror.New(apperror.CodePositionNotFound, apperror.WithContext(id))
	}

	p.Status = domain.PositionClosed
	p.ExitPrice = exitPrice
	p.RealizedPnLUSD = pnl
	p.ClosedAt = r.now()

	r.used = r.used.Sub(p.NotionalUSD)
	r.total = r.total.Add(pnl)
	r.realized = r.realized.Add(pnl)
	r.closed++

	// Only open positions are kept; closing twice reports not found.
	delete(r.positions, id)
	return *p, nil
}

// Position returns an open position by id.
func (r *RiskSizer) Position(id string) (domain.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// OpenPositions returns a copy of every open position.
func (r *RiskSizer) OpenPositions() []domain.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, *p)
	}
	return out
}

// Available returns uncommitted capital.
func (r *RiskSizer) Available() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total.Sub(r.used)
}

// Utilization returns committed capital as a percentage of total.
func (r *RiskSizer) Utilization() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.utilization()
}

func (r *RiskSizer) utilization() decimal.Decimal {
	if !r.total.IsPositive() {
		return decimal.Zero
	}
	return r.used.Div(r.total).Mul(hundred)
}

func (r *RiskSizer) RiskMetrics() domain.RiskMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RiskMetrics{
		TotalCapitalUSD:     r.total,
		UsedCapitalUSD:      r.used,
		AvailableCapitalUSD: r.total.Sub(r.used),
		UtilizationPercent:  r.utilization(),
		OpenPositions:       len(r.positions),
		ClosedPositions:     r.closed,
		RealizedPnLUSD:      r.realized,
		MaxPositionSizeUSD:  r.maxPosition,
		RiskPerTrade:        r.riskPerTrade,
	}
}
