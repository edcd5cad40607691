package app

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultRisk() config.RiskConfig {
	return config.RiskConfig{
		TotalCapitalUSD:    100000,
		MaxPositionSizeUSD: 50000,
		RiskPerTrade:       0.02,
		KellyCap:           0.25,
		SlippageBps:        50,
	}
}

func TestKelly(t *testing.T) {
	tests := []struct {
		name string
		p, b string
		want string
	}{
		{"coin flip even odds", "0.5", "1", "0"},
		{"60 percent even odds", "0.6", "1", "0.2"},
		{"55 percent two to one", "0.55", "2", "0.325"},
		{"losing signal floors at zero", "0.3", "1", "0"},
		{"zero probability", "0", "1", "0"},
		{"certainty is degenerate", "1", "1", "0"},
		{"probability above one", "1.2", "1", "0"},
		{"zero payoff", "0.9", "0", "0"},
		{"negative payoff", "0.9", "-1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kelly(d(tt.p), d(tt.b)); !got.Equal(d(tt.want)) {
				t.Errorf("Kelly(%s, %s) = %s, want %s", tt.p, tt.b, got, tt.want)
			}
		})
	}
}

func TestRiskSizer_KellyFractionBounds(t *testing.T) {
	r := NewRiskSizer(defaultRisk())
	limit := d("0.25")

	for p := 1; p < 100; p += 7 {
		for _, b := range []string{"0.1", "0.5", "1", "2", "5", "50"} {
			prob := decimal.New(int64(p), -2)
			f := r.KellyFraction(prob, d(b))
			if f.IsNegative() || f.GreaterThan(limit) {
				t.Fatalf("KellyFraction(%s, %s) = %s, want within [0, 0.25]", prob, b, f)
			}
		}
	}

	if got := r.KellyFraction(d("0.9"), d("2")); !got.Equal(limit) {
		t.Errorf("strong signal = %s, want capped at 0.25", got)
	}
}

func TestRiskSizer_Size(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RiskConfig
		available   string
		p           string
		profit      string
		loss        string
		maxPosition string
		want        string
	}{
		{
			name:        "risk per trade budget binds",
			cfg:         defaultRisk(),
			available:   "100000",
			p:           "0.8",
			profit:      "100",
			loss:        "50",
			maxPosition: "50000",
			want:        "2000",
		},
		{
			name: "max position binds",
			cfg: config.RiskConfig{
				TotalCapitalUSD: 1000000, MaxPositionSizeUSD: 50000, RiskPerTrade: 1, KellyCap: 0.25,
			},
			available:   "1000000",
			p:           "0.9",
			profit:      "200",
			loss:        "100",
			maxPosition: "50000",
			want:        "50000",
		},
		{
			name: "kelly binds",
			cfg: config.RiskConfig{
				TotalCapitalUSD: 100000, MaxPositionSizeUSD: 50000, RiskPerTrade: 1, KellyCap: 0.25,
			},
			available:   "100000",
			p:           "0.6",
			profit:      "50",
			loss:        "50",
			maxPosition: "50000",
			want:        "20000",
		},
		{"no edge", defaultRisk(), "100000", "0.5", "50", "50", "50000", "0"},
		{"zero loss is degenerate", defaultRisk(), "100000", "0.8", "100", "0", "50000", "0"},
		{"nothing available", defaultRisk(), "0", "0.8", "100", "50", "50000", "0"},
		{"negative profit", defaultRisk(), "100000", "0.8", "-10", "50", "50000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRiskSizer(tt.cfg)
			got := r.Size(d(tt.available), d(tt.p), d(tt.profit), d(tt.loss), d(tt.maxPosition))
			if !got.Equal(d(tt.want)) {
				t.Errorf("Size = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRiskSizer_OpenLimits(t *testing.T) {
	r := NewRiskSizer(defaultRisk())
	opp := domain.Opportunity{ID: "o1", StrategyID: "cross", BuyPrice: d("2000")}

	tests := []struct {
		name string
		size string
		code apperror.Code
	}{
		{"zero size", "0", apperror.CodeInvalidAmount},
		{"negative size", "-5", apperror.CodeInvalidAmount},
		{"above max position", "50000.01", apperror.CodePositionLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r.CanOpen(d(tt.size)) {
				t.Errorf("CanOpen(%s) = true", tt.size)
			}
			_, err := r.Open(opp, d(tt.size))
			if got := apperror.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v", got, tt.code)
			}
		})
	}

	for i := 0; i < 2; i++ {
		if _, err := r.Open(opp, d("50000")); err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
	}
	_, err := r.Open(opp, d("1"))
	if got := apperror.GetCode(err); got != apperror.CodeInsufficientCapital {
		t.Errorf("code = %v, want %v", got, apperror.CodeInsufficientCapital)
	}
	if !r.Available().IsZero() {
		t.Errorf("available = %s, want 0", r.Available())
	}
}

func TestRiskSizer_Ledger(t *testing.T) {
	r := NewRiskSizer(defaultRisk())
	opp := domain.Opportunity{ID: "o1", StrategyID: "cross", BuyPrice: d("2000")}

	first, err := r.Open(opp, d("30000"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := r.Open(opp, d("30000"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("positions share an id")
	}
	if first.Status != domain.PositionOpen || first.OpportunityID != "o1" || !first.EntryPrice.Equal(d("2000")) {
		t.Errorf("unexpected position %+v", first)
	}
	if got := r.Utilization(); !got.Equal(d("60")) {
		t.Errorf("utilization = %s, want 60", got)
	}

	closed, err := r.Close(first.ID, d("2010"), d("150"))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.PositionClosed || !closed.RealizedPnLUSD.Equal(d("150")) {
		t.Errorf("unexpected closed position %+v", closed)
	}
	if _, ok := r.Position(first.ID); ok {
		t.Error("closed position still reported open")
	}

	if _, err := r.Close(first.ID, d("2010"), d("150")); apperror.GetCode(err) != apperror.CodePositionNotFound {
		t.Errorf("second close code = %v, want %v", apperror.GetCode(err), apperror.CodePositionNotFound)
	}
	if _, err := r.Close("missing", decimal.Zero, decimal.Zero); apperror.GetCode(err) != apperror.CodePositionNotFound {
		t.Errorf("unknown close code = %v, want %v", apperror.GetCode(err), apperror.CodePositionNotFound)
	}

	if _, err := r.Close(second.ID, d("1990"), d("-50")); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m := r.RiskMetrics()
	want := domain.RiskMetrics{
		TotalCapitalUSD:     d("100100"),
		UsedCapitalUSD:      d("0"),
		AvailableCapitalUSD: d("100100"),
		UtilizationPercent:  d("0"),
		OpenPositions:       0,
		ClosedPositions:     2,
		RealizedPnLUSD:      d("100"),
		MaxPositionSizeUSD:  d("50000"),
		RiskPerTrade:        d("0.02"),
	}
	if !m.TotalCapitalUSD.Equal(want.TotalCapitalUSD) ||
		!m.UsedCapitalUSD.Equal(want.UsedCapitalUSD) ||
		!m.AvailableCapitalUSD.Equal(want.AvailableCapitalUSD) ||
		!m.UtilizationPercent.Equal(want.UtilizationPercent) ||
		!m.RealizedPnLUSD.Equal(want.RealizedPnLUSD) ||
		!m.MaxPositionSizeUSD.Equal(want.MaxPositionSizeUSD) ||
		!m.RiskPerTrade.Equal(want.RiskPerTrade) ||
		m.OpenPositions != want.OpenPositions ||
		m.ClosedPositions != want.ClosedPositions {
		t.Errorf("RiskMetrics = %+v, want %+v", m, want)
	}
}

func TestRiskSizer_ConcurrentOpensNeverOvercommit(t *testing.T) {
	r := NewRiskSizer(defaultRisk())
	opp := domain.Opportunity{ID: "o1", BuyPrice: d("2000")}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Open(opp, d("2000")); err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if opened != 50 {
		t.Errorf("opened %d positions, want 50", opened)
	}
	m := r.RiskMetrics()
	if !m.UsedCapitalUSD.Equal(d("100000")) || m.OpenPositions != 50 {
		t.Errorf("used %s with %d open, want 100000 with 50", m.UsedCapitalUSD, m.OpenPositions)
	}
	if len(r.OpenPositions()) != 50 {
		t.Errorf("OpenPositions = %d, want 50", len(r.OpenPositions()))
	}
}
