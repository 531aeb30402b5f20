package metrics

import (
	"math"
	"testing"
	"time"
)

func approx(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v want %v", msg, got, want)
	}
}

func TestCalculateTotalReturn(t *testing.T) {
	r := Calculate(Config{}, []float64{0.01, -0.005, 0.01}, []float64{100000, 101000, 100495, 101500}, nil, 0, 100000, time.Time{}, time.Time{})
	approx(t, r.TotalReturn, 0.015, 1e-6, "total return")
}

func TestMaxDrawdownComputedFromPeak(t *testing.T) {
	r := Calculate(Config{}, []float64{0, 0, 0}, []float64{100, 120, 90, 110}, nil, 0, 100, time.Time{}, time.Time{})
	approx(t, r.MaxDrawdown, (90.0-120.0)/120.0, 1e-9, "max drawdown")
}

func TestTradeStatsWinRateAndProfitFactor(t *testing.T) {
	r := Calculate(Config{}, nil, nil, []float64{100, -50, 200, -100}, 10, 0, time.Time{}, time.Time{})
	approx(t, r.WinRate, 0.5, 1e-9, "win rate")
	approx(t, r.ProfitFactor, 300.0/150.0, 1e-9, "profit factor")
	if r.TotalCommission != 10 {
		t.Errorf("expected total commission 10, got %v", r.TotalCommission)
	}
	if r.NumWins != 2 || r.NumLosses != 2 {
		t.Errorf("expected 2 wins and 2 losses, got wins=%d losses=%d", r.NumWins, r.NumLosses)
	}
}

func TestCalculateTotalPnLAndPeriodFields(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := Calculate(Config{}, []float64{0.01}, []float64{100000, 105000}, nil, 0, 100000, start, end)
	approx(t, r.TotalPnL, 5000, 1e-6, "total pnl")
	if r.InitialCapital != 100000 {
		t.Errorf("expected initial capital 100000, got %v", r.InitialCapital)
	}
	if r.FinalValue != 105000 {
		t.Errorf("expected final value 105000, got %v", r.FinalValue)
	}
	if !r.StartDate.Equal(start) || !r.EndDate.Equal(end) {
		t.Errorf("expected start/end dates %v/%v, got %v/%v", start, end, r.StartDate, r.EndDate)
	}
}

func TestVaRAndCVaRAreNegativeForLossyTail(t *testing.T) {
	returns := []float64{0.02, 0.01, 0.005, -0.01, -0.03, -0.05, 0.015, -0.02, 0.0, 0.01}
	varVal, cvar := valueAtRisk(returns, 0.95)
	if varVal >= 0 {
		t.Errorf("expected negative VaR for a lossy tail, got %v", varVal)
	}
	if cvar > varVal {
		t.Errorf("expected CVaR <= VaR (further into the tail), got cvar=%v var=%v", cvar, varVal)
	}
}

func TestEmptySeriesProducesZeroReport(t *testing.T) {
	r := Calculate(Config{}, nil, nil, nil, 0, 0, time.Time{}, time.Time{})
	if r.TotalReturn != 0 || r.Sharpe != 0 || r.WinRate != 0 {
		t.Errorf("expected all-zero report for empty input, got %+v", r)
	}
}
