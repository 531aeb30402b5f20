package risk

import (
	"testing"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/signal"
)

func TestSizeByFraction(t *testing.T) {
	s, err := New(Config{Method: MethodFraction, RiskFraction: 0.1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	size, err := s.Size(100000, 50, 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 200 {
		t.Errorf("expected size 200 (10000/50), got %v", size)
	}
}

func TestSizeByVolatilityDividesByPriceTimesVolatility(t *testing.T) {
	s, err := New(Config{Method: MethodVolatility, VolatilityTarget: 0.15})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// target_vol * equity / (price * volatility) = 0.15*100000 / (50*0.2) = 1500
	size, err := s.Size(100000, 50, 0.2)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 1500 {
		t.Errorf("expected size 1500, got %v", size)
	}
}

func TestSizeByVolatilityCapsAtMaxPositionPct(t *testing.T) {
	s, _ := New(Config{Method: MethodVolatility, VolatilityTarget: 0.15, MaxPositionPct: 0.1})
	// uncapped would be 0.15*100000/(50*0.05) = 6000 shares; cap is
	// (100000*0.1)/50 = 200 shares.
	size, err := s.Size(100000, 50, 0.05)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 200 {
		t.Errorf("expected size capped to 200, got %v", size)
	}
}

func TestSizeByVolatilityFallsBackToFractionWhenVolatilityUnavailable(t *testing.T) {
	s, _ := New(Config{Method: MethodVolatility, RiskFraction: 0.1})
	size, err := s.Size(100000, 50, 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 200 {
		t.Errorf("expected fraction fallback size 200 (10000/50), got %v", size)
	}
}

func TestVolatilityAnnualizesSampleStdevOfReturns(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	prices := []float64{100, 102, 99, 103}
	var bars []bar.Bar
	for i, p := range prices {
		b, err := bar.FromPrice("AAPL", ts.Add(time.Duration(i)*24*time.Hour), p)
		if err != nil {
			t.Fatalf("FromPrice: %v", err)
		}
		bars = append(bars, b)
	}
	if v := Volatility(bars); v <= 0 {
		t.Errorf("expected positive annualized volatility, got %v", v)
	}
}

func TestVolatilityZeroForTooFewBars(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	b, _ := bar.FromPrice("AAPL", ts, 100)
	if v := Volatility([]bar.Bar{b}); v != 0 {
		t.Errorf("expected zero volatility with a single bar, got %v", v)
	}
}

func TestAdmitRejectsWhenMaxPositionsReached(t *testing.T) {
	s, _ := New(Config{Method: MethodFixed, FixedSize: 10, MaxPositions: 2})
	sig := signal.Signal{Symbol: "MSFT", Side: signal.SideBuy}
	size, v := s.Admit(sig, 10, 100, 100000, 2, true, 0)
	if v == nil || v.Code != ViolationTooManyPositions {
		t.Fatalf("expected too-many-positions violation, got size=%v v=%v", size, v)
	}
}

func TestAdmitClipsToPositionCap(t *testing.T) {
	s, _ := New(Config{Method: MethodFixed, FixedSize: 1000, MaxPositionPct: 0.1})
	sig := signal.Signal{Symbol: "AAPL", Side: signal.SideBuy}
	size, v := s.Admit(sig, 1000, 100, 100000, 0, true, 0)
	if v == nil || v.Code != ViolationPositionClipped {
		t.Fatalf("expected clip violation, got %v", v)
	}
	if size != 100 {
		t.Errorf("expected clipped size 100 (10000 cap / 100 price), got %v", size)
	}
}

func TestAdmitClipsToLeverageSubtractingExistingExposure(t *testing.T) {
	s, _ := New(Config{Method: MethodFixed, FixedSize: 1000, MaxLeverage: 1.0})
	sig := signal.Signal{Symbol: "AAPL", Side: signal.SideBuy}
	size, v := s.Admit(sig, 1000, 100, 100000, 1, false, 50000)
	if v == nil || v.Code != ViolationLeverageClipped {
		t.Fatalf("expected leverage clip, got %v", v)
	}
	if size != 500 {
		t.Errorf("expected clipped size 500 ((100000-50000)/100), got %v", size)
	}
}

func TestStopLossPrefersATRWhenAvailable(t *testing.T) {
	s, _ := New(Config{Method: MethodFixed, FixedSize: 1, ATRMultiplier: 2, StopLossPct: 0.05})
	got := s.StopLossFor(signal.SideBuy, 100, 3)
	if got != 94 {
		t.Errorf("expected ATR-based stop at 94, got %v", got)
	}
}

func TestTakeProfitByRiskReward(t *testing.T) {
	s, _ := New(Config{Method: MethodFixed, FixedSize: 1, RiskRewardRatio: 2})
	got := s.TakeProfitFor(signal.SideBuy, 100, 95)
	if got != 110 {
		t.Errorf("expected risk-reward take profit at 110, got %v", got)
	}
}
