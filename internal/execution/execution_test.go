package execution

import (
	"testing"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

func mustBar(t *testing.T, o, h, l, c, v float64) bar.Bar {
	t.Helper()
	b, err := bar.New("AAPL", time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), o, h, l, c, v)
	if err != nil {
		t.Fatalf("bar.New: %v", err)
	}
	return b
}

func TestMarketOrderFillsAtOpen(t *testing.T) {
	m := Model{UseFirstTouch: true}
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 10}
	b := mustBar(t, 100, 105, 99, 102, 1000)
	f, ok := m.TryFill(ord, b)
	if !ok {
		t.Fatal("expected fill")
	}
	if f.ExecutionPricePreSlippage != 100 {
		t.Errorf("expected pre-slippage price 100, got %v", f.ExecutionPricePreSlippage)
	}
}

func TestMarketOrderFillsAtCloseWhenFirstTouchDisabled(t *testing.T) {
	m := Model{}
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 10}
	b := mustBar(t, 100, 105, 99, 102, 1000)
	f, ok := m.TryFill(ord, b)
	if !ok {
		t.Fatal("expected fill")
	}
	if f.ExecutionPricePreSlippage != 102 {
		t.Errorf("expected fill at bar close 102, got %v", f.ExecutionPricePreSlippage)
	}
}

func TestLimitOrderCloseOnlyFillsWhenCloseSatisfiesLimit(t *testing.T) {
	m := Model{}
	b := mustBar(t, 100, 101, 98, 99, 1000)
	buy := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeLimit, Quantity: 1, LimitPrice: 99.5}
	f, ok := m.TryFill(buy, b)
	if !ok {
		t.Fatal("expected fill: close 99 <= limit 99.5")
	}
	if f.ExecutionPricePreSlippage != 99 {
		t.Errorf("expected fill at close 99, got %v", f.ExecutionPricePreSlippage)
	}

	buy.LimitPrice = 98.5
	if _, ok := m.TryFill(buy, b); ok {
		t.Fatal("expected no fill: close 99 > limit 98.5")
	}
}

func TestSlippageSignedBySide(t *testing.T) {
	m := Model{SlippageBps: 10, UseFirstTouch: true}
	b := mustBar(t, 100, 105, 99, 102, 1000)

	buy := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 1}
	fb, _ := m.TryFill(buy, b)
	if fb.ExecutionPrice <= 100 {
		t.Errorf("buy slippage should raise price above 100, got %v", fb.ExecutionPrice)
	}

	sell := &order.Order{Symbol: "AAPL", Side: signal.SideSell, Type: order.TypeMarket, Quantity: 1}
	fs, _ := m.TryFill(sell, b)
	if fs.ExecutionPrice >= 100 {
		t.Errorf("sell slippage should lower price below 100, got %v", fs.ExecutionPrice)
	}
}

func TestBuyLimitRequiresTouch(t *testing.T) {
	m := Model{UseFirstTouch: true}
	b := mustBar(t, 100, 101, 98, 99, 1000)
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeLimit, Quantity: 1, LimitPrice: 95}
	if _, ok := m.TryFill(ord, b); ok {
		t.Fatal("limit below the bar's low should not fill")
	}
	ord.LimitPrice = 99.5
	f, ok := m.TryFill(ord, b)
	if !ok {
		t.Fatal("expected fill once limit is within bar range")
	}
	if f.ExecutionPricePreSlippage != 99.5 {
		t.Errorf("expected execution at limit price 99.5, got %v", f.ExecutionPricePreSlippage)
	}
}

func TestRoundToTickHalfAwayFromZero(t *testing.T) {
	m := Model{TickSize: 0.05}
	got := m.roundToTick(100.025)
	if got != 100.05 {
		t.Errorf("expected round-half-up to 100.05, got %v", got)
	}
	got = m.roundToTick(-100.025)
	if got != -100.05 {
		t.Errorf("expected round-half-away-from-zero to -100.05, got %v", got)
	}
}

func TestCommissionAlwaysNonNegative(t *testing.T) {
	m := Model{CommissionBps: 5, UseFirstTouch: true}
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideSell, Type: order.TypeMarket, Quantity: 10}
	b := mustBar(t, 100, 101, 99, 100, 1000)
	f, ok := m.TryFill(ord, b)
	if !ok {
		t.Fatal("expected fill")
	}
	if f.Commission < 0 {
		t.Errorf("commission must be non-negative, got %v", f.Commission)
	}
}

func TestFillRecordsConfiguredSlippageBps(t *testing.T) {
	m := Model{SlippageBps: 7, UseFirstTouch: true}
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 1}
	b := mustBar(t, 100, 101, 99, 100, 1000)
	f, ok := m.TryFill(ord, b)
	if !ok {
		t.Fatal("expected fill")
	}
	if f.SlippageBps != 7 {
		t.Errorf("expected fill to carry configured slippage_bps 7, got %v", f.SlippageBps)
	}
}

func TestResolveTPSLTieBullishFavorsTakeProfitForLong(t *testing.T) {
	b := mustBar(t, 100, 110, 90, 108, 1000)
	if got := ResolveTPSLTie(signal.SideBuy, b); got != HitTakeProfit {
		t.Errorf("expected take-profit to win on a bullish bar for a long, got %v", got)
	}
}

func TestResolveTPSLTieBearishFavorsStopLossForLong(t *testing.T) {
	b := mustBar(t, 108, 110, 90, 92, 1000)
	if got := ResolveTPSLTie(signal.SideBuy, b); got != HitStopLoss {
		t.Errorf("expected stop-loss to win on a bearish bar for a long, got %v", got)
	}
}
