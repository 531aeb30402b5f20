package orderbook

import (
	"math/rand"
	"testing"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/execution"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

func newBook() *OrderBook {
	return New(execution.Model{}, rand.New(rand.NewSource(1)))
}

func mustBar(t *testing.T, tm time.Time, o, h, l, c, v float64) bar.Bar {
	t.Helper()
	b, err := bar.New("AAPL", tm, o, h, l, c, v)
	if err != nil {
		t.Fatalf("bar.New: %v", err)
	}
	return b
}

func TestSubmitAssignsIDAndActivates(t *testing.T) {
	b := newBook()
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 10}
	id, err := b.Submit(ord, time.Now())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty order id")
	}
	got, ok := b.Get(id)
	if !ok || got.Status != order.StatusSubmitted {
		t.Fatalf("expected submitted order, got %+v ok=%v", got, ok)
	}
}

func TestProcessBarFillsMarketOrder(t *testing.T) {
	b := newBook()
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ord := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 10}
	if _, err := b.Submit(ord, ts); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	bk := mustBar(t, ts, 100, 101, 99, 100.5, 1000)
	fills := b.ProcessBar(bk)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if ord.Status != order.StatusFilled {
		t.Errorf("expected order filled, got %v", ord.Status)
	}
	if len(b.GetActive()) != 0 {
		t.Errorf("expected no active orders after full fill")
	}
}

func TestProcessBarOrdersByTimestampThenID(t *testing.T) {
	b := newBook()
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	o1 := &order.Order{Symbol: "AAPL", Side: signal.SideBuy, Type: order.TypeMarket, Quantity: 1}
	o2 := &order.Order{Symbol: "AAPL", Side: signal.SideSell, Type: order.TypeMarket, Quantity: 1}
	if _, err := b.Submit(o1, ts); err != nil {
		t.Fatalf("submit o1: %v", err)
	}
	if _, err := b.Submit(o2, ts); err != nil {
		t.Fatalf("submit o2: %v", err)
	}
	bk := mustBar(t, ts, 100, 101, 99, 100, 1000)
	fills := b.ProcessBar(bk)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].OrderID != o1.ID {
		t.Errorf("expected o1 to fill first, got %s then %s", fills[0].OrderID, fills[1].OrderID)
	}
}

func TestCancelUnknownOrderFails(t *testing.T) {
	b := newBook()
	if err := b.Cancel("nope"); err == nil {
		t.Error("expected error cancelling unknown order")
	}
}
