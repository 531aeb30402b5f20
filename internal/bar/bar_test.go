package bar

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewNormalizesBounds(t *testing.T) {
	b, err := New("AAPL", ts("2024-01-02 09:30:00"), 100, 99, 101, 98, 1000)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if b.Low > min(b.Open, b.Close) {
		t.Errorf("low %v must be <= min(open,close) %v", b.Low, min(b.Open, b.Close))
	}
	if b.High < max(b.Open, b.Close) {
		t.Errorf("high %v must be >= max(open,close) %v", b.High, max(b.Open, b.Close))
	}
}

func TestFromPriceFillsOHLCV(t *testing.T) {
	b, err := FromPrice("AAPL", ts("2024-01-02 09:30:00"), 150.25)
	if err != nil {
		t.Fatalf("FromPrice returned error: %v", err)
	}
	if b.Open != 150.25 || b.High != 150.25 || b.Low != 150.25 || b.Close != 150.25 {
		t.Errorf("expected flat bar at 150.25, got %+v", b)
	}
	if b.Volume != 0 {
		t.Errorf("expected zero volume, got %v", b.Volume)
	}
}

func TestNewRejectsEmptySymbol(t *testing.T) {
	if _, err := New("", ts("2024-01-02 09:30:00"), 1, 1, 1, 1, 0); err == nil {
		t.Error("expected error for empty symbol")
	}
}

func TestSliceStreamRejectsOutOfOrder(t *testing.T) {
	b1, _ := FromPrice("AAPL", ts("2024-01-02 09:31:00"), 100)
	b2, _ := FromPrice("AAPL", ts("2024-01-02 09:30:00"), 100)
	if _, err := NewSliceStream([]Bar{b1, b2}); err == nil {
		t.Error("expected error for out-of-order bars")
	}
}

func TestSliceStreamYieldsInOrder(t *testing.T) {
	b1, _ := FromPrice("AAPL", ts("2024-01-02 09:30:00"), 100)
	b2, _ := FromPrice("AAPL", ts("2024-01-02 09:31:00"), 101)
	s, err := NewSliceStream([]Bar{b1, b2})
	if err != nil {
		t.Fatalf("NewSliceStream: %v", err)
	}
	got, ok, err := s.Next()
	if err != nil || !ok || got.Close != 100 {
		t.Fatalf("expected first bar at 100, got %+v ok=%v err=%v", got, ok, err)
	}
	got, ok, err = s.Next()
	if err != nil || !ok || got.Close != 101 {
		t.Fatalf("expected second bar at 101, got %+v ok=%v err=%v", got, ok, err)
	}
	_, ok, err = s.Next()
	if err != nil || ok {
		t.Fatalf("expected stream exhausted, got ok=%v err=%v", ok, err)
	}
}
