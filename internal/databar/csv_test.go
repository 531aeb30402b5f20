package databar

import (
	"strings"
	"testing"
)

func TestLoadBarsFullOHLCV(t *testing.T) {
	csv := "symbol,timestamp,open,high,low,close,volume\n" +
		"AAPL,2024-01-02 09:30:00,100,101,99,100.5,1000\n" +
		"AAPL,2024-01-02 09:31:00,100.5,102,100,101.5,1200\n"
	bars, err := loadBars(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("loadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 100.5 {
		t.Errorf("expected first close 100.5, got %v", bars[0].Close)
	}
}

func TestLoadBarsPriceOnlyFallback(t *testing.T) {
	csv := "symbol,timestamp,price\n" +
		"AAPL,2024-01-02 09:30:00,150.25\n"
	bars, err := loadBars(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("loadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Open != 150.25 || bars[0].High != 150.25 {
		t.Errorf("expected flat bar at 150.25, got %+v", bars[0])
	}
}

func TestLoadSignalsCSV(t *testing.T) {
	csv := "symbol,timestamp,side,size,reason\n" +
		"AAPL,2024-01-02 09:30:00,buy,10,ma_cross\n"
	signals, err := loadSignals(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("loadSignals: %v", err)
	}
	if len(signals) != 1 || signals[0].Size != 10 {
		t.Fatalf("expected 1 signal with size 10, got %+v", signals)
	}
}

func TestLoadSignalsRejectsInvalidSide(t *testing.T) {
	csv := "symbol,timestamp,side\n" +
		"AAPL,2024-01-02 09:30:00,sideways\n"
	if _, err := loadSignals(strings.NewReader(csv)); err == nil {
		t.Error("expected error for invalid side")
	}
}
