package obslog

import (
	"context"
	"time"
)

// Recorder adapts the package-level Event helpers to the small interface
// the engine depends on, keeping the simulation kernel decoupled from any
// concrete logging library.
type Recorder struct{}

func (Recorder) Fill(ctx context.Context, symbol, orderID string, quantity, price, commission float64) {
	Fill(ctx, symbol, orderID, quantity, price, commission)
}

func (Recorder) Rejection(ctx context.Context, code, symbol, message string) {
	Rejection(ctx, code, symbol, message)
}

func (Recorder) DayBoundary(ctx context.Context, kind, day string, equity float64) {
	DayBoundary(ctx, kind, day, equity)
}

// BarProcessed is a no-op: a JSON log line per bar would drown out the
// per-event log at any real run length, so the bar-progress signal is
// metrics-only (see cmd/backtest's instrumentedRecorder).
func (Recorder) BarProcessed(ctx context.Context, symbol string, timestamp time.Time) {}
