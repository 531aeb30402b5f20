// Prometheus metrics for the backtest CLI's optional -serve mode. Exposes
// simple run-progress counters at /metrics while a backtest executes,
// registered the same way the pack's exchange bots register theirs.
package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"daybacktest/internal/obslog"
)

var (
	fillsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtest_fills_total",
		Help: "Fills produced by the engine so far.",
	})

	rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_rejections_total",
		Help: "Non-fatal signal admission rejections, by violation code.",
	}, []string{"code"})

	dayBoundariesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_day_boundaries_total",
		Help: "Day-start/day-end transitions observed, by kind.",
	}, []string{"kind"})

	barsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtest_bars_processed_total",
		Help: "Bars consumed from the stream so far.",
	})
)

func init() {
	prometheus.MustRegister(fillsTotal, rejectionsTotal, dayBoundariesTotal, barsProcessedTotal)
}

// instrumentedRecorder wraps obslog.Recorder so every engine event both
// writes a JSON log line and updates the /metrics counters above.
type instrumentedRecorder struct {
	obslog.Recorder
}

func (r instrumentedRecorder) Fill(ctx context.Context, symbol, orderID string, quantity, price, commission float64) {
	fillsTotal.Inc()
	r.Recorder.Fill(ctx, symbol, orderID, quantity, price, commission)
}

func (r instrumentedRecorder) Rejection(ctx context.Context, code, symbol, message string) {
	rejectionsTotal.WithLabelValues(code).Inc()
	r.Recorder.Rejection(ctx, code, symbol, message)
}

func (r instrumentedRecorder) DayBoundary(ctx context.Context, kind, day string, equity float64) {
	dayBoundariesTotal.WithLabelValues(kind).Inc()
	r.Recorder.DayBoundary(ctx, kind, day, equity)
}

func (r instrumentedRecorder) BarProcessed(ctx context.Context, symbol string, timestamp time.Time) {
	barsProcessedTotal.Inc()
	r.Recorder.BarProcessed(ctx, symbol, timestamp)
}
