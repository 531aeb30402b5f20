// Package engine drives the daywise bar event loop: per bar it asks the
// strategy for signals, drains the signal queue, sizes and submits orders,
// processes fills against the order book, applies them to the portfolio,
// marks the portfolio to market, and appends a snapshot. Day boundaries
// trigger strategy day-start/day-end hooks and, if configured, an
// end-of-day square-off.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/execution"
	"daybacktest/internal/metrics"
	"daybacktest/internal/order"
	"daybacktest/internal/orderbook"
	"daybacktest/internal/portfolio"
	"daybacktest/internal/risk"
	"daybacktest/internal/signal"
	"daybacktest/internal/signalqueue"
	"daybacktest/internal/strategy"
)

// Recorder observes engine events for logging/metrics without the kernel
// depending on a concrete logging or metrics library.
type Recorder interface {
	Fill(ctx context.Context, symbol, orderID string, quantity, price, commission float64)
	Rejection(ctx context.Context, code, symbol, message string)
	DayBoundary(ctx context.Context, kind, day string, equity float64)
	BarProcessed(ctx context.Context, symbol string, timestamp time.Time)
}

type noopRecorder struct{}

func (noopRecorder) Fill(context.Context, string, string, float64, float64, float64) {}
func (noopRecorder) Rejection(context.Context, string, string, string)               {}
func (noopRecorder) DayBoundary(context.Context, string, string, float64)            {}
func (noopRecorder) BarProcessed(context.Context, string, time.Time)                 {}

// Config wires every collaborator the engine drives. EODCloseAll requests
// a synthetic square-off fill on the last bar of each day.
type Config struct {
	Strategy       strategy.Strategy
	ExecutionModel execution.Model
	Sizer          *risk.Sizer
	DedupeWindow   time.Duration
	InitialCash    float64
	EODCloseAll    bool
	RiskFreeRate   float64
	Recorder       Recorder
}

// Fault is a fatal simulation-invariant violation: the engine aborts the
// run and returns this error with as much context as is known.
type Fault struct {
	Timestamp time.Time
	OrderID   string
	Reason    string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("engine: fault at %s (order %s): %s", f.Timestamp, f.OrderID, f.Reason)
}

// Result is everything a finished run produces.
type Result struct {
	Fills     []*order.Fill
	Snapshots []portfolio.Snapshot
	Report    metrics.Report
}

// Engine owns one run's worth of mutable state: the order book, the
// portfolio, the signal queue, and engine-local bracket tracking for
// stop-loss/take-profit monitoring.
type Engine struct {
	cfg       Config
	book      *orderbook.OrderBook
	portfolio *portfolio.Portfolio
	queue     *signalqueue.Queue

	brackets     map[string][2]float64 // symbol -> [stopLoss, takeProfit]
	tieCounter   int
	lastBarFills []*order.Fill
	barHistory   []bar.Bar // trailing window, bounded to the sizer's vol lookback, for automatic volatility sizing
}

// New builds an Engine. rng seeds the order book's cosmetic ID suffixes;
// pass an explicitly constructed *rand.Rand, never global math/rand state,
// so a run with the same seed reproduces identical order IDs.
func New(cfg Config, rng *rand.Rand) *Engine {
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	return &Engine{
		cfg:       cfg,
		book:      orderbook.New(cfg.ExecutionModel, rng),
		portfolio: portfolio.New(cfg.InitialCash),
		queue:     signalqueue.New(cfg.DedupeWindow),
		brackets:  make(map[string][2]float64),
	}
}

// Run consumes every bar from the stream and returns the full fill and
// snapshot history plus a computed performance report.
func (e *Engine) Run(ctx context.Context, stream bar.Stream) (Result, error) {
	bars, err := drainStream(stream)
	if err != nil {
		return Result{}, err
	}
	if err := e.cfg.Strategy.Preprocess(bars); err != nil {
		return Result{}, fmt.Errorf("engine: strategy preprocess: %w", err)
	}

	var allFills []*order.Fill
	var snapshots []portfolio.Snapshot
	var equityCurve []float64
	var tradePnLs []float64
	var totalCommission float64

	var prevBar bar.Bar
	var havePrevBar bool
	var currentDay string

	for i, b := range bars {
		if i > 0 && b.Timestamp.Before(bars[i-1].Timestamp) {
			return Result{}, &Fault{Timestamp: b.Timestamp, Reason: "bar timestamps moved backward"}
		}

		day := b.Timestamp.Format("2006-01-02")
		if currentDay == "" {
			e.portfolio.CheckNewDay(b.Timestamp)
			currentDay = day
			e.cfg.Strategy.OnDayStart(day)
			e.cfg.Recorder.DayBoundary(ctx, "start", day, e.portfolio.Equity())
		} else if day != currentDay {
			if err := e.runDayEnd(ctx, currentDay, prevBar); err != nil {
				return Result{}, err
			}
			if e.cfg.EODCloseAll && havePrevBar {
				fills, err := e.portfolio.SquareOffEOD(prevBar)
				if err != nil {
					return Result{}, fmt.Errorf("engine: eod square-off: %w", err)
				}
				for _, f := range fills {
					allFills = append(allFills, f)
					delete(e.brackets, f.Symbol)
					if f.RealizedPnL != 0 {
						tradePnLs = append(tradePnLs, f.RealizedPnL)
					}
				}
			}
			e.portfolio.CheckNewDay(b.Timestamp)
			currentDay = day
			e.cfg.Strategy.OnDayStart(day)
			e.cfg.Recorder.DayBoundary(ctx, "start", day, e.portfolio.Equity())
		}

		e.pushBarHistory(b)
		e.cfg.Recorder.BarProcessed(ctx, b.Symbol, b.Timestamp)

		if err := e.processBar(ctx, b, &tradePnLs, &totalCommission); err != nil {
			return Result{}, err
		}

		allFills = append(allFills, e.lastBarFills...)
		e.portfolio.UpdateFromBar(b)
		snap := e.portfolio.CreateSnapshot(b.Timestamp)
		snapshots = append(snapshots, snap)
		equityCurve = append(equityCurve, snap.Equity())

		prevBar = b
		havePrevBar = true
	}

	if havePrevBar {
		if err := e.runDayEnd(ctx, currentDay, prevBar); err != nil {
			return Result{}, err
		}
		if e.cfg.EODCloseAll {
			fills, err := e.portfolio.SquareOffEOD(prevBar)
			if err != nil {
				return Result{}, fmt.Errorf("engine: final eod square-off: %w", err)
			}
			allFills = append(allFills, fills...)
			for _, f := range fills {
				if f.RealizedPnL != 0 {
					tradePnLs = append(tradePnLs, f.RealizedPnL)
				}
			}
			if len(fills) > 0 {
				snap := e.portfolio.CreateSnapshot(prevBar.Timestamp)
				snapshots = append(snapshots, snap)
				equityCurve = append(equityCurve, snap.Equity())
			}
		}
	}

	var dailyReturns []float64
	for _, day := range sortedDays(e.portfolio.DailyReturnHistory()) {
		dailyReturns = append(dailyReturns, e.portfolio.DailyReturnHistory()[day])
	}

	var startTime, endTime time.Time
	if len(bars) > 0 {
		startTime = bars[0].Timestamp
		endTime = bars[len(bars)-1].Timestamp
	}
	report := metrics.Calculate(metrics.Config{RiskFreeRate: e.cfg.RiskFreeRate}, dailyReturns, equityCurve, tradePnLs, totalCommission, e.cfg.InitialCash, startTime, endTime)

	return Result{Fills: allFills, Snapshots: snapshots, Report: report}, nil
}

// pushBarHistory appends b to the trailing bar window used for automatic
// volatility sizing, trimmed to the sizer's configured lookback.
func (e *Engine) pushBarHistory(b bar.Bar) {
	e.barHistory = append(e.barHistory, b)
	limit := 1
	if e.cfg.Sizer != nil {
		limit = e.cfg.Sizer.VolLookback() + 1
	}
	if len(e.barHistory) > limit {
		e.barHistory = e.barHistory[len(e.barHistory)-limit:]
	}
}

func (e *Engine) runDayEnd(ctx context.Context, day string, lastBarOfDay bar.Bar) error {
	signals := e.cfg.Strategy.OnDayEnd(day)
	for _, s := range signals {
		e.queue.Add(s)
	}
	e.cfg.Recorder.DayBoundary(ctx, "end", day, e.portfolio.Equity())
	return nil
}

func sortedDays(m map[string]float64) []string {
	days := make([]string, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	for i := 1; i < len(days); i++ {
		for j := i; j > 0 && days[j] < days[j-1]; j-- {
			days[j], days[j-1] = days[j-1], days[j]
		}
	}
	return days
}

func drainStream(s bar.Stream) ([]bar.Bar, error) {
	var bars []bar.Bar
	for {
		b, ok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("engine: reading bar stream: %w", err)
		}
		if !ok {
			return bars, nil
		}
		bars = append(bars, b)
	}
}

func oppositeSide(s signal.Side) signal.Side {
	if s == signal.SideBuy {
		return signal.SideSell
	}
	return signal.SideBuy
}
