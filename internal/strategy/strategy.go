// Package strategy defines the capability-set interface the engine drives
// and two reference strategies adapted from the system this module
// generalizes.
package strategy

import (
	"daybacktest/internal/bar"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

// Strategy is the full capability set the engine can call into. Every
// method must be deterministic given identical inputs: no wall-clock reads,
// no unseeded randomness, no hidden global state.
type Strategy interface {
	// Preprocess runs once before the event loop starts, given the full
	// bar history available up front (e.g. to warm up indicators).
	Preprocess(history []bar.Bar) error

	// OnBar is called once per bar, before the bar's fills are processed
	// and before the portfolio is marked to the bar's close. Signals
	// returned here are eligible for the same bar's signal queue drain.
	OnBar(b bar.Bar) []signal.Signal

	// OnFill is called once per order-book or bracket-exit fill the engine
	// applies, so the strategy can update its own bookkeeping (e.g.
	// position tracking for exit logic that doesn't want to query the
	// portfolio directly). End-of-day square-off fills are not passed to it.
	OnFill(f order.Fill)

	// OnDayStart is called once at the first bar of each new calendar day.
	OnDayStart(day string)

	// OnDayEnd is called once after the last bar of each calendar day has
	// been processed (when the next day's first bar arrives, or when the
	// stream ends), before any end-of-day square-off. Signals returned here
	// enter the signal queue and are drained with the next bar processed,
	// i.e. after the square-off; those returned for the final day are
	// never drained.
	OnDayEnd(day string) []signal.Signal
}

// Base provides no-op implementations of every Strategy method so concrete
// strategies only need to override what they use.
type Base struct{}

func (Base) Preprocess(history []bar.Bar) error  { return nil }
func (Base) OnBar(b bar.Bar) []signal.Signal     { return nil }
func (Base) OnFill(f order.Fill)                 {}
func (Base) OnDayStart(day string)               {}
func (Base) OnDayEnd(day string) []signal.Signal { return nil }
