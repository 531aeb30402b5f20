// Package execution implements the pure, stateless fill-price rules the
// order book delegates to: first-touch intrabar price determination per
// order type, slippage, tick-size rounding, commission, and TP/SL hit
// testing with a documented tie-break heuristic.
package execution

import (
	"math"

	"daybacktest/internal/bar"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

// Model is the configured, stateless execution simulator. Zero value is
// usable (no slippage, no commission, no tick rounding, and UseFirstTouch
// false: close-based MARKET and LIMIT fills, first-touch STOP fills).
type Model struct {
	SlippageBps   float64
	CommissionBps float64
	TickSize      float64

	// UseFirstTouch selects the intrabar price-determination rules. When
	// true, MARKET and LIMIT orders fill at the first price within the bar
	// that satisfies their trigger condition (bar.Open, or the limit price
	// once touched). When false, MARKET fills at bar.Close and LIMIT fills
	// at bar.Close only if the close itself satisfies the limit condition,
	// otherwise the order does not fill this bar. STOP and STOP_LIMIT
	// orders always use first-touch rules regardless of this flag.
	UseFirstTouch bool
}

// TryFill returns the Fill that would result from exposing ord to bar, or
// (nil, false) if the order's trigger condition is not met on this bar.
// Never mutates ord; the order book is responsible for applying the
// returned Fill.
func (m Model) TryFill(ord *order.Order, b bar.Bar) (*order.Fill, bool) {
	price, ok := m.determineExecutionPrice(ord, b)
	if !ok {
		return nil, false
	}

	preSlippage := price
	price = m.applySlippage(price, ord.Side)
	price = m.roundToTick(price)

	qty := ord.RemainingQuantity()
	commission := math.Abs(m.CommissionBps) / 10000.0 * qty * price

	return &order.Fill{
		OrderID:                   ord.ID,
		Symbol:                    ord.Symbol,
		Side:                      ord.Side,
		Quantity:                  qty,
		ExecutionPrice:            price,
		ExecutionPricePreSlippage: preSlippage,
		Commission:                commission,
		SlippageBps:               m.SlippageBps,
		Timestamp:                 b.Timestamp,
	}, true
}

// determineExecutionPrice dispatches on order type. STOP and STOP_LIMIT
// always use first-touch semantics: the earliest price within the bar's
// range at which the order's trigger condition becomes true. MARKET and
// LIMIT branch on UseFirstTouch.
func (m Model) determineExecutionPrice(ord *order.Order, b bar.Bar) (float64, bool) {
	switch ord.Type {
	case order.TypeMarket:
		if !m.UseFirstTouch {
			return b.Close, true
		}
		return b.Open, true
	case order.TypeLimit:
		return m.limitOrderPrice(ord, b)
	case order.TypeStop:
		return m.stopOrderPrice(ord, b)
	case order.TypeStopLimit:
		return m.stopLimitOrderPrice(ord, b)
	default:
		return 0, false
	}
}

// limitOrderPrice implements first-touch limit fills, or, with
// UseFirstTouch false, fills at bar.Close only if the close itself
// satisfies the limit condition.
func (m Model) limitOrderPrice(ord *order.Order, b bar.Bar) (float64, bool) {
	if !m.UseFirstTouch {
		if ord.Side == signal.SideBuy {
			if b.Close <= ord.LimitPrice {
				return b.Close, true
			}
			return 0, false
		}
		if b.Close >= ord.LimitPrice {
			return b.Close, true
		}
		return 0, false
	}
	if ord.Side == signal.SideBuy {
		if b.Low > ord.LimitPrice {
			return 0, false
		}
		if b.Open <= ord.LimitPrice {
			return b.Open, true
		}
		return ord.LimitPrice, true
	}
	if b.High < ord.LimitPrice {
		return 0, false
	}
	if b.Open >= ord.LimitPrice {
		return b.Open, true
	}
	return ord.LimitPrice, true
}

func (m Model) stopOrderPrice(ord *order.Order, b bar.Bar) (float64, bool) {
	if ord.Side == signal.SideBuy {
		if b.High < ord.StopPrice {
			return 0, false
		}
		if b.Open >= ord.StopPrice {
			return b.Open, true
		}
		return ord.StopPrice, true
	}
	if b.Low > ord.StopPrice {
		return 0, false
	}
	if b.Open <= ord.StopPrice {
		return b.Open, true
	}
	return ord.StopPrice, true
}

// stopLimitOrderPrice triggers like a stop order, then fills like a limit
// order bounded at the stop price rather than the bar open.
func (m Model) stopLimitOrderPrice(ord *order.Order, b bar.Bar) (float64, bool) {
	if ord.Side == signal.SideBuy {
		if b.High < ord.StopPrice {
			return 0, false
		}
		if b.Low > ord.LimitPrice {
			return 0, false
		}
		entry := math.Max(ord.StopPrice, b.Open)
		if entry > ord.LimitPrice {
			return 0, false
		}
		return math.Min(entry, ord.LimitPrice), true
	}
	if b.Low > ord.StopPrice {
		return 0, false
	}
	if b.High < ord.LimitPrice {
		return 0, false
	}
	entry := math.Min(ord.StopPrice, b.Open)
	if entry < ord.LimitPrice {
		return 0, false
	}
	return math.Max(entry, ord.LimitPrice), true
}

// applySlippage nudges price against the order's side: buys execute
// slightly higher, sells slightly lower.
func (m Model) applySlippage(price float64, side signal.Side) float64 {
	adj := price * math.Abs(m.SlippageBps) / 10000.0
	if side == signal.SideBuy {
		return price + adj
	}
	return price - adj
}

// roundToTick rounds to the nearest tick using round-half-away-from-zero,
// so results are deterministic regardless of floating point representation
// quirks at the .5-tick boundary.
func (m Model) roundToTick(price float64) float64 {
	if m.TickSize <= 0 {
		return price
	}
	ticks := price / m.TickSize
	var rounded float64
	if ticks >= 0 {
		rounded = math.Floor(ticks + 0.5)
	} else {
		rounded = math.Ceil(ticks - 0.5)
	}
	// For ticks that divide one unit evenly (0.01, 0.05, 0.25, ...), divide
	// by the whole number of ticks per unit: multiplying by the inexact tick
	// would land one ulp off the multiple (2001 * 0.05 = 100.05000000000001).
	if perUnit := 1 / m.TickSize; perUnit == math.Round(perUnit) {
		return rounded / perUnit
	}
	return rounded * m.TickSize
}

// HitKind distinguishes which protective level was touched.
type HitKind int

const (
	HitNone HitKind = iota
	HitStopLoss
	HitTakeProfit
)

// CheckStopLossHit reports whether b's range touches the stop-loss level
// for a position opened at the given side.
func CheckStopLossHit(side signal.Side, stopLoss float64, b bar.Bar) bool {
	if stopLoss <= 0 {
		return false
	}
	if side == signal.SideBuy {
		return b.Low <= stopLoss
	}
	return b.High >= stopLoss
}

// CheckTakeProfitHit reports whether b's range touches the take-profit
// level for a position opened at the given side.
func CheckTakeProfitHit(side signal.Side, takeProfit float64, b bar.Bar) bool {
	if takeProfit <= 0 {
		return false
	}
	if side == signal.SideBuy {
		return b.High >= takeProfit
	}
	return b.Low <= takeProfit
}

// ResolveTPSLTie decides which level is treated as hit first when both the
// stop-loss and take-profit are touched within the same bar. A bullish bar
// (close > open) is read as having travelled up before coming back down, so
// take-profit is assumed to have been reached first for a long position
// (and stop-loss first for a short, the mirror image); a bearish or flat
// bar resolves the other way.
func ResolveTPSLTie(side signal.Side, b bar.Bar) HitKind {
	bullish := b.Close > b.Open
	if side == signal.SideBuy {
		if bullish {
			return HitTakeProfit
		}
		return HitStopLoss
	}
	if bullish {
		return HitStopLoss
	}
	return HitTakeProfit
}
