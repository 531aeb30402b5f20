package strategy

import (
	"daybacktest/internal/bar"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

// MACrossover emits a buy signal when the fast simple moving average
// crosses above the slow one, and a sell signal on the reverse cross.
// Adapted from the indicator-threshold shape of a moving-average strategy,
// generalized to this engine's bar/signal/order vocabulary.
type MACrossover struct {
	Base

	FastPeriod int
	SlowPeriod int

	closes    []float64
	haveCross bool
	fastAbove bool
	position  float64
}

// NewMACrossover builds a crossover strategy. Panics if fast >= slow, which
// would never produce a meaningful signal.
func NewMACrossover(fastPeriod, slowPeriod int) *MACrossover {
	if fastPeriod >= slowPeriod {
		panic("strategy: MACrossover fast period must be less than slow period")
	}
	return &MACrossover{FastPeriod: fastPeriod, SlowPeriod: slowPeriod}
}

func sma(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

func (s *MACrossover) OnBar(b bar.Bar) []signal.Signal {
	s.closes = append(s.closes, b.Close)

	fast, okFast := sma(s.closes, s.FastPeriod)
	slow, okSlow := sma(s.closes, s.SlowPeriod)
	if !okFast || !okSlow {
		return nil
	}

	nowAbove := fast > slow
	defer func() { s.haveCross = true; s.fastAbove = nowAbove }()

	if !s.haveCross {
		return nil
	}
	if nowAbove == s.fastAbove {
		return nil
	}

	if nowAbove && s.position <= 0 {
		s.position = 1
		return []signal.Signal{{
			Symbol: b.Symbol, Timestamp: b.Timestamp, Side: signal.SideBuy,
			Reason: "fast_ma_crossed_above_slow_ma",
		}}
	}
	if !nowAbove && s.position >= 0 {
		s.position = -1
		return []signal.Signal{{
			Symbol: b.Symbol, Timestamp: b.Timestamp, Side: signal.SideSell,
			Reason: "fast_ma_crossed_below_slow_ma",
		}}
	}
	return nil
}

func (s *MACrossover) OnFill(f order.Fill) {}
