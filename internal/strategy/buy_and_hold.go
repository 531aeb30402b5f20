package strategy

import (
	"daybacktest/internal/bar"
	"daybacktest/internal/signal"
)

// BuyAndHold buys the full target size on the very first bar it sees and
// never trades again. Useful as a baseline for comparing active strategies
// against doing nothing.
type BuyAndHold struct {
	Base

	bought bool
}

func (s *BuyAndHold) OnBar(b bar.Bar) []signal.Signal {
	if s.bought {
		return nil
	}
	s.bought = true
	return []signal.Signal{{
		Symbol: b.Symbol, Timestamp: b.Timestamp, Side: signal.SideBuy,
		Reason: "buy_and_hold_entry",
	}}
}
