// Package portfolio tracks cash, positions, and realized/unrealized P&L for
// a single-instrument backtest, including daywise bookkeeping and the
// end-of-day square-off.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/order"
	"daybacktest/internal/signal"
)

const dayFormat = "2006-01-02"

// Position is the current holding in a single symbol. Quantity is signed:
// positive is long, negative is short, zero is flat.
type Position struct {
	Symbol        string
	Quantity      float64
	AvgEntryPrice float64
	OpenedTS      time.Time
	LastPrice     float64
	UnrealizedPnL float64
}

// Side reports the directional side of the position. Flat positions report
// signal.SideBuy as a zero-value convention; callers should check
// Quantity == 0 first.
func (p Position) Side() signal.Side {
	if p.Quantity < 0 {
		return signal.SideSell
	}
	return signal.SideBuy
}

func (p Position) clone() Position {
	return p
}

// Snapshot is an immutable point-in-time view of the portfolio, safe to
// retain after the engine advances.
type Snapshot struct {
	Timestamp     time.Time
	Cash          float64
	Positions     map[string]Position
	UnrealizedPnL float64
	RealizedPnL   float64
	// PositionsValue is informational only: sum(|qty| * last_price). The
	// portfolio's equity identity is Cash + UnrealizedPnL, not this field.
	PositionsValue float64
	DailyPnL       float64
	DailyReturn    float64
}

// Equity is the authoritative mark-to-market value of the portfolio.
func (s Snapshot) Equity() float64 {
	return s.Cash + s.UnrealizedPnL
}

// Portfolio is the mutable accounting engine. Not safe for concurrent use.
type Portfolio struct {
	cash        float64
	positions   map[string]*Position
	realizedPnL float64

	currentDay          string
	dailyPnL            float64
	dailyStartingEquity float64
	previousDayEquity   float64
	dailyPnLHistory     map[string]float64
	dailyReturnHistory  map[string]float64
}

// New builds a Portfolio starting with the given cash and no positions.
func New(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:               initialCash,
		positions:          make(map[string]*Position),
		dailyPnLHistory:    make(map[string]float64),
		dailyReturnHistory: make(map[string]float64),
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

func (p *Portfolio) positionFor(symbol string) *Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

// Equity returns cash + unrealized P&L, the only quantity this portfolio
// treats as total account value. Positions' notional value is tracked
// separately (see PositionsValue) for reporting only.
func (p *Portfolio) Equity() float64 {
	total := p.cash
	for _, pos := range p.positions {
		total += pos.UnrealizedPnL
	}
	return total
}

// PositionsValue sums |quantity| * last_price across all positions. This is
// informational only and is never added into Equity.
func (p *Portfolio) PositionsValue() float64 {
	var v float64
	for _, pos := range p.positions {
		v += math.Abs(pos.Quantity) * pos.LastPrice
	}
	return v
}

// CheckNewDay freezes the previous trading day's P&L and return history the
// first time it observes a timestamp on a later calendar day than the one
// currently open, and resets the day's running counters. Returns true the
// first time it is called (establishing day zero) or whenever a new day
// begins.
func (p *Portfolio) CheckNewDay(ts time.Time) bool {
	day := ts.Format(dayFormat)
	if p.currentDay == "" {
		p.currentDay = day
		p.dailyStartingEquity = p.Equity()
		p.previousDayEquity = p.Equity()
		return true
	}
	if day == p.currentDay {
		return false
	}

	p.dailyPnLHistory[p.currentDay] = p.dailyPnL
	var ret float64
	if p.dailyStartingEquity != 0 {
		ret = p.dailyPnL / p.dailyStartingEquity
	}
	p.dailyReturnHistory[p.currentDay] = ret

	p.previousDayEquity = p.Equity()
	p.dailyStartingEquity = p.Equity()
	p.dailyPnL = 0
	p.currentDay = day
	return true
}

// ApplyFill updates cash, the affected position, and realized P&L for a
// single fill. Realized P&L is computed only on the portion of the fill
// that closes existing exposure; the remainder (if any) opens or extends a
// position at the fill price.
func (p *Portfolio) ApplyFill(f *order.Fill) error {
	if f == nil {
		return fmt.Errorf("portfolio: nil fill")
	}
	pos := p.positionFor(f.Symbol)

	signedQty := f.Quantity
	if f.Side == signal.SideSell {
		signedQty = -f.Quantity
	}

	if f.Side == signal.SideBuy {
		p.cash -= f.NetValue()
	} else {
		p.cash += f.NetValue()
	}

	isClosing := pos.Quantity != 0 && sign(pos.Quantity) != sign(signedQty)

	if isClosing {
		closeQty := math.Min(math.Abs(pos.Quantity), math.Abs(signedQty))
		realized := sign(pos.Quantity) * (f.ExecutionPrice - pos.AvgEntryPrice) * closeQty
		p.realizedPnL += realized
		p.dailyPnL += realized
		f.RealizedPnL = realized

		newQty := pos.Quantity + signedQty
		if sign(newQty) == sign(pos.Quantity) || newQty == 0 {
			pos.Quantity = newQty
			if newQty == 0 {
				pos.AvgEntryPrice = 0
			}
		} else {
			// Reversal: the fill's remainder beyond flattening opens a new
			// position in the opposite direction at the fill price.
			pos.Quantity = newQty
			pos.AvgEntryPrice = f.ExecutionPrice
			pos.OpenedTS = f.Timestamp
		}
		return nil
	}

	newQty := pos.Quantity + signedQty
	if pos.Quantity == 0 {
		pos.AvgEntryPrice = f.ExecutionPrice
		pos.OpenedTS = f.Timestamp
	} else {
		pos.AvgEntryPrice = (pos.AvgEntryPrice*math.Abs(pos.Quantity) + f.ExecutionPrice*math.Abs(signedQty)) / math.Abs(newQty)
	}
	pos.Quantity = newQty
	return nil
}

// UpdateFromBar marks the position in b.Symbol to market and recomputes its
// unrealized P&L. No-op for symbols with no open position.
func (p *Portfolio) UpdateFromBar(b bar.Bar) {
	pos, ok := p.positions[b.Symbol]
	if !ok {
		return
	}
	pos.LastPrice = b.Close
	if pos.Quantity == 0 {
		pos.UnrealizedPnL = 0
		return
	}
	pos.UnrealizedPnL = sign(pos.Quantity) * (b.Close - pos.AvgEntryPrice) * math.Abs(pos.Quantity)
}

// GetPosition returns the current position in symbol, or the zero value if
// none exists.
func (p *Portfolio) GetPosition(symbol string) Position {
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{Symbol: symbol}
	}
	return pos.clone()
}

// OpenPositionsCount returns the number of symbols currently holding a
// non-zero position.
func (p *Portfolio) OpenPositionsCount() int {
	n := 0
	for _, pos := range p.positions {
		if pos.Quantity != 0 {
			n++
		}
	}
	return n
}

// Cash returns current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// RealizedPnL returns cumulative realized P&L across the run so far.
func (p *Portfolio) RealizedPnL() float64 { return p.realizedPnL }

// DailyPnLHistory returns a copy of the frozen per-day realized P&L series,
// keyed by "2006-01-02".
func (p *Portfolio) DailyPnLHistory() map[string]float64 {
	out := make(map[string]float64, len(p.dailyPnLHistory))
	for k, v := range p.dailyPnLHistory {
		out[k] = v
	}
	return out
}

// DailyReturnHistory returns a copy of the frozen per-day return series.
func (p *Portfolio) DailyReturnHistory() map[string]float64 {
	out := make(map[string]float64, len(p.dailyReturnHistory))
	for k, v := range p.dailyReturnHistory {
		out[k] = v
	}
	return out
}

// CreateSnapshot deep-copies current state into an immutable Snapshot.
func (p *Portfolio) CreateSnapshot(ts time.Time) Snapshot {
	positions := make(map[string]Position, len(p.positions))
	var unrealized float64
	for sym, pos := range p.positions {
		positions[sym] = pos.clone()
		unrealized += pos.UnrealizedPnL
	}
	var dailyReturn float64
	if p.dailyStartingEquity != 0 {
		dailyReturn = p.dailyPnL / p.dailyStartingEquity
	}
	return Snapshot{
		Timestamp:      ts,
		Cash:           p.cash,
		Positions:      positions,
		UnrealizedPnL:  unrealized,
		RealizedPnL:    p.realizedPnL,
		PositionsValue: p.PositionsValue(),
		DailyPnL:       p.dailyPnL,
		DailyReturn:    dailyReturn,
	}
}

// SquareOffEOD closes the open position in b.Symbol at b's close price
// (positions in other symbols are left as they are), charging no
// commission (matching the original system's end-of-day convention), and
// returns a synthetic Fill for the closed position for auditability. Unlike the
// reference implementation this system was distilled from, these fills are
// recorded rather than silently discarded, so the fill stream fully
// accounts for every change in position.
func (p *Portfolio) SquareOffEOD(b bar.Bar) ([]*order.Fill, error) {
	pos, ok := p.positions[b.Symbol]
	if !ok || pos.Quantity == 0 {
		return nil, nil
	}

	side := signal.SideSell
	if pos.Quantity < 0 {
		side = signal.SideBuy
	}
	fill := &order.Fill{
		OrderID:                   fmt.Sprintf("eod-square-off-%s-%s", b.Symbol, b.Timestamp.Format("20060102")),
		Symbol:                    b.Symbol,
		Side:                      side,
		Quantity:                  math.Abs(pos.Quantity),
		ExecutionPrice:            b.Close,
		ExecutionPricePreSlippage: b.Close,
		Commission:                0,
		Timestamp:                 b.Timestamp,
		Metadata:                  map[string]any{"eod_square_off": true},
	}
	fill.FillID = fill.OrderID + "-fill-1"

	if err := p.ApplyFill(fill); err != nil {
		return nil, fmt.Errorf("portfolio: eod square-off failed for %s: %w", b.Symbol, err)
	}
	return []*order.Fill{fill}, nil
}

// Reset clears all state back to a fresh portfolio with the given cash.
func (p *Portfolio) Reset(initialCash float64) {
	p.cash = initialCash
	p.positions = make(map[string]*Position)
	p.realizedPnL = 0
	p.currentDay = ""
	p.dailyPnL = 0
	p.dailyStartingEquity = 0
	p.previousDayEquity = 0
	p.dailyPnLHistory = make(map[string]float64)
	p.dailyReturnHistory = make(map[string]float64)
}
