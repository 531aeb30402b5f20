// Package risk sizes incoming signals into orders and gates them against
// portfolio-level exposure limits, mirroring the admission order the
// reference system uses: max positions, then per-position notional clip,
// then leverage clip.
package risk

import (
	"fmt"
	"math"

	"daybacktest/internal/bar"
	"daybacktest/internal/portfolio"
	"daybacktest/internal/signal"
)

// Method selects the position-sizing formula.
type Method string

const (
	MethodFraction   Method = "fraction"
	MethodVolatility Method = "volatility"
	MethodFixed      Method = "fixed"
)

// Config holds the sizing and limit parameters for one run.
type Config struct {
	Method           Method
	RiskFraction     float64 // fraction of equity risked per trade (fraction, volatility methods)
	FixedSize        float64 // method == fixed
	VolatilityTarget float64 // target annualized vol contribution (method == volatility)
	VolLookback      int     // bar window for the engine's annualized-volatility estimate (method == volatility)
	MaxPositionPct   float64 // max notional per position as a fraction of equity
	MaxLeverage      float64 // max gross notional / equity
	MaxPositions     int
	StopLossPct      float64
	TakeProfitPct    float64
	ATRMultiplier    float64
	RiskRewardRatio  float64
}

func (c Config) Validate() error {
	if c.Method != MethodFraction && c.Method != MethodVolatility && c.Method != MethodFixed {
		return fmt.Errorf("risk: unknown sizing method %q", c.Method)
	}
	if c.MaxPositions < 0 {
		return fmt.Errorf("risk: max_positions must be non-negative")
	}
	if c.MaxPositionPct < 0 || c.MaxLeverage < 0 {
		return fmt.Errorf("risk: limit percentages must be non-negative")
	}
	if c.VolLookback < 0 {
		return fmt.Errorf("risk: vol_lookback must be non-negative")
	}
	return nil
}

// ViolationCode classifies why a signal was rejected or clipped.
type ViolationCode string

const (
	ViolationTooManyPositions ViolationCode = "too_many_positions"
	ViolationPositionClipped  ViolationCode = "position_clipped"
	ViolationLeverageClipped  ViolationCode = "leverage_clipped"
	ViolationZeroSize         ViolationCode = "zero_size"
)

// Violation is a non-fatal sizing/admission event: it is always logged, it
// never aborts the run.
type Violation struct {
	Code    ViolationCode
	Symbol  string
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("risk: %s (%s): %s", v.Code, v.Symbol, v.Message)
}

// Sizer turns a Signal into a sized order request, or a Violation
// explaining why none was produced.
type Sizer struct {
	cfg Config
}

// New validates cfg and returns a Sizer.
func New(cfg Config) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg}, nil
}

// VolLookback returns the configured bar window for the volatility
// estimate, defaulting to 20 (the reference system's default) when unset.
func (s *Sizer) VolLookback() int {
	if s.cfg.VolLookback > 0 {
		return s.cfg.VolLookback
	}
	return 20
}

// Size computes a raw position size in shares/units from equity and,
// depending on method, the annualized volatility estimate supplied by the
// caller. volatility is only consulted by method == volatility; the other
// methods ignore it.
//
// quantity = (target_vol * equity) / (price * volatility), capped at
// MaxPositionPct of equity, mirroring the reference sizer's
// size_by_volatility. If volatility is unavailable (<= 0), sizing falls
// back to the fraction method instead of returning zero, matching the
// reference sizer's logged-warning fallback rather than silently dropping
// every signal when no volatility estimate is wired in.
func (s *Sizer) Size(equity, price, volatility float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("risk: price must be positive to size a position")
	}
	switch s.cfg.Method {
	case MethodFixed:
		return s.cfg.FixedSize, nil
	case MethodFraction:
		notional := equity * s.cfg.RiskFraction
		return notional / price, nil
	case MethodVolatility:
		if volatility <= 0 {
			notional := equity * s.cfg.RiskFraction
			return notional / price, nil
		}
		qty := (equity * s.cfg.VolatilityTarget) / (price * volatility)
		if s.cfg.MaxPositionPct > 0 {
			if maxQty := (equity * s.cfg.MaxPositionPct) / price; qty > maxQty {
				qty = maxQty
			}
		}
		return qty, nil
	default:
		return 0, fmt.Errorf("risk: unknown sizing method %q", s.cfg.Method)
	}
}

// Admit applies the max-positions, per-position notional, and leverage
// checks in that order, clipping size as needed. openPositions is the
// number of currently held distinct symbols; existingSameSymbolNotional is
// the notional already committed to sig.Symbol (subtracted from the
// leverage check so a same-symbol replacement isn't double-counted).
func (s *Sizer) Admit(sig signal.Signal, size, price, equity float64, openPositions int, isNewSymbol bool, existingSameSymbolNotional float64) (float64, *Violation) {
	if isNewSymbol && s.cfg.MaxPositions > 0 && openPositions >= s.cfg.MaxPositions {
		return 0, &Violation{Code: ViolationTooManyPositions, Symbol: sig.Symbol,
			Message: fmt.Sprintf("open positions %d >= max %d", openPositions, s.cfg.MaxPositions)}
	}

	notional := size * price
	var violation *Violation

	if s.cfg.MaxPositionPct > 0 {
		cap := equity * s.cfg.MaxPositionPct
		if notional > cap {
			notional = cap
			violation = &Violation{Code: ViolationPositionClipped, Symbol: sig.Symbol,
				Message: fmt.Sprintf("clipped to position cap %.2f", cap)}
		}
	}

	if s.cfg.MaxLeverage > 0 {
		grossCap := equity*s.cfg.MaxLeverage - existingSameSymbolNotional
		if grossCap < 0 {
			grossCap = 0
		}
		if notional > grossCap {
			notional = grossCap
			violation = &Violation{Code: ViolationLeverageClipped, Symbol: sig.Symbol,
				Message: fmt.Sprintf("clipped to leverage cap %.2f", grossCap)}
		}
	}

	clippedSize := notional / price
	if clippedSize <= 0 {
		return 0, &Violation{Code: ViolationZeroSize, Symbol: sig.Symbol, Message: "sizing reduced to zero"}
	}
	return clippedSize, violation
}

// StopLossFor derives a stop-loss price. If atr and ATRMultiplier are both
// set, ATR-based sizing takes precedence over StopLossPct.
func (s *Sizer) StopLossFor(side signal.Side, entry, atr float64) float64 {
	var distance float64
	if atr > 0 && s.cfg.ATRMultiplier > 0 {
		distance = atr * s.cfg.ATRMultiplier
	} else if s.cfg.StopLossPct > 0 {
		distance = entry * s.cfg.StopLossPct
	} else {
		return 0
	}
	if side == signal.SideBuy {
		return entry - distance
	}
	return entry + distance
}

// TakeProfitFor derives a take-profit price. If RiskRewardRatio is set it
// takes precedence, scaling the distance to the stop; otherwise
// TakeProfitPct is used directly.
func (s *Sizer) TakeProfitFor(side signal.Side, entry, stopLoss float64) float64 {
	var distance float64
	if s.cfg.RiskRewardRatio > 0 && stopLoss > 0 {
		distance = math.Abs(entry-stopLoss) * s.cfg.RiskRewardRatio
	} else if s.cfg.TakeProfitPct > 0 {
		distance = entry * s.cfg.TakeProfitPct
	} else {
		return 0
	}
	if side == signal.SideBuy {
		return entry + distance
	}
	return entry - distance
}

// ExistingNotional returns the absolute notional value of a symbol's
// current position, for use as the Admit leverage-check subtraction.
func ExistingNotional(pos portfolio.Position) float64 {
	return math.Abs(pos.Quantity) * pos.LastPrice
}

// ATR computes a simple true-range estimate from a recent bar window,
// useful as the atr input to StopLossFor when no richer indicator
// pipeline is wired in.
func ATR(bars []bar.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		}
		sum += tr
	}
	return sum / float64(len(bars))
}

const tradingDaysPerYear = 252

// Volatility computes the annualized standard deviation of close-to-close
// returns over a recent bar window, the input Size expects for
// method == volatility. Mirrors the reference system's
// calculate_volatility(returns, annualize=True): sample standard deviation
// (n-1 denominator) scaled by sqrt(252). Returns 0 if the window has too
// few bars to produce at least two returns.
func Volatility(bars []bar.Bar) float64 {
	if len(bars) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, bars[i].Close/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	stdev := math.Sqrt(sumSq / float64(len(returns)-1))
	return stdev * math.Sqrt(tradingDaysPerYear)
}
