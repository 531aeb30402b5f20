// Package metrics computes the standard backtest performance report:
// return, risk, and trade statistics derived from a daily return series,
// an equity curve, and the realized P&L of individual closing fills.
package metrics

import (
	"math"
	"sort"
	"time"
)

const tradingDaysPerYear = 252

// Report is the full set of computed performance statistics.
type Report struct {
	TotalReturn float64
	CAGR        float64
	Volatility  float64
	Sharpe      float64
	Sortino     float64
	Calmar      float64

	MaxDrawdown         float64
	MaxDrawdownDuration int // in daily-return-series steps

	VaR95  float64
	CVaR95 float64

	WinRate         float64
	ProfitFactor    float64
	AvgWin          float64
	AvgLoss         float64
	Expectancy      float64
	TotalCommission float64
	NumTrades       int
	NumWins         int
	NumLosses       int

	TotalPnL       float64
	InitialCapital float64
	FinalValue     float64
	StartDate      time.Time
	EndDate        time.Time
}

// Config parameterizes the report: the annual risk-free rate used to
// compute excess-return ratios. Calculate applies no default, so a zero
// value means no risk-free adjustment.
type Config struct {
	RiskFreeRate float64
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func downsideDeviation(xs []float64) float64 {
	var sumSq float64
	var n int
	for _, x := range xs {
		if x < 0 {
			sumSq += x * x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// Calculate computes a full Report. dailyReturns and equityCurve must be
// aligned by index (equityCurve has one more entry than dailyReturns: the
// starting equity). tradePnLs is the realized P&L of each closing fill,
// used for the win-rate/profit-factor/expectancy trade statistics.
// initialCapital, startTime, and endTime are carried through verbatim for
// the report's capital and period fields.
func Calculate(cfg Config, dailyReturns []float64, equityCurve []float64, tradePnLs []float64, totalCommission float64, initialCapital float64, startTime, endTime time.Time) Report {
	var r Report
	r.TotalCommission = totalCommission
	r.NumTrades = len(tradePnLs)
	r.InitialCapital = initialCapital
	r.StartDate = startTime
	r.EndDate = endTime
	r.FinalValue = initialCapital
	if len(equityCurve) > 0 {
		r.FinalValue = equityCurve[len(equityCurve)-1]
	}
	r.TotalPnL = r.FinalValue - initialCapital

	if len(equityCurve) >= 2 && equityCurve[0] != 0 {
		r.TotalReturn = equityCurve[len(equityCurve)-1]/equityCurve[0] - 1
		if len(dailyReturns) > 0 {
			years := float64(len(dailyReturns)) / tradingDaysPerYear
			if years > 0 {
				base := equityCurve[len(equityCurve)-1] / equityCurve[0]
				if base > 0 {
					r.CAGR = math.Pow(base, 1/years) - 1
				}
			}
		}
	}

	r.Volatility = stddev(dailyReturns) * math.Sqrt(tradingDaysPerYear)

	dailyRf := cfg.RiskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(dailyReturns))
	for i, ret := range dailyReturns {
		excess[i] = ret - dailyRf
	}
	if sd := stddev(dailyReturns); sd > 0 {
		r.Sharpe = mean(excess) / sd * math.Sqrt(tradingDaysPerYear)
	}
	if dd := downsideDeviation(dailyReturns); dd > 0 {
		r.Sortino = mean(excess) / dd * math.Sqrt(tradingDaysPerYear)
	}

	r.MaxDrawdown, r.MaxDrawdownDuration = maxDrawdown(equityCurve)
	if r.MaxDrawdown != 0 {
		r.Calmar = r.CAGR / math.Abs(r.MaxDrawdown)
	}

	r.VaR95, r.CVaR95 = valueAtRisk(dailyReturns, 0.95)

	r.WinRate, r.ProfitFactor, r.AvgWin, r.AvgLoss, r.Expectancy, r.NumWins, r.NumLosses = tradeStats(tradePnLs)

	return r
}

// maxDrawdown returns the largest peak-to-trough decline (a negative
// fraction, or zero if equity never declined) and the number of steps from
// the running peak to the trough that produced it.
func maxDrawdown(equityCurve []float64) (float64, int) {
	if len(equityCurve) == 0 {
		return 0, 0
	}
	peak := equityCurve[0]
	peakIdx := 0
	worst := 0.0
	worstDuration := 0
	for i, v := range equityCurve {
		if v > peak {
			peak = v
			peakIdx = i
		}
		if peak == 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < worst {
			worst = dd
			worstDuration = i - peakIdx
		}
	}
	return worst, worstDuration
}

// valueAtRisk returns the (confidence)-level VaR and CVaR of a return
// series using linear-interpolated percentiles. Both are returned as
// negative numbers representing a loss.
func valueAtRisk(returns []float64, confidence float64) (float64, float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	pct := 1 - confidence
	pos := pct * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	var varValue float64
	if lo == hi {
		varValue = sorted[lo]
	} else {
		frac := pos - float64(lo)
		varValue = sorted[lo]*(1-frac) + sorted[hi]*frac
	}

	var tailSum float64
	var tailN int
	for _, v := range sorted {
		if v <= varValue {
			tailSum += v
			tailN++
		}
	}
	cvar := varValue
	if tailN > 0 {
		cvar = tailSum / float64(tailN)
	}
	return varValue, cvar
}

func tradeStats(pnls []float64) (winRate, profitFactor, avgWin, avgLoss, expectancy float64, numWins, numLosses int) {
	if len(pnls) == 0 {
		return 0, 0, 0, 0, 0, 0, 0
	}
	var wins, losses []float64
	for _, p := range pnls {
		if p > 0 {
			wins = append(wins, p)
		} else if p < 0 {
			losses = append(losses, p)
		}
	}
	winRate = float64(len(wins)) / float64(len(pnls))
	avgWin = mean(wins)
	avgLoss = mean(losses)
	numWins = len(wins)
	numLosses = len(losses)

	var grossWin, grossLoss float64
	for _, w := range wins {
		grossWin += w
	}
	for _, l := range losses {
		grossLoss += l
	}
	if grossLoss != 0 {
		profitFactor = grossWin / math.Abs(grossLoss)
	}

	expectancy = winRate*avgWin + (1-winRate)*avgLoss
	return
}
