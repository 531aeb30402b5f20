package engine

import (
	"context"
	"fmt"

	"daybacktest/internal/bar"
	"daybacktest/internal/execution"
	"daybacktest/internal/order"
	"daybacktest/internal/portfolio"
	"daybacktest/internal/risk"
	"daybacktest/internal/signal"
)

// processBar runs one bar through the full per-bar sequence: strategy
// signals, queue drain, sizing/admission, order submission, fill
// processing, bracket (stop-loss/take-profit) monitoring. Accumulates
// trade P&L into the caller's running slice and commission into its
// running total.
func (e *Engine) processBar(ctx context.Context, b bar.Bar, tradePnLs *[]float64, totalCommission *float64) error {
	e.lastBarFills = nil

	for _, s := range e.cfg.Strategy.OnBar(b) {
		e.queue.Add(s)
	}

	for _, sig := range e.queue.Drain(b.Timestamp) {
		if err := e.submitFromSignal(ctx, sig, b); err != nil {
			return err
		}
	}

	fills := e.book.ProcessBar(b)
	for _, f := range fills {
		if err := e.applyAndRecord(ctx, f, tradePnLs, totalCommission); err != nil {
			return err
		}
		if ord, ok := e.book.Get(f.OrderID); ok && (ord.StopLoss > 0 || ord.TakeProfit > 0) {
			e.brackets[f.Symbol] = [2]float64{ord.StopLoss, ord.TakeProfit}
		}
	}

	if err := e.checkBrackets(ctx, b, tradePnLs, totalCommission); err != nil {
		return err
	}

	return nil
}

func (e *Engine) submitFromSignal(ctx context.Context, sig signal.Signal, b bar.Bar) error {
	pos := e.portfolio.GetPosition(sig.Symbol)
	isNewSymbol := pos.Quantity == 0

	// A strategy can carry its own volatility estimate via Signal.Metadata;
	// absent that, the engine estimates annualized volatility from its
	// trailing bar window, so method == volatility sizes signals from any
	// strategy rather than only ones that compute their own indicator.
	volatility := risk.Volatility(e.barHistory)
	if v, ok := sig.Metadata["volatility"].(float64); ok {
		volatility = v
	}

	size := sig.Size
	if size <= 0 {
		var err error
		size, err = e.cfg.Sizer.Size(e.portfolio.Equity(), b.Close, volatility)
		if err != nil {
			return fmt.Errorf("engine: sizing signal for %s: %w", sig.Symbol, err)
		}
	}

	openPositions := e.openPositionCount()
	existingNotional := existingNotionalFor(pos)
	admittedSize, violation := e.cfg.Sizer.Admit(sig, size, b.Close, e.portfolio.Equity(), openPositions, isNewSymbol, existingNotional)
	if violation != nil {
		e.cfg.Recorder.Rejection(ctx, string(violation.Code), violation.Symbol, violation.Message)
	}
	if admittedSize <= 0 {
		return nil
	}

	ord := &order.Order{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Type:       order.TypeMarket,
		Quantity:   admittedSize,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	if _, err := e.book.Submit(ord, b.Timestamp); err != nil {
		return fmt.Errorf("engine: submitting order for %s: %w", sig.Symbol, err)
	}
	return nil
}

func (e *Engine) applyAndRecord(ctx context.Context, f *order.Fill, tradePnLs *[]float64, totalCommission *float64) error {
	before := e.portfolio.RealizedPnL()
	if err := e.portfolio.ApplyFill(f); err != nil {
		return &Fault{Timestamp: f.Timestamp, OrderID: f.OrderID, Reason: err.Error()}
	}
	after := e.portfolio.RealizedPnL()
	if after != before {
		*tradePnLs = append(*tradePnLs, after-before)
	}
	*totalCommission += f.Commission

	e.cfg.Strategy.OnFill(*f)
	e.cfg.Recorder.Fill(ctx, f.Symbol, f.OrderID, f.Quantity, f.ExecutionPrice, f.Commission)
	e.lastBarFills = append(e.lastBarFills, f)

	if e.portfolio.GetPosition(f.Symbol).Quantity == 0 {
		delete(e.brackets, f.Symbol)
	}
	return nil
}

// checkBrackets closes any position whose recorded stop-loss or
// take-profit level is touched by b's range, resolving same-bar ties with
// execution.ResolveTPSLTie and recording the tie in the resulting fill's
// metadata rather than treating it as an error.
func (e *Engine) checkBrackets(ctx context.Context, b bar.Bar, tradePnLs *[]float64, totalCommission *float64) error {
	levels, ok := e.brackets[b.Symbol]
	if !ok {
		return nil
	}
	pos := e.portfolio.GetPosition(b.Symbol)
	if pos.Quantity == 0 {
		delete(e.brackets, b.Symbol)
		return nil
	}
	stopLoss, takeProfit := levels[0], levels[1]
	side := pos.Side()

	slHit := execution.CheckStopLossHit(side, stopLoss, b)
	tpHit := execution.CheckTakeProfitHit(side, takeProfit, b)
	if !slHit && !tpHit {
		return nil
	}

	price := stopLoss
	tie := false
	metaReason := "stop_loss"
	if slHit && tpHit {
		tie = true
		if execution.ResolveTPSLTie(side, b) == execution.HitTakeProfit {
			price = takeProfit
			metaReason = "take_profit"
		}
	} else if tpHit {
		price = takeProfit
		metaReason = "take_profit"
	}

	f := e.closeBracketFill(b.Symbol, oppositeSide(side), pos.Quantity, price, b, metaReason, tie)
	if err := e.applyAndRecord(ctx, f, tradePnLs, totalCommission); err != nil {
		return err
	}
	delete(e.brackets, b.Symbol)
	return nil
}

func (e *Engine) closeBracketFill(symbol string, side signal.Side, positionQty, price float64, b bar.Bar, reason string, tie bool) *order.Fill {
	qty := positionQty
	if qty < 0 {
		qty = -qty
	}
	e.tieCounter++
	commission := e.cfg.ExecutionModel.CommissionBps / 10000.0 * qty * price
	return &order.Fill{
		OrderID:                   fmt.Sprintf("bracket-%s-%d", symbol, e.tieCounter),
		FillID:                    fmt.Sprintf("bracket-%s-%d-fill-1", symbol, e.tieCounter),
		Symbol:                    symbol,
		Side:                      side,
		Quantity:                  qty,
		ExecutionPrice:            price,
		ExecutionPricePreSlippage: price,
		Commission:                commission,
		Timestamp:                 b.Timestamp,
		Metadata:                  map[string]any{"bracket_exit": reason, "tp_sl_tie": tie},
	}
}

func (e *Engine) openPositionCount() int {
	return e.portfolio.OpenPositionsCount()
}

func existingNotionalFor(pos portfolio.Position) float64 {
	return risk.ExistingNotional(pos)
}
