// Package order defines the order and fill lifecycle types shared by the
// execution model, order book, and portfolio.
package order

import (
	"fmt"
	"time"

	"daybacktest/internal/signal"
)

type Type string

const (
	TypeMarket    Type = "market"
	TypeLimit     Type = "limit"
	TypeStop      Type = "stop"
	TypeStopLimit Type = "stop_limit"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeStop, TypeStopLimit:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusPartial   Status = "partial"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the status is one the order can never leave.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Order is a single working (or completed) order in the book.
type Order struct {
	ID           string
	Symbol       string
	Side         signal.Side
	Type         Type
	Quantity     float64
	LimitPrice   float64
	StopPrice    float64
	StopLoss     float64
	TakeProfit   float64
	Status       Status
	SubmittedTS  time.Time
	FilledQty    float64
	AvgFillPrice float64
	Metadata     map[string]any
}

// RemainingQuantity is the quantity still unfilled on this order.
func (o *Order) RemainingQuantity() float64 {
	return o.Quantity - o.FilledQty
}

// IsActive reports whether the order can still receive fills.
func (o *Order) IsActive() bool {
	return !o.Status.Terminal()
}

// Validate checks the order is internally consistent before submission.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("order: symbol must not be empty")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order: invalid side %q", o.Side)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("order: invalid type %q", o.Type)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be positive, got %v", o.Quantity)
	}
	if (o.Type == TypeLimit || o.Type == TypeStopLimit) && o.LimitPrice <= 0 {
		return fmt.Errorf("order: %s order requires positive limit price", o.Type)
	}
	if (o.Type == TypeStop || o.Type == TypeStopLimit) && o.StopPrice <= 0 {
		return fmt.Errorf("order: %s order requires positive stop price", o.Type)
	}
	return nil
}

// Fill is an immutable record of an order's execution against a bar.
type Fill struct {
	FillID                    string
	OrderID                   string
	Symbol                    string
	Side                      signal.Side
	Quantity                  float64
	ExecutionPrice            float64
	ExecutionPricePreSlippage float64
	Commission                float64
	// SlippageBps is the configured slippage rate applied to this fill (0
	// for synthetic fills, e.g. bracket exits and EOD square-offs, which
	// skip the slippage model entirely).
	SlippageBps float64
	// RealizedPnL is the realized P&L this fill produced by closing
	// existing exposure; zero for fills that only open or extend a
	// position.
	RealizedPnL float64
	Timestamp   time.Time
	Metadata    map[string]any
}

// GrossValue is quantity * execution price, before commission.
func (f *Fill) GrossValue() float64 {
	return f.Quantity * f.ExecutionPrice
}

// NetValue is GrossValue adjusted by commission: cash impact is -NetValue
// for a buy and +NetValue for a sell.
func (f *Fill) NetValue() float64 {
	if f.Side == signal.SideBuy {
		return f.GrossValue() + f.Commission
	}
	return f.GrossValue() - f.Commission
}
