// Package orderbook tracks working and completed orders for a single
// symbol, generates deterministic order IDs, and drives per-bar fill
// simulation through an execution.Model.
package orderbook

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/execution"
	"daybacktest/internal/order"

	"github.com/google/uuid"
)

// OrderBook owns the active/completed order sets and the fill history for
// one symbol. Not safe for concurrent use: the engine is single-threaded
// and owns exactly one OrderBook per run.
type OrderBook struct {
	model   execution.Model
	entropy io.Reader

	counter   uint64
	active    map[string]*order.Order
	completed map[string]*order.Order
	all       []*order.Order
	fills     []*order.Fill
	fillSeq   map[string]int
}

// New builds an OrderBook. rng supplies the entropy for the cosmetic,
// human-readable suffix of generated order IDs; pass an explicitly seeded
// *rand.Rand (never the global math/rand state) so runs stay reproducible
// given the same seed.
func New(model execution.Model, rng *rand.Rand) *OrderBook {
	return &OrderBook{
		model:     model,
		entropy:   rng,
		active:    make(map[string]*order.Order),
		completed: make(map[string]*order.Order),
		fillSeq:   make(map[string]int),
	}
}

// nextID returns a deterministic, monotonically increasing order ID. The
// counter is the sole source of ordering and uniqueness: it is zero-padded
// and placed right after the symbol, so for one symbol the ids sort
// lexically in submission order. The uuid-derived suffix exists only so
// ids remain easy to tell apart by eye in logs.
func (b *OrderBook) nextID(symbol string, side string, ts time.Time) string {
	b.counter++
	suffix := "00000000"
	if id, err := uuid.NewRandomFromReader(b.entropy); err == nil {
		suffix = hex.EncodeToString(id[:4])
	}
	return fmt.Sprintf("%s-%09d-%s-%s-%s", symbol, b.counter, side, ts.Format("20060102T150405"), suffix)
}

// Submit validates and admits ord into the active set, assigning it an ID
// and a submitted timestamp. Returns the assigned ID.
func (b *OrderBook) Submit(ord *order.Order, submittedTS time.Time) (string, error) {
	if err := ord.Validate(); err != nil {
		return "", err
	}
	ord.Status = order.StatusSubmitted
	ord.SubmittedTS = submittedTS
	ord.ID = b.nextID(ord.Symbol, string(ord.Side), submittedTS)
	b.active[ord.ID] = ord
	b.all = append(b.all, ord)
	return ord.ID, nil
}

// Cancel moves an active order to completed with StatusCancelled. Returns
// an error if the order is unknown or already terminal.
func (b *OrderBook) Cancel(id string) error {
	ord, ok := b.active[id]
	if !ok {
		return fmt.Errorf("orderbook: cannot cancel unknown or inactive order %q", id)
	}
	ord.Status = order.StatusCancelled
	delete(b.active, id)
	b.completed[id] = ord
	return nil
}

// ProcessBar exposes every active order to b, producing fills in
// deterministic ascending (submitted_ts, order_id) order, and returns the
// fills generated this bar.
func (b *OrderBook) ProcessBar(bk bar.Bar) []*order.Fill {
	ids := make([]string, 0, len(b.active))
	for id := range b.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := b.active[ids[i]], b.active[ids[j]]
		if !oi.SubmittedTS.Equal(oj.SubmittedTS) {
			return oi.SubmittedTS.Before(oj.SubmittedTS)
		}
		return oi.ID < oj.ID
	})

	var produced []*order.Fill
	for _, id := range ids {
		ord := b.active[id]
		if ord.Symbol != bk.Symbol {
			continue
		}
		fill, ok := b.model.TryFill(ord, bk)
		if !ok {
			continue
		}
		b.applyFill(ord, fill)
		produced = append(produced, fill)
	}
	return produced
}

func (b *OrderBook) applyFill(ord *order.Order, fill *order.Fill) {
	b.fillSeq[ord.ID]++
	fill.FillID = fmt.Sprintf("%s-fill-%d", ord.ID, b.fillSeq[ord.ID])

	prevQty := ord.FilledQty
	newQty := prevQty + fill.Quantity
	if prevQty == 0 {
		ord.AvgFillPrice = fill.ExecutionPrice
	} else {
		ord.AvgFillPrice = (ord.AvgFillPrice*prevQty + fill.ExecutionPrice*fill.Quantity) / newQty
	}
	ord.FilledQty = newQty

	if ord.RemainingQuantity() <= 1e-9 {
		ord.Status = order.StatusFilled
		delete(b.active, ord.ID)
		b.completed[ord.ID] = ord
	} else {
		ord.Status = order.StatusPartial
	}

	b.fills = append(b.fills, fill)
}

// Get returns an order by ID, active or completed.
func (b *OrderBook) Get(id string) (*order.Order, bool) {
	if o, ok := b.active[id]; ok {
		return o, true
	}
	o, ok := b.completed[id]
	return o, ok
}

// GetActive returns all currently active orders in submission order.
func (b *OrderBook) GetActive() []*order.Order {
	var out []*order.Order
	for _, o := range b.all {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out
}

// GetFills returns every fill produced so far, in production order.
func (b *OrderBook) GetFills() []*order.Fill {
	return append([]*order.Fill(nil), b.fills...)
}
