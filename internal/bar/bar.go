// Package bar defines the OHLCV bar type and the single-symbol bar stream
// abstraction the engine consumes one event at a time.
package bar

import (
	"fmt"
	"time"
)

// Bar is one OHLCV observation for a single symbol at a single timestamp.
// Timestamp must be non-decreasing across a stream; the engine aborts the
// run if it sees a bar that moves backward in time.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// New builds a Bar, normalizing OHLC so that
// low <= min(open, close) <= max(open, close) <= high always holds.
// A price-only bar (high == 0 && low == 0 && open == 0, close carrying the
// observed price) is expanded into a degenerate flat bar.
func New(symbol string, ts time.Time, open, high, low, close, volume float64) (Bar, error) {
	if symbol == "" {
		return Bar{}, fmt.Errorf("bar: symbol must not be empty")
	}
	if ts.IsZero() {
		return Bar{}, fmt.Errorf("bar: timestamp must not be zero")
	}
	if volume < 0 {
		return Bar{}, fmt.Errorf("bar: volume must be non-negative, got %v", volume)
	}

	if open == 0 && high == 0 && low == 0 && close != 0 {
		open, high, low = close, close, close
	}

	lo := min(open, close)
	hi := max(open, close)
	if low > lo {
		low = lo
	}
	if high < hi {
		high = hi
	}

	return Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}, nil
}

// FromPrice builds a flat, zero-volume bar from a single observed price.
// Used when a data source only carries last-trade prices, not full OHLCV.
func FromPrice(symbol string, ts time.Time, price float64) (Bar, error) {
	return New(symbol, ts, price, price, price, price, 0)
}

// Stream yields bars for a single symbol in non-decreasing timestamp order.
// Next returns (Bar{}, false, nil) once exhausted.
type Stream interface {
	Next() (Bar, bool, error)
}

// SliceStream is an in-memory Stream backed by a pre-sorted slice, the
// reference implementation used by tests and simple CLI runs.
type SliceStream struct {
	bars []Bar
	pos  int
}

// NewSliceStream validates that bars are already in non-decreasing
// timestamp order and wraps them as a Stream.
func NewSliceStream(bars []Bar) (*SliceStream, error) {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("bar: stream not time-ordered at index %d (%s before %s)",
				i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	return &SliceStream{bars: bars}, nil
}

func (s *SliceStream) Next() (Bar, bool, error) {
	if s.pos >= len(s.bars) {
		return Bar{}, false, nil
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true, nil
}
