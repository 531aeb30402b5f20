// Package signalqueue buffers Strategy-emitted signals in timestamp order
// and suppresses near-duplicate (symbol, side) signals within a configured
// time window.
package signalqueue

import (
	"sort"
	"time"

	"daybacktest/internal/signal"
)

// Queue is a timestamp-ordered signal buffer with windowed deduplication.
// Not safe for concurrent use.
type Queue struct {
	dedupeWindow time.Duration
	pending      []signal.Signal
	recent       []recentEntry
}

type recentEntry struct {
	symbol string
	side   signal.Side
	ts     time.Time
}

// New builds a Queue that suppresses duplicate (symbol, side) signals
// within +/- dedupeWindow of a prior signal.
func New(dedupeWindow time.Duration) *Queue {
	return &Queue{dedupeWindow: dedupeWindow}
}

// Add inserts sig in timestamp order (ties broken by insertion order),
// unless it is a duplicate of a recently seen (symbol, side) pair, in which
// case it is silently dropped and Add returns false.
func (q *Queue) Add(sig signal.Signal) bool {
	if q.isDuplicate(sig) {
		return false
	}
	q.recent = append(q.recent, recentEntry{sig.Symbol, sig.Side, sig.Timestamp})

	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].Timestamp.After(sig.Timestamp)
	})
	q.pending = append(q.pending, signal.Signal{})
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = sig
	return true
}

func (q *Queue) isDuplicate(sig signal.Signal) bool {
	for _, r := range q.recent {
		if r.symbol != sig.Symbol || r.side != sig.Side {
			continue
		}
		diff := sig.Timestamp.Sub(r.ts)
		if diff < 0 {
			diff = -diff
		}
		if diff <= q.dedupeWindow {
			return true
		}
	}
	return false
}

// Drain removes and returns, in timestamp order, every pending signal with
// Timestamp <= asOf. Also prunes dedup-tracking entries older than
// dedupeWindow relative to asOf, so the dedup set does not grow unbounded
// across a long run.
func (q *Queue) Drain(asOf time.Time) []signal.Signal {
	i := 0
	for i < len(q.pending) && !q.pending[i].Timestamp.After(asOf) {
		i++
	}
	out := append([]signal.Signal(nil), q.pending[:i]...)
	q.pending = q.pending[i:]

	cutoff := asOf.Add(-q.dedupeWindow)
	kept := q.recent[:0]
	for _, r := range q.recent {
		if r.ts.After(cutoff) {
			kept = append(kept, r)
		}
	}
	q.recent = kept

	return out
}

// Len returns the number of signals currently pending.
func (q *Queue) Len() int { return len(q.pending) }
