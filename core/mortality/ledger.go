// Package mortality tracks daily livestock mortality over a fixed calendar
// horizon and answers range-sum queries in O(log H).
package mortality

import (
	"fmt"
	"sync"

	"github.com/ldsn-cm/ldsn/core/faults"
)

// DefaultHorizon covers a full year including the leap day.
const DefaultHorizon = 366

// Ledger is a segment tree over [0, horizon) days. Deltas are accumulated
// per day and never removed. All methods are safe for concurrent use; the
// lock is held per operation, never across a pipeline.
type Ledger struct {
	mu      sync.RWMutex
	horizon int
	tree    []int64
}

// NewLedger creates a ledger over the given number of days. A non-positive
// horizon falls back to DefaultHorizon.
func NewLedger(horizon int) *Ledger {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Ledger{horizon: horizon, tree: make([]int64, 4*horizon)}
}

// Horizon returns the number of tracked days.
func (l *Ledger) Horizon() int { return l.horizon }

// Record adds count deaths to the given day in O(log H). The day must be in
// [0, horizon) and the count non-negative; otherwise the ledger is left
// untouched and a validation error is returned.
func (l *Ledger) Record(day, count int) error {
	if day < 0 || day >= l.horizon {
		return fmt.Errorf("%w: day %d outside [0, %d)", faults.ErrValidation, day, l.horizon)
	}
	if count < 0 {
		return fmt.Errorf("%w: negative mortality count %d", faults.ErrValidation, count)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(1, 0, l.horizon-1, day, int64(count))
	return nil
}

// RangeTotal returns the sum over [start, end], both bounds inclusive,
// in O(log H).
func (l *Ledger) RangeTotal(start, end int) (int64, error) {
	if start < 0 || end >= l.horizon || start > end {
		return 0, fmt.Errorf("%w: range [%d, %d] outside [0, %d)", faults.ErrValidation, start, end, l.horizon)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.query(1, 0, l.horizon-1, start, end), nil
}

// Day returns the accumulated count for a single day.
func (l *Ledger) Day(day int) (int64, error) {
	return l.RangeTotal(day, day)
}

// Total returns the sum over the whole horizon in O(1): it is the root node.
func (l *Ledger) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree[1]
}

// add descends to the leaf for day and bumps every node on the path.
// Recursion depth is bounded by log2(horizon).
func (l *Ledger) add(node, lo, hi, day int, delta int64) {
	if lo == hi {
		l.tree[node] += delta
		return
	}
	mid := (lo + hi) / 2
	if day <= mid {
		l.add(2*node, lo, mid, day, delta)
	} else {
		l.add(2*node+1, mid+1, hi, day, delta)
	}
	l.tree[node] = l.tree[2*node] + l.tree[2*node+1]
}

func (l *Ledger) query(node, lo, hi, left, right int) int64 {
	if right < lo || hi < left {
		return 0
	}
	if left <= lo && hi <= right {
		return l.tree[node]
	}
	mid := (lo + hi) / 2
	return l.query(2*node, lo, mid, left, right) +
		l.query(2*node+1, mid+1, hi, left, right)
}
