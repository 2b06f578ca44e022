package triage

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/ldsn-cm/ldsn/core/faults"
	"github.com/ldsn-cm/ldsn/core/model"
)

// Queue is a min-priority structure over alerts: P1 first, ties broken by
// earliest creation time, then by descending mortality. Push, Pop and Peek
// are O(log n); per-level counts are maintained incrementally. All methods
// are safe for concurrent use.
type Queue struct {
	mu       sync.RWMutex
	items    alertHeap
	seq      uint64
	perLevel map[model.PriorityLevel]int
}

type queueItem struct {
	alert model.Alert
	seq   uint64
}

type alertHeap []queueItem

func (h alertHeap) Len() int { return len(h) }

func (h alertHeap) Less(i, j int) bool {
	a, b := h[i].alert, h[j].alert
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Mortality != b.Mortality {
		return a.Mortality > b.Mortality
	}
	return h[i].seq < h[j].seq
}

func (h alertHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *alertHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *alertHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]
	return it
}

// NewQueue returns an empty triage queue.
func NewQueue() *Queue {
	return &Queue{perLevel: map[model.PriorityLevel]int{}}
}

// Push adds an alert in O(log n).
func (q *Queue) Push(a model.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, queueItem{alert: a, seq: q.seq})
	q.seq++
	q.perLevel[a.Priority]++
}

// Pop removes and returns the most urgent alert. Popping an empty queue is
// a caller error surfaced as faults.ErrEmptyQueue.
func (q *Queue) Pop() (model.Alert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Alert{}, faults.ErrEmptyQueue
	}
	it := heap.Pop(&q.items).(queueItem)
	q.perLevel[it.alert.Priority]--
	return it.alert, nil
}

// Peek returns the most urgent alert without removing it.
func (q *Queue) Peek() (model.Alert, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.items) == 0 {
		return model.Alert{}, faults.ErrEmptyQueue
	}
	return q.items[0].alert, nil
}

// CountAtLevel returns the number of pending alerts at the given level
// in O(1).
func (q *Queue) CountAtLevel(level model.PriorityLevel) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.perLevel[level]
}

// Len returns the number of pending alerts.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Pending returns a snapshot of all queued alerts in triage order without
// draining the queue. Optionally filtered to one priority level and capped
// at limit (0 means no cap).
func (q *Queue) Pending(level model.PriorityLevel, limit int) []model.Alert {
	q.mu.RLock()
	snapshot := make([]queueItem, len(q.items))
	copy(snapshot, q.items)
	q.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		h := alertHeap(snapshot)
		return h.Less(i, j)
	})
	out := make([]model.Alert, 0, len(snapshot))
	for _, it := range snapshot {
		if level != 0 && it.alert.Priority != level {
			continue
		}
		out = append(out, it.alert)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
