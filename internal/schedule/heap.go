package schedule

import "container/heap"

// handleHeap is a min-heap of *Handle ordered by NextDeadline ascending.
// spec.md §9 calls out that the upstream source fakes a min-heap atop a
// max-heap with an inverted comparator; container/heap's native min-heap
// makes that inversion unnecessary — a representation change, not a
// semantic one.
type handleHeap []*Handle

func (h handleHeap) Len() int { return len(h) }
func (h handleHeap) Less(i, j int) bool {
	return h[i].NextDeadline < h[j].NextDeadline
}
func (h handleHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *handleHeap) Push(x any) {
	*h = append(*h, x.(*Handle))
}

func (h *handleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// queue wraps handleHeap with the heap.Interface boilerplate hidden, so
// callers only ever see Handle values.
type queue struct {
	h handleHeap
}

func newQueue() *queue {
	q := &queue{}
	heap.Init(&q.h)
	return q
}

func (q *queue) Len() int { return q.h.Len() }

func (q *queue) push(handle *Handle) {
	heap.Push(&q.h, handle)
}

// peek returns the earliest-deadline handle without removing it.
func (q *queue) peek() (*Handle, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// pop removes and returns the earliest-deadline handle.
func (q *queue) pop() (*Handle, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Handle), true
}

// all returns every handle currently queued, in arbitrary order (used only
// for snapshotting; scheduling always goes through peek/pop).
func (q *queue) all() []*Handle {
	out := make([]*Handle, len(q.h))
	copy(out, q.h)
	return out
}
