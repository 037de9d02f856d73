package kernel

import "container/heap"

// wakeup is a pending resumption of a process at a virtual time.
type wakeup struct {
	at  int64
	seq uint64
	h   *handle
}

// eventHeap implements a priority queue with deterministic ordering.
// Ordering: wake time → scheduling sequence.
type eventHeap struct {
	events []*wakeup
}

func newEventHeap() *eventHeap {
	h := &eventHeap{
		events: make([]*wakeup, 0),
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *eventHeap) Len() int {
	return len(h.events)
}

// Less implements heap.Interface with deterministic ordering.
// Wakeups at the same instant run in the order they were scheduled.
func (h *eventHeap) Less(i, j int) bool {
	ei, ej := h.events[i], h.events[j]
	if ei.at != ej.at {
		return ei.at < ej.at
	}
	return ei.seq < ej.seq
}

// Swap implements heap.Interface
func (h *eventHeap) Swap(i, j int) {
	h.events[i], h.events[j] = h.events[j], h.events[i]
}

// Push implements heap.Interface
func (h *eventHeap) Push(x interface{}) {
	h.events = append(h.events, x.(*wakeup))
}

// Pop implements heap.Interface
func (h *eventHeap) Pop() interface{} {
	old := h.events
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.events = old[0 : n-1]
	return item
}

func (h *eventHeap) schedule(w *wakeup) {
	heap.Push(h, w)
}

func (h *eventHeap) popNext() *wakeup {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*wakeup)
}

func (h *eventHeap) peek() *wakeup {
	if h.Len() == 0 {
		return nil
	}
	return h.events[0]
}
