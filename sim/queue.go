// Implements the StageQueue, which holds passengers waiting for one server instance.
// Passengers are enqueued by the hand-off of the previous stage and dequeued by the
// StageProcess that owns the queue.

package sim

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// StageQueue is a FIFO of passengers waiting for one server instance, plus the
// occupancy flag of that instance's single server.
//
// Len counts passengers that are enqueued but not yet dequeued; the passenger
// currently in service is not part of it. All methods are safe for concurrent use.
type StageQueue struct {
	mu       sync.Mutex
	queue    []*Passenger
	enqueued uint64
	dequeued uint64
	occupied atomic.Bool
}

// Enqueue adds a passenger to the back of the queue and returns the new length.
func (q *StageQueue) Enqueue(p *Passenger) int {
	if p == nil {
		panic("Enqueue: passenger must not be nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, p)
	q.enqueued++
	return len(q.queue)
}

// Dequeue removes the passenger at the front of the queue.
// The boolean is false when the queue is empty.
func (q *StageQueue) Dequeue() (*Passenger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return nil, false
	}
	p := q.queue[0]
	q.queue[0] = nil
	q.queue = q.queue[1:]
	q.dequeued++
	return p, true
}

// Peek returns the passenger at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (q *StageQueue) Peek() *Passenger {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return nil
	}
	return q.queue[0]
}

// Len returns the number of waiting passengers.
func (q *StageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Counts returns how many passengers were ever enqueued and dequeued.
// Len() == enqueued - dequeued at all times.
func (q *StageQueue) Counts() (enqueued, dequeued uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued, q.dequeued
}

// TryOccupy marks the server busy. Returns false if it already was.
func (q *StageQueue) TryOccupy() bool {
	return q.occupied.CompareAndSwap(false, true)
}

// Release marks the server free.
func (q *StageQueue) Release() {
	q.occupied.Store(false)
}

// Occupied reports whether the server is serving a passenger.
func (q *StageQueue) Occupied() bool {
	return q.occupied.Load()
}

func (q *StageQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range q.queue {
		sb.WriteString(p.ID)
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	if q.occupied.Load() {
		sb.WriteString(" occupied")
	}
	return fmt.Sprintf("StageQueue%s", sb.String())
}
