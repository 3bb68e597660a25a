package telemetry

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded FIFO of pending records. Producers never block:
// when the queue is full the oldest pending record is evicted and the
// drop counter increments, so telemetry pressure degrades
// observability before it degrades request latency.
type Queue struct {
	mu       sync.Mutex
	ring     []*Record
	head     int
	size     int
	capacity int
	dropped  atomic.Uint64
	notify   chan struct{}
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ring:     make([]*Record, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push enqueues a record, evicting the oldest pending record if the
// queue is full. It never blocks.
func (q *Queue) Push(rec *Record) {
	q.mu.Lock()
	if q.size == q.capacity {
		// Drop-oldest: overwrite the head slot.
		q.head = (q.head + 1) % q.capacity
		q.size--
		q.dropped.Add(1)
	}
	q.ring[(q.head+q.size)%q.capacity] = rec
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PopBatch dequeues up to max records in FIFO order. It returns nil
// when the queue is empty.
func (q *Queue) PopBatch(max int) []*Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}

	n := q.size
	if n > max {
		n = max
	}

	batch := make([]*Record, n)
	for i := 0; i < n; i++ {
		idx := (q.head + i) % q.capacity
		batch[i] = q.ring[idx]
		q.ring[idx] = nil
	}
	q.head = (q.head + n) % q.capacity
	q.size -= n

	return batch
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the queue capacity.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Dropped returns the total number of records dropped, whether by
// overflow eviction or by the delivery worker after exhausting
// retries.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// CountDropped adds delivery-path drops to the drop counter.
func (q *Queue) CountDropped(n int) {
	q.dropped.Add(uint64(n))
}

// Notify returns a channel that receives a signal after pushes. The
// channel is buffered and coalesces signals; consumers must drain the
// queue fully on each wakeup.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
