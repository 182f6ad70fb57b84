package session

import (
	"sync"
)

// sendQueue is the bounded buffer between microphone capture and the network
// send loop. When the queue is full the oldest chunk is dropped so that
// outbound audio stays close to real time even while the channel is still
// connecting or momentarily stalled.
//
// Safe for concurrent use by one producer and one consumer.
type sendQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	chunks  [][]byte
	depth   int
	dropped uint64
	closed  bool
}

// newSendQueue creates a queue bounded to depth chunks. depth must be
// positive.
func newSendQueue(depth int) *sendQueue {
	q := &sendQueue{depth: depth}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues chunk, evicting the oldest entry when the queue is full.
// Returns false once the queue is closed.
func (q *sendQueue) Push(chunk []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.chunks) >= q.depth {
		q.chunks = q.chunks[1:]
		q.dropped++
	}
	q.chunks = append(q.chunks, chunk)
	q.cond.Signal()
	return true
}

// Pop blocks until a chunk is available or the queue is closed. The second
// return value is false when the queue is closed and drained.
func (q *sendQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.chunks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true
}

// Len returns the current queue occupancy.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Dropped returns the number of chunks evicted so far.
func (q *sendQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close wakes any blocked Pop. Remaining chunks stay poppable; Push is
// rejected afterwards. Idempotent.
func (q *sendQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
