package util

import (
	"math"

	lockfreequeue "github.com/bsv-blockchain/go-lockfree-queue"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"go.uber.org/atomic"
)

// FIFO is an unbounded queue with many producers and a single consumer. Push never blocks and
// is safe from any goroutine; Pop and Ready belong to the consumer.
type FIFO[T any] struct {
	queue  *lockfreequeue.LockFreeQ[T]
	length *atomic.Uint64
	wake   chan struct{}
}

func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		queue:  lockfreequeue.NewLockFreeQ[T](),
		length: atomic.NewUint64(0),
		wake:   make(chan struct{}, 1),
	}
}

// Push appends v and wakes the consumer. The length is counted before the value is visible so
// Pop never takes it below zero.
func (q *FIFO[T]) Push(v T) {
	q.length.Inc()
	q.queue.Enqueue(v)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes the oldest value. Only the consumer goroutine may call it.
func (q *FIFO[T]) Pop() (T, bool) {
	v := q.queue.Dequeue()
	if v == nil {
		var zero T
		return zero, false
	}

	q.length.Dec()

	return *v, true
}

// Ready receives after a Push. The consumer drains with Pop until it reports empty before
// waiting on Ready again.
func (q *FIFO[T]) Ready() <-chan struct{} {
	return q.wake
}

func (q *FIFO[T]) Len() int {
	n, err := safeconversion.Uint64ToInt(q.length.Load())
	if err != nil {
		return math.MaxInt
	}

	return n
}
