package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/vidq/internal/domain"
)

// DispatchQueue is the bounded FIFO between ingestion and the workers.
//
// The item channel is never closed; closing is signalled on a separate
// channel so a timed Enqueue cannot race a close into a send on a closed
// channel. pending counts jobs from the start of Enqueue until Done, which
// keeps queued and in-flight work visible to admission.
type DispatchQueue struct {
	items   chan *domain.Job
	done    chan struct{}
	pending atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewDispatchQueue(capacity int) *DispatchQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &DispatchQueue{
		items: make(chan *domain.Job, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue waits up to timeout for a free slot.
func (q *DispatchQueue) Enqueue(job *domain.Job, timeout time.Duration) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return domain.ErrQueueClosed
	}

	q.pending.Add(1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.items <- job:
		return nil
	case <-timer.C:
		q.pending.Add(-1)
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available. It returns false once the queue
// is closed and nothing is left to drain.
func (q *DispatchQueue) Dequeue() (*domain.Job, bool) {
	select {
	case job := <-q.items:
		return job, true
	case <-q.done:
		select {
		case job := <-q.items:
			return job, true
		default:
			return nil, false
		}
	}
}

// Done marks a dequeued job as finished.
func (q *DispatchQueue) Done() {
	q.pending.Add(-1)
}

// Depth is the number of jobs queued or in flight.
func (q *DispatchQueue) Depth() int {
	return int(q.pending.Load())
}

// Len is the number of jobs waiting for a worker.
func (q *DispatchQueue) Len() int {
	return len(q.items)
}

func (q *DispatchQueue) Cap() int {
	return cap(q.items)
}

// Close stops new enqueues and wakes every Dequeue. It waits for in-progress
// Enqueue calls to resolve first. Safe to call more than once.
func (q *DispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *DispatchQueue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
