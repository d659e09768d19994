// Package queue provides the bounded FIFO task queue feeding the worker loop.
package queue

import (
	"sync"

	"github.com/sonavox/mediad/internal/core"
)

// Queue is a FIFO of pending jobs with an optional capacity bound.
// Admission is two-phase: Reserve claims a slot against the cap, Commit
// publishes the job to consumers. Both the capacity check and the insertion
// happen under one mutex hold, so concurrent admitters can never push the
// length past the cap, and a producer keeps exclusive ownership of the job
// until Commit returns.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*core.Job
	reserved int
	max      int // 0 = unbounded
	closed   bool
}

// New creates a queue. max is the capacity bound; 0 means unbounded.
func New(max int) *Queue {
	q := &Queue{max: max}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Reserve claims a slot against the capacity bound and returns the queue
// length including the reservation, or false if the queue is at capacity or
// closed. A successful Reserve must be followed by exactly one Commit.
func (q *Queue) Reserve() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false
	}
	if q.max > 0 && len(q.items)+q.reserved >= q.max {
		return 0, false
	}
	q.reserved++
	return len(q.items) + q.reserved, true
}

// Commit publishes a reserved job to consumers. After Commit the producer
// must not read or write the job again.
func (q *Queue) Commit(j *core.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reserved--
	q.items = append(q.items, j)
	q.cond.Signal()
}

// Dequeue blocks until a job is available and returns it. It returns
// ok == false only once the queue has been closed and drained.
func (q *Queue) Dequeue() (*core.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed && q.reserved == 0 {
			return nil, false
		}
		q.cond.Wait()
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

// Length reports the number of pending jobs.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Max reports the configured capacity bound; 0 means unbounded.
func (q *Queue) Max() int {
	return q.max
}

// Close rejects all further reservations and wakes blocked consumers. Jobs
// already pending or reserved are still handed out by Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
