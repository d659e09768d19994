// Package dispatch implements the request-admission gateway and the worker
// loop at the heart of the media API: synchronous execution for callers that
// can block, queued execution with webhook notification for callers that
// cannot.
package dispatch

import (
	"sync/atomic"
	"time"
)

// Stats tracks engine counters for the health and stats endpoints.
type Stats struct {
	active    atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	started   time.Time
}

// NewStats creates counters anchored at the process start time.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) jobQueued() { s.queued.Add(1) }

func (s *Stats) jobStarted() {
	s.queued.Add(-1)
	s.active.Add(1)
}

func (s *Stats) jobFinished(code int) {
	s.active.Add(-1)
	if code == 200 {
		s.completed.Add(1)
	} else {
		s.failed.Add(1)
	}
}

// syncStarted records an inline job entering execution. Inline jobs never
// touch the queued counter but still count as active while they run.
func (s *Stats) syncStarted() { s.active.Add(1) }

// syncFinished records a job that ran inline and never touched the queue.
func (s *Stats) syncFinished(code int) {
	s.active.Add(-1)
	if code == 200 {
		s.completed.Add(1)
	} else {
		s.failed.Add(1)
	}
}

// Snapshot is the point-in-time view served on /stats.
type Snapshot struct {
	ActiveJobs    int64   `json:"activeJobs"`
	QueuedJobs    int64   `json:"queuedJobs"`
	CompletedJobs int64   `json:"completedJobs"`
	FailedJobs    int64   `json:"failedJobs"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ActiveJobs:    s.active.Load(),
		QueuedJobs:    s.queued.Load(),
		CompletedJobs: s.completed.Load(),
		FailedJobs:    s.failed.Load(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
}
