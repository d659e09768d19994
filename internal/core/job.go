// Package core defines the essential interfaces and data structures that form
// the backbone of the dispatch engine. These components are deliberately
// abstract so the admission, queueing, and worker layers stay decoupled from
// the media work itself and from how job status is persisted.
package core

import (
	"time"

	"github.com/google/uuid"
)

// JobState tracks the lifecycle of a job through the dispatch engine.
type JobState string

const (
	StateQueued  JobState = "queued"
	StateRunning JobState = "running"
	StateDone    JobState = "done"
)

// Operation is a black-box unit of media work. It receives the job id and the
// caller-supplied payload and returns (result, label, statusCode). The result
// is surfaced in the envelope only when statusCode is 200; otherwise it
// carries the error detail and replaces the envelope message.
type Operation func(jobID string, payload map[string]any) (result any, label string, code int)

// WorkFunc is an Operation already bound to a specific job. It is owned
// exclusively by its Job and invoked at most once.
type WorkFunc func() (result any, label string, code int)

// Job is the unit of deferred work flowing through the dispatch engine.
// Once created it has a single owner at any time: the admitting request
// context first, then the worker loop after a successful enqueue.
type Job struct {
	// ID is assigned at creation and never changes.
	ID string

	// RequestID is the caller-supplied correlation id, echoed verbatim in
	// every envelope built for this job. May be empty.
	RequestID string

	// Payload is the parsed request body, read-only after creation.
	Payload map[string]any

	// Work executes the media operation bound to this job.
	Work WorkFunc

	// CallbackURL selects the asynchronous path when non-empty.
	CallbackURL string

	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	State JobState
}

// NewJob creates a job with a fresh random id and binds the operation to it.
func NewJob(requestID string, payload map[string]any, callbackURL string, op Operation) *Job {
	j := &Job{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Payload:     payload,
		CallbackURL: callbackURL,
	}
	j.Work = func() (any, string, int) {
		return op(j.ID, payload)
	}
	return j
}
