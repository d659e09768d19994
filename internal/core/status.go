package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by StatusSink.Get when no record exists for a job id.
var ErrNotFound = errors.New("job not found")

// StatusRecord is the snapshot reported to the status sink at every lifecycle
// transition. The Envelope is nil until the job reaches its terminal state.
type StatusRecord struct {
	JobID     string    `json:"jobId" db:"job_id"`
	State     JobState  `json:"state" db:"state"`
	WorkerID  string    `json:"workerId" db:"worker_id"`
	PID       int       `json:"pid" db:"pid"`
	Envelope  *Envelope `json:"envelope,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// StatusSink is the system of record for job lifecycle status. The dispatch
// engine reports every transition; callers query it out-of-band by job id.
type StatusSink interface {
	Report(ctx context.Context, rec StatusRecord) error
	Get(ctx context.Context, jobID string) (*StatusRecord, error)
}

// Notifier delivers a terminal envelope to a callback URL. Delivery is
// best-effort: implementations must never block the caller and failures must
// not affect the job's terminal state.
type Notifier interface {
	Notify(url string, env *Envelope)
}
