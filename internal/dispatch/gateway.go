package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/queue"
)

// Request is a parsed, validated unit of work handed to the gateway by an
// HTTP handler.
type Request struct {
	// ID is the caller-supplied correlation id, echoed verbatim.
	ID string
	// Payload is the opaque request body the operation is bound to.
	Payload map[string]any
	// CallbackURL selects the asynchronous path when non-empty.
	CallbackURL string
	// Op is the media operation to execute.
	Op core.Operation
	// BypassQueue forces inline execution even when a callback URL is set.
	BypassQueue bool
}

// Gateway decides, per request, between inline execution and queue admission.
type Gateway struct {
	queue  *queue.Queue
	sink   core.StatusSink
	stats  *Stats
	logger *slog.Logger

	workerID    string
	buildNumber string
}

// NewGateway creates the admission gateway for a worker instance.
func NewGateway(q *queue.Queue, sink core.StatusSink, stats *Stats, workerID, buildNumber string, logger *slog.Logger) *Gateway {
	return &Gateway{
		queue:       q,
		sink:        sink,
		stats:       stats,
		logger:      logger,
		workerID:    workerID,
		buildNumber: buildNumber,
	}
}

// Dispatch admits the request and returns the envelope plus the HTTP status
// to serve it with. A job id is generated up front on every path so status
// reporting stays uniform.
func (g *Gateway) Dispatch(ctx context.Context, req Request) (*core.Envelope, int) {
	job := core.NewJob(req.ID, req.Payload, req.CallbackURL, req.Op)

	if req.BypassQueue || req.CallbackURL == "" {
		return g.runInline(ctx, job)
	}
	return g.admit(ctx, job)
}

// runInline executes the work on the calling request context. The caller
// blocks for the full duration; the queue is never involved.
func (g *Gateway) runInline(ctx context.Context, job *core.Job) (*core.Envelope, int) {
	job.State = core.StateRunning
	job.StartedAt = time.Now()
	g.stats.syncStarted()
	g.report(ctx, job, nil)

	result, label, code := invokeWork(job, g.logger)
	job.FinishedAt = time.Now()
	job.State = core.StateDone

	env := g.buildEnvelope(job, result, label, code, 0)
	g.report(ctx, job, env)
	g.stats.syncFinished(code)

	g.logger.Info("synchronous job finished",
		"job_id", job.ID,
		"code", code,
		"run_time", env.RunTime,
	)
	return env, code
}

// admit places the job on the queue, or rejects it when the configured
// maximum queue length has been reached. The Queued report and the 202 ack
// are both finished before Commit hands the job to the worker; after that
// the worker owns the record and the gateway never touches it again.
func (g *Gateway) admit(ctx context.Context, job *core.Job) (*core.Envelope, int) {
	job.State = core.StateQueued
	job.EnqueuedAt = time.Now()

	slot, ok := g.queue.Reserve()
	if !ok {
		g.logger.Warn("job rejected, queue at capacity",
			"job_id", job.ID,
			"queue_length", g.queue.Length(),
			"max_queue_length", g.queue.Max(),
		)
		env := g.buildEnvelope(job, nil, "", http.StatusTooManyRequests, 0)
		env.Message = "MAX_QUEUE_LENGTH reached"
		env.MaxQueueLength = maxQueueValue(g.queue.Max())
		return env, http.StatusTooManyRequests
	}

	g.stats.jobQueued()
	g.report(ctx, job, nil)

	env := g.buildEnvelope(job, nil, "job queued", http.StatusAccepted, 0)
	env.QueueLength = slot
	env.MaxQueueLength = maxQueueValue(g.queue.Max())

	g.logger.Info("job queued",
		"job_id", job.ID,
		"queue_length", env.QueueLength,
		"callback_url", job.CallbackURL,
	)

	g.queue.Commit(job)
	return env, http.StatusAccepted
}

// buildEnvelope assembles the uniform response body. result is surfaced only
// on code 200; otherwise it carries the error detail and replaces message.
func (g *Gateway) buildEnvelope(job *core.Job, result any, label string, code int, queueTime float64) *core.Envelope {
	env := &core.Envelope{
		Code:        code,
		ID:          job.RequestID,
		JobID:       job.ID,
		Message:     label,
		QueueTime:   queueTime,
		WorkerID:    g.workerID,
		QueueLength: g.queue.Length(),
		BuildNumber: g.buildNumber,
	}

	if !job.StartedAt.IsZero() && !job.FinishedAt.IsZero() {
		env.RunTime = job.FinishedAt.Sub(job.StartedAt).Seconds()
	}
	env.TotalTime = env.RunTime + env.QueueTime

	if code == http.StatusOK {
		env.Response = result
	} else if result != nil {
		env.Message = fmt.Sprint(result)
	}
	return env
}

func (g *Gateway) report(ctx context.Context, job *core.Job, env *core.Envelope) {
	rec := core.StatusRecord{
		JobID:    job.ID,
		State:    job.State,
		WorkerID: g.workerID,
		PID:      os.Getpid(),
		Envelope: env,
	}
	if err := g.sink.Report(ctx, rec); err != nil {
		g.logger.Error("failed to report job status", "job_id", job.ID, "state", job.State, "error", err)
	}
}

// maxQueueValue renders the configured cap for admission envelopes.
func maxQueueValue(max int) any {
	if max == 0 {
		return "unlimited"
	}
	return max
}
