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

// Worker is the single sequential consumer of the task queue. At most one job
// is in flight per worker instance; throughput scales by running more
// processes, not by adding concurrency here.
type Worker struct {
	queue    *queue.Queue
	sink     core.StatusSink
	notifier core.Notifier
	stats    *Stats
	logger   *slog.Logger

	workerID    string
	buildNumber string

	done chan struct{}
}

// NewWorker creates the worker loop for this process.
func NewWorker(q *queue.Queue, sink core.StatusSink, notifier core.Notifier, stats *Stats, workerID, buildNumber string, logger *slog.Logger) *Worker {
	return &Worker{
		queue:       q,
		sink:        sink,
		notifier:    notifier,
		stats:       stats,
		logger:      logger,
		workerID:    workerID,
		buildNumber: buildNumber,
		done:        make(chan struct{}),
	}
}

// Start launches the supervised loop in the background. The loop runs for the
// process lifetime; if it ever exits on a panic it is logged and restarted.
func (w *Worker) Start() {
	go w.supervise()
}

func (w *Worker) supervise() {
	defer close(w.done)
	for {
		exited := w.runLoop()
		if exited {
			w.logger.Info("worker loop finished, queue closed", "worker_id", w.workerID)
			return
		}
		w.logger.Error("worker loop died unexpectedly, restarting", "worker_id", w.workerID)
	}
}

// runLoop drains the queue until it is closed. It reports true on a clean
// exit and false if a panic escaped past the per-job recovery.
func (w *Worker) runLoop() (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic escaped worker loop", "worker_id", w.workerID, "panic", r)
			clean = false
		}
	}()

	w.logger.Info("starting worker loop", "worker_id", w.workerID)
	for {
		job, ok := w.queue.Dequeue()
		if !ok {
			return true
		}
		w.process(job)
	}
}

// process runs one job to completion: Running transition, work invocation,
// terminal envelope, Done transition, and the async-path webhook.
func (w *Worker) process(job *core.Job) {
	ctx := context.Background()

	w.stats.jobStarted()
	w.logger.Info("worker processing job", "worker_id", w.workerID, "job_id", job.ID)

	job.State = core.StateRunning
	job.StartedAt = time.Now()
	w.report(ctx, job, nil)

	result, label, code := invokeWork(job, w.logger)
	job.FinishedAt = time.Now()
	job.State = core.StateDone

	env := w.buildEnvelope(job, result, label, code)
	w.report(ctx, job, env)
	w.stats.jobFinished(code)

	if job.CallbackURL != "" {
		w.notifier.Notify(job.CallbackURL, env)
	}

	if code == http.StatusOK {
		w.logger.Info("job completed",
			"worker_id", w.workerID,
			"job_id", job.ID,
			"run_time", env.RunTime,
			"queue_time", env.QueueTime,
		)
	} else {
		w.logger.Error("job failed",
			"worker_id", w.workerID,
			"job_id", job.ID,
			"code", code,
			"message", env.Message,
		)
	}
}

func (w *Worker) buildEnvelope(job *core.Job, result any, label string, code int) *core.Envelope {
	env := &core.Envelope{
		Code:        code,
		ID:          job.RequestID,
		JobID:       job.ID,
		Message:     label,
		RunTime:     job.FinishedAt.Sub(job.StartedAt).Seconds(),
		QueueTime:   job.StartedAt.Sub(job.EnqueuedAt).Seconds(),
		WorkerID:    w.workerID,
		QueueLength: w.queue.Length(),
		BuildNumber: w.buildNumber,
	}
	env.TotalTime = env.RunTime + env.QueueTime

	if code == http.StatusOK {
		env.Response = result
	} else if result != nil {
		env.Message = fmt.Sprint(result)
	}
	return env
}

func (w *Worker) report(ctx context.Context, job *core.Job, env *core.Envelope) {
	rec := core.StatusRecord{
		JobID:    job.ID,
		State:    job.State,
		WorkerID: w.workerID,
		PID:      os.Getpid(),
		Envelope: env,
	}
	if err := w.sink.Report(ctx, rec); err != nil {
		w.logger.Error("failed to report job status", "job_id", job.ID, "state", job.State, "error", err)
	}
}

// Stop closes the queue and waits for the in-flight job, if any, to finish.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker, waiting for in-flight job", "worker_id", w.workerID)
	w.queue.Close()
	<-w.done
}

// invokeWork runs the job's work function, converting a panic into a plain
// 500 failure so one bad job cannot take the loop down.
func invokeWork(job *core.Job, logger *slog.Logger) (result any, label string, code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("work function panicked", "job_id", job.ID, "panic", r)
			result = fmt.Sprintf("work function panicked: %v", r)
			label = "internal error"
			code = http.StatusInternalServerError
		}
	}()
	return job.Work()
}
