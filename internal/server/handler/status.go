package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/dispatch"
	"github.com/sonavox/mediad/internal/queue"
)

// StatusHandler serves job status lookups and service health.
type StatusHandler struct {
	sink   core.StatusSink
	stats  *dispatch.Stats
	queue  *queue.Queue
	logger *slog.Logger
}

// NewStatusHandler creates the status and health handler.
func NewStatusHandler(sink core.StatusSink, stats *dispatch.Stats, q *queue.Queue, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		sink:   sink,
		stats:  stats,
		queue:  q,
		logger: logger,
	}
}

// Job handles GET /api/v1/jobs/{jobID}, returning the latest status record
// reported by the dispatch engine.
func (h *StatusHandler) Job(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	rec, err := h.sink.Get(r.Context(), jobID)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load job status", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job status")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Health handles GET /health.
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.stats.Snapshot()
	status := "healthy"
	if h.queue.Max() > 0 && h.queue.Length() >= h.queue.Max() {
		status = "saturated"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"activeJobs":    snap.ActiveJobs,
		"queuedJobs":    snap.QueuedJobs,
		"queueLength":   h.queue.Length(),
		"uptimeSeconds": snap.UptimeSeconds,
	})
}

// Stats handles GET /stats.
func (h *StatusHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	snap := h.stats.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"activeJobs":     snap.ActiveJobs,
		"queuedJobs":     snap.QueuedJobs,
		"completedJobs":  snap.CompletedJobs,
		"failedJobs":     snap.FailedJobs,
		"queueLength":    h.queue.Length(),
		"maxQueueLength": h.queue.Max(),
		"uptimeSeconds":  snap.UptimeSeconds,
	})
}
