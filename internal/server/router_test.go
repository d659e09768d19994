package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sonavox/mediad/internal/config"
	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/dispatch"
	"github.com/sonavox/mediad/internal/media"
	"github.com/sonavox/mediad/internal/queue"
	"github.com/sonavox/mediad/internal/ratelimit"
	"github.com/sonavox/mediad/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Notify(string, *core.Envelope) {}

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(0)
	sink := store.NewMemory()
	stats := dispatch.NewStats()

	gateway := dispatch.NewGateway(q, sink, stats, "worker-test", "7", logger)
	worker := dispatch.NewWorker(q, sink, noopNotifier{}, stats, "worker-test", "7", logger)
	worker.Start()
	t.Cleanup(worker.Stop)

	stubOp := func(_ string, payload map[string]any) (any, string, int) {
		return map[string]any{"echo": payload["url"]}, "work complete", http.StatusOK
	}
	ops := map[string]core.Operation{
		media.OpTranscribe: stubOp,
		media.OpConvert:    stubOp,
		media.OpDownload:   stubOp,
	}

	cfg := &config.Config{RateLimitIdentity: ratelimit.ModeByAddress}
	router := NewRouter(Deps{
		Config:     cfg,
		Gateway:    gateway,
		Queue:      q,
		Operations: ops,
		Sink:       sink,
		Stats:      stats,
		Limiter:    ratelimit.New(rateLimit, 60*time.Second, rateLimit*2),
		Global:     rate.NewLimiter(rate.Inf, 0),
		Logger:     logger,
	})
	return router, sink
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestConvertSynchronous(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/v1/convert", map[string]any{
		"id":  "corr-1",
		"url": "https://example.com/talk",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var env core.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "corr-1", env.ID)
	assert.NotEmpty(t, env.JobID)
	assert.Zero(t, env.QueueTime)
	assert.Equal(t, "work complete", env.Message)
	assert.NotNil(t, env.Response)
}

func TestConvertAsynchronousAndStatusLookup(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/v1/convert", map[string]any{
		"url":          "https://example.com/talk",
		"callback_url": "https://client.example.com/hook",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var env core.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 202, env.Code)
	assert.Equal(t, "unlimited", env.MaxQueueLength)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+env.JobID, nil)
		lookup := httptest.NewRecorder()
		router.ServeHTTP(lookup, req)
		if lookup.Code != http.StatusOK {
			return false
		}
		var rec core.StatusRecord
		if err := json.Unmarshal(lookup.Body.Bytes(), &rec); err != nil {
			return false
		}
		return rec.State == core.StateDone && rec.Envelope != nil && rec.Envelope.Code == 200
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBadRequests(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	rec := postJSON(t, router, "/api/v1/transcribe", map[string]any{"callback_url": "https://cb"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing url must be rejected")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/download", bytes.NewReader([]byte("{not json")))
	raw := httptest.NewRecorder()
	router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestJobLookupUnknown(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/no-such-job", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	router, _ := newTestRouter(t, 2)

	body := map[string]any{"url": "https://example.com/talk"}
	for i := 0; i < 2; i++ {
		rec := postJSON(t, router, "/api/v1/convert", body)
		require.Equal(t, http.StatusOK, rec.Code, "request %d within the limit", i+1)
	}

	rec := postJSON(t, router, "/api/v1/convert", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var rej map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rej))
	assert.GreaterOrEqual(t, rej["retryAfter"].(float64), float64(1))
}

func TestHealthAndStatsBypassRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, 1)

	// Exhaust the per-identity budget.
	postJSON(t, router, "/api/v1/convert", map[string]any{"url": "https://example.com/a"})

	for _, path := range []string{"/health", "/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "%s must not be throttled", path)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "completedJobs")
	assert.Contains(t, stats, "queueLength")
}
