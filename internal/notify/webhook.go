// Package notify delivers terminal job envelopes to caller-supplied webhook
// URLs, best-effort and fire-and-forget.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sonavox/mediad/internal/core"
)

type delivery struct {
	url string
	env *core.Envelope
}

// WebhookNotifier pushes deliveries onto a buffered lane consumed by a single
// sender goroutine, so a slow or hanging callback endpoint can never stall
// the worker loop. Each POST is bounded by its own timeout; failures are
// logged and never retried.
type WebhookNotifier struct {
	client *http.Client
	lane   chan delivery
	logger *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWebhook creates a notifier and starts its sender goroutine.
func NewWebhook(timeout time.Duration, laneSize int, logger *slog.Logger) *WebhookNotifier {
	if laneSize <= 0 {
		laneSize = 64
	}
	n := &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		lane:   make(chan delivery, laneSize),
		logger: logger,
	}
	n.wg.Add(1)
	go n.sender()
	return n
}

// Notify hands the envelope to the sender lane without blocking. If the lane
// is full the delivery is dropped; at-most-once is all the engine promises.
func (n *WebhookNotifier) Notify(url string, env *core.Envelope) {
	if url == "" {
		return
	}
	select {
	case n.lane <- delivery{url: url, env: env}:
	default:
		n.logger.Warn("webhook lane full, dropping notification", "url", url, "job_id", env.JobID)
	}
}

func (n *WebhookNotifier) sender() {
	defer n.wg.Done()
	for d := range n.lane {
		if err := n.post(d.url, d.env); err != nil {
			n.logger.Error("webhook delivery failed", "url", d.url, "job_id", d.env.JobID, "error", err)
			continue
		}
		n.logger.Info("webhook delivered", "url", d.url, "job_id", d.env.JobID)
	}
}

func (n *WebhookNotifier) post(url string, env *core.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to POST envelope: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Stop closes the lane and waits for pending deliveries to finish.
func (n *WebhookNotifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.lane)
	})
	n.wg.Wait()
}
