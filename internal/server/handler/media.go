// Package handler provides the HTTP handlers for the media API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/dispatch"
	"github.com/sonavox/mediad/internal/media"
)

// MediaHandler admits media requests into the dispatch engine.
type MediaHandler struct {
	gateway    *dispatch.Gateway
	operations map[string]core.Operation
	logger     *slog.Logger
}

// NewMediaHandler creates a handler over the gateway and the operation
// registry.
func NewMediaHandler(gateway *dispatch.Gateway, operations map[string]core.Operation, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		gateway:    gateway,
		operations: operations,
		logger:     logger,
	}
}

// Transcribe handles POST /api/v1/transcribe.
func (h *MediaHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, media.OpTranscribe)
}

// Convert handles POST /api/v1/convert.
func (h *MediaHandler) Convert(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, media.OpConvert)
}

// Download handles POST /api/v1/download.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, media.OpDownload)
}

// dispatch parses the payload and routes it through the gateway. The payload
// stays an opaque map; only the fields the admission decision needs are
// pulled out here.
func (h *MediaHandler) dispatch(w http.ResponseWriter, r *http.Request, opName string) {
	op, ok := h.operations[opName]
	if !ok {
		h.logger.Error("operation not registered", "operation", opName)
		writeError(w, http.StatusInternalServerError, "operation not available")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if stringField(payload, "url") == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	req := dispatch.Request{
		ID:          stringField(payload, "id"),
		Payload:     payload,
		CallbackURL: stringField(payload, "callback_url"),
		Op:          op,
		BypassQueue: boolField(payload, "sync"),
	}

	env, status := h.gateway.Dispatch(r.Context(), req)
	writeJSON(w, status, env)
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func boolField(payload map[string]any, key string) bool {
	v, ok := payload[key].(bool)
	return ok && v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"message": message,
	})
}
