package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

type rejection struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Middleware gates requests through the process-global burst limiter first,
// then the per-identity sliding window. Rejections are 429 with a JSON body
// and, for window rejections, a Retry-After header.
func Middleware(l *Limiter, global *rate.Limiter, mode string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if global != nil && !global.Allow() {
				writeRejection(w, rejection{
					Code:    http.StatusTooManyRequests,
					Message: "server overloaded, slow down",
				})
				return
			}

			identity := Identity(r, mode)
			ok, retryAfter := l.Allow(identity)
			if !ok {
				logger.Debug("rate limit exceeded", "identity", identity, "retry_after", retryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeRejection(w, rejection{
					Code:       http.StatusTooManyRequests,
					Message:    "rate limit exceeded",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, rej rejection) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Code)
	_ = json.NewEncoder(w).Encode(rej)
}
