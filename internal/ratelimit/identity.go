package ratelimit

import (
	"net"
	"net/http"
)

// Identity-selection modes. by-address keys buckets on the client IP;
// by-credential keys on the API-key header, falling back to the address for
// anonymous callers.
const (
	ModeByAddress    = "by-address"
	ModeByCredential = "by-credential"
)

// APIKeyHeader carries the client credential under by-credential keying.
const APIKeyHeader = "X-API-Key"

// Identity derives the rate-limit bucket key for a request. It relies on
// chi's RealIP middleware having already rewritten RemoteAddr when the
// service sits behind a proxy.
func Identity(r *http.Request, mode string) string {
	if mode == ModeByCredential {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			return "key:" + key
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
