// Package ratelimit implements the sliding-window admission gate in front of
// the dispatch engine, keyed by client identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests per identity inside a trailing window. A request is
// rejected once the identity has `limit` timestamps younger than the window;
// the rejection carries a retry-after hint derived from the oldest surviving
// timestamp. Buckets are trimmed to burstCap after each append so a hot
// client cannot grow its bucket without bound.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time

	limit    int
	window   time.Duration
	burstCap int

	now func() time.Time
}

// New creates a limiter allowing `limit` requests per identity inside
// `window`, with buckets capped at burstCap entries.
func New(limit int, window time.Duration, burstCap int) *Limiter {
	if burstCap < limit {
		burstCap = limit
	}
	return &Limiter{
		buckets:  make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		burstCap: burstCap,
		now:      time.Now,
	}
}

// Allow records a request for the identity and reports whether it is
// admitted. On rejection, retryAfter is the number of seconds (at least 1)
// after which a new request from the same identity can succeed.
func (l *Limiter) Allow(identity string) (ok bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	bucket := l.buckets[identity]
	for len(bucket) > 0 && !bucket[0].After(cutoff) {
		bucket = bucket[1:]
	}

	if len(bucket) >= l.limit {
		wait := bucket[0].Add(l.window).Sub(now)
		// Round up: a fractional remainder truncated away would hand out a
		// hint one second short of the real wait.
		secs := int((wait + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		l.buckets[identity] = bucket
		return false, secs
	}

	bucket = append(bucket, now)
	if len(bucket) > l.burstCap {
		bucket = bucket[len(bucket)-l.burstCap:]
	}
	l.buckets[identity] = bucket
	return true, 0
}

// sweep drops buckets whose newest entry is older than a full window. Idle
// identities would otherwise accumulate forever under by-address keying.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for id, bucket := range l.buckets {
		if len(bucket) == 0 || !bucket[len(bucket)-1].After(cutoff) {
			delete(l.buckets, id)
		}
	}
}

// StartSweeper evicts idle buckets on a ticker until the context is done.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}
