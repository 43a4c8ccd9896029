package zotero

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderBackoff asks clients to pause before the next request (seconds).
	HeaderBackoff = "Backoff"

	// HeaderRetryAfter accompanies 429/503 responses (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter combines a token bucket with the server's Backoff/Retry-After hints.
type RateLimiter struct {
	mu        sync.Mutex
	notBefore time.Time
	bucket    *rate.Limiter
}

// NewRateLimiter creates a limiter allowing rps requests per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	notBefore := r.notBefore
	r.mu.Unlock()

	if d := time.Until(notBefore); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.bucket.Wait(ctx)
}

// Update records Backoff and Retry-After headers from a response.
func (r *RateLimiter) Update(h http.Header) {
	var pause time.Duration
	for _, name := range []string{HeaderBackoff, HeaderRetryAfter} {
		if secs, err := strconv.Atoi(h.Get(name)); err == nil && secs > 0 {
			if d := time.Duration(secs) * time.Second; d > pause {
				pause = d
			}
		}
	}
	if pause == 0 {
		return
	}

	until := time.Now().Add(pause)
	r.mu.Lock()
	if until.After(r.notBefore) {
		r.notBefore = until
	}
	r.mu.Unlock()
}
