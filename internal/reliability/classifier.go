package reliability

import (
	"context"
	"net/http"
	"time"
)

// IsRateLimitStatus reports whether an upstream status means quota exhaustion.
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests
}

// IsRetryableHTTPStatus classifies transient upstream failures. Rate limits
// are deliberately excluded: they are surfaced to the caller, never retried.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
