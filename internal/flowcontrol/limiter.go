package flowcontrol

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket gate for one class of outbound requests.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a Limiter that admits qps requests per second with a
// burst of one token. Burst is deliberately 1: the limiter exists to spread
// requests out, not to allow catch-up bursts after an idle period.
//
// Panics if qps <= 0; a non-positive rate would silently disable the gate,
// which is a programmer error.
func NewLimiter(qps int) *Limiter {
	if qps <= 0 {
		panic(fmt.Sprintf("confsync: limiter qps must be greater than 0, got %d", qps))
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(qps), 1)}
}

// TryAcquire waits up to timeout for one token. It returns true if a token
// was obtained, false if the wait timed out or ctx was canceled first.
//
// The limiter is defensive only: callers that receive false proceed with the
// request anyway, typically after a short additional sleep. A rate-limit
// timeout must never drop a wake-up, only delay it.
func (l *Limiter) TryAcquire(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return l.bucket.Wait(waitCtx) == nil
}
