package flowcontrol

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff is an exponential retry schedule with a cap, reset on success.
// The first failure yields the minimum delay; each subsequent failure doubles
// it up to the maximum. Success returns the schedule to the minimum.
//
// It is safe for concurrent use, though in practice each Backoff has a single
// owner (one repository's sync loop, or the notifier worker).
type Backoff struct {
	mu  sync.Mutex
	exp *backoff.ExponentialBackOff
}

// NewBackoff creates a Backoff ranging from min to max.
// Panics if min <= 0 or max < min; the schedule bounds are configuration
// constants, so invalid values are programmer errors.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		panic(fmt.Sprintf("confsync: backoff min must be greater than 0, got %s", min))
	}
	if max < min {
		panic(fmt.Sprintf("confsync: backoff max %s must not be below min %s", max, min))
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = min
	exp.MaxInterval = max
	exp.Multiplier = 2
	// No jitter: the schedule must be exactly min, 2*min, 4*min, ... capped
	// at max, so tests and operators can predict retry timing.
	exp.RandomizationFactor = 0
	// Never give up; the caller decides when to stop retrying.
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &Backoff{exp: exp}
}

// Fail returns the delay to sleep before the next attempt and advances the
// schedule (doubling, capped at max).
func (b *Backoff) Fail() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exp.NextBackOff()
}

// Success resets the schedule to the minimum delay.
func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exp.Reset()
}
