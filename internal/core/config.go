package core

import (
	"errors"
	"fmt"
	"time"
)

// RepositoryConfig holds configuration for one Repository.
//
// Concurrency contract: all fields are immutable after construction. The
// sync goroutine, the refresh ticker and the long-poll wake path read them
// without synchronization, relying on this guarantee.
type RepositoryConfig struct {
	// AppID, Cluster and Namespace form the identity triple of the watched
	// configuration.
	AppID     string
	Cluster   string
	Namespace string

	// DataCenter and ClientIP are forwarded to the config service for
	// server-side routing and grayscale rules. Both optional.
	DataCenter string
	ClientIP   string

	// RefreshInterval is the period of the fallback refresh timer that keeps
	// the snapshot fresh when long polling is degraded. Default: 5 minutes.
	RefreshInterval time.Duration

	// OnErrorRetryInterval is the base of the fetch retry schedule: the
	// fixed between-endpoint sleep when a long-poll wake demands a refresh,
	// and the minimum of the exponential schedule otherwise. Default: 1s.
	OnErrorRetryInterval time.Duration

	// MaxRetryInterval caps the exponential fetch retry schedule.
	// Default: 8s.
	MaxRetryInterval time.Duration

	// RateLimitWait bounds how long a sync waits for a fetch token before
	// proceeding anyway. Default: 5s.
	RateLimitWait time.Duration
}

// Validate checks all RepositoryConfig invariants and returns an error
// describing every violation found. It uses errors.Join to report multiple
// issues at once, allowing callers to fix all problems in a single pass.
//
// Validate is called by NewRepository, which panics on error: repository
// configuration is assembled by the client from validated options, so a
// violation here is a programmer error.
func (c RepositoryConfig) Validate() error {
	var errs []error

	if c.AppID == "" {
		errs = append(errs, errors.New("app id must not be empty"))
	}
	if c.Cluster == "" {
		errs = append(errs, errors.New("cluster must not be empty"))
	}
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace must not be empty"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be greater than 0, got %s", c.RefreshInterval))
	}
	if c.OnErrorRetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("on-error retry interval must be greater than 0, got %s", c.OnErrorRetryInterval))
	}
	if c.MaxRetryInterval < c.OnErrorRetryInterval {
		errs = append(errs, fmt.Errorf("max retry interval %s must not be below on-error retry interval %s",
			c.MaxRetryInterval, c.OnErrorRetryInterval))
	}
	if c.RateLimitWait <= 0 {
		errs = append(errs, fmt.Errorf("rate limit wait must be greater than 0, got %s", c.RateLimitWait))
	}

	return errors.Join(errs...)
}
