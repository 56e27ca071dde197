package confsync

import (
	"errors"
	"fmt"
	"time"
)

// clientConfig holds the assembled configuration of a Client. Fields are
// immutable after NewClient applies the options; every background goroutine
// reads them without synchronization, relying on this guarantee.
type clientConfig struct {
	AppID      string
	Cluster    string
	MetaServer string
	DataCenter string
	ClientIP   string

	RefreshInterval        time.Duration
	LongPollInitialDelay   time.Duration
	LoadConfigQPS          int
	LongPollQPS            int
	OnErrorRetryInterval   time.Duration
	MaxRetryInterval       time.Duration
	LongPollBackoffMax     time.Duration
	FetchTimeout           time.Duration
	LongPollReadTimeout    time.Duration
	RateLimitWait          time.Duration
	ServiceRefreshInterval time.Duration

	// CacheDir is where snapshot cache files live; empty disables the
	// local cache entirely (WithoutLocalCache).
	CacheDir string

	Overrides map[string]string
	Defaults  map[string]string
}

// Validate checks all clientConfig invariants and returns an error
// describing every violation found. It uses errors.Join to report multiple
// issues at once, allowing callers to fix all problems in a single pass
// rather than playing whack-a-mole with one error at a time.
//
// Validate is called by NewClient, which panics on error: client
// configuration comes from compile-time option values, so a violation is a
// programmer error.
func (c clientConfig) Validate() error {
	var errs []error

	if c.AppID == "" {
		errs = append(errs, errors.New("app id must not be empty (use WithAppID)"))
	}
	if c.Cluster == "" {
		errs = append(errs, errors.New("cluster must not be empty"))
	}
	if c.MetaServer == "" {
		errs = append(errs, errors.New("meta server URL must not be empty (use WithMetaServer)"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be greater than 0, got %s", c.RefreshInterval))
	}
	if c.LongPollInitialDelay < 0 {
		errs = append(errs, fmt.Errorf("long-poll initial delay must not be negative, got %s", c.LongPollInitialDelay))
	}
	if c.LoadConfigQPS <= 0 {
		errs = append(errs, fmt.Errorf("load config QPS must be greater than 0, got %d", c.LoadConfigQPS))
	}
	if c.LongPollQPS <= 0 {
		errs = append(errs, fmt.Errorf("long poll QPS must be greater than 0, got %d", c.LongPollQPS))
	}
	if c.OnErrorRetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("on-error retry interval must be greater than 0, got %s", c.OnErrorRetryInterval))
	}
	if c.MaxRetryInterval < c.OnErrorRetryInterval {
		errs = append(errs, fmt.Errorf("max retry interval %s must not be below on-error retry interval %s",
			c.MaxRetryInterval, c.OnErrorRetryInterval))
	}
	if c.LongPollBackoffMax < c.OnErrorRetryInterval {
		errs = append(errs, fmt.Errorf("long-poll backoff max %s must not be below on-error retry interval %s",
			c.LongPollBackoffMax, c.OnErrorRetryInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be greater than 0, got %s", c.FetchTimeout))
	}
	if c.LongPollReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("long-poll read timeout must be greater than 0, got %s", c.LongPollReadTimeout))
	}
	if c.RateLimitWait <= 0 {
		errs = append(errs, fmt.Errorf("rate limit wait must be greater than 0, got %s", c.RateLimitWait))
	}
	if c.ServiceRefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("service refresh interval must be greater than 0, got %s", c.ServiceRefreshInterval))
	}

	return errors.Join(errs...)
}
