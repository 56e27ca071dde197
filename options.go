package confsync

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("confsync: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("confsync: %s must not be empty", name))
	}
}

// ClientOption configures a Client during construction via NewClient.
// Each With* function returns a ClientOption that sets a specific field.
//
// Several With* functions panic on invalid input (empty identifiers,
// non-positive durations). These panics are intentional: option values are
// typically compile-time constants, so an invalid value indicates a
// programmer error rather than a runtime condition. The pattern mirrors
// [regexp.MustCompile] — fail fast during initialization instead of
// returning errors that would be universally fatal anyway.
type ClientOption func(*clientConfig)

// WithAppID sets the application id of the identity triple. Required.
// Panics if appID is empty.
func WithAppID(appID string) ClientOption {
	requireNonEmpty("app id", appID)
	return func(c *clientConfig) {
		c.AppID = appID
	}
}

// WithCluster sets the cluster of the identity triple.
// Default: "default". Panics if cluster is empty.
func WithCluster(cluster string) ClientOption {
	requireNonEmpty("cluster", cluster)
	return func(c *clientConfig) {
		c.Cluster = cluster
	}
}

// WithMetaServer sets the meta server base URL used to discover config
// service endpoints. Required. Panics if u is empty.
func WithMetaServer(u string) ClientOption {
	requireNonEmpty("meta server URL", u)
	return func(c *clientConfig) {
		c.MetaServer = u
	}
}

// WithDataCenter sets the data center forwarded to the config service for
// server-side routing rules. Panics if dc is empty.
func WithDataCenter(dc string) ClientOption {
	requireNonEmpty("data center", dc)
	return func(c *clientConfig) {
		c.DataCenter = dc
	}
}

// WithClientIP overrides the client IP reported to the config service.
// By default the first non-loopback unicast address is detected and used.
// Panics if ip is empty.
func WithClientIP(ip string) ClientOption {
	requireNonEmpty("client IP", ip)
	return func(c *clientConfig) {
		c.ClientIP = ip
	}
}

// WithRefreshInterval sets the period of the fallback refresh timer.
// Long polling delivers changes in near real time; the timer only covers
// degraded long polling, so values below a minute are rarely useful.
//
// Default: 5 minutes. Panics if d <= 0.
func WithRefreshInterval(d time.Duration) ClientOption {
	requirePositive("refresh interval", d)
	return func(c *clientConfig) {
		c.RefreshInterval = d
	}
}

// WithLongPollInitialDelay postpones the first long poll after the worker
// starts. Zero is allowed (poll immediately).
//
// Default: 2 seconds. Panics if d < 0.
func WithLongPollInitialDelay(d time.Duration) ClientOption {
	if d < 0 {
		panic(fmt.Sprintf("confsync: long-poll initial delay must not be negative, got %v", d))
	}
	return func(c *clientConfig) {
		c.LongPollInitialDelay = d
	}
}

// WithLoadConfigQPS sets the rate limit for config fetches, shared by all
// repositories of this client.
//
// Default: 2. Panics if qps <= 0.
func WithLoadConfigQPS(qps int) ClientOption {
	requirePositive("load config QPS", qps)
	return func(c *clientConfig) {
		c.LoadConfigQPS = qps
	}
}

// WithLongPollQPS sets the rate limit for notification long polls.
//
// Default: 2. Panics if qps <= 0.
func WithLongPollQPS(qps int) ClientOption {
	requirePositive("long poll QPS", qps)
	return func(c *clientConfig) {
		c.LongPollQPS = qps
	}
}

// WithOnErrorRetryInterval sets the base of the fetch retry schedule: the
// fixed between-endpoint sleep after a long-poll wake, and the minimum of
// the exponential schedule otherwise.
//
// Default: 1 second. Panics if d <= 0.
func WithOnErrorRetryInterval(d time.Duration) ClientOption {
	requirePositive("on-error retry interval", d)
	return func(c *clientConfig) {
		c.OnErrorRetryInterval = d
	}
}

// WithFetchTimeout bounds one config fetch or meta-server request.
//
// Default: 5 seconds. Panics if d <= 0.
func WithFetchTimeout(d time.Duration) ClientOption {
	requirePositive("fetch timeout", d)
	return func(c *clientConfig) {
		c.FetchTimeout = d
	}
}

// WithLongPollReadTimeout sets the client-side read timeout of the
// notification long poll. It must strictly exceed the server's hold timeout
// (60 s); values at or below the hold are rejected at transport construction
// with a logged warning and replaced by the default.
//
// Default: 90 seconds. Panics if d <= 0.
func WithLongPollReadTimeout(d time.Duration) ClientOption {
	requirePositive("long-poll read timeout", d)
	return func(c *clientConfig) {
		c.LongPollReadTimeout = d
	}
}

// WithCacheDir sets the directory for local snapshot cache files.
// Useful when several applications on one host must not share cache state.
// Default: filepath.Join(os.TempDir(), DefaultCacheDirName).
// Panics if dir is empty.
func WithCacheDir(dir string) ClientOption {
	requireNonEmpty("cache directory", dir)
	return func(c *clientConfig) {
		c.CacheDir = dir
	}
}

// WithoutLocalCache disables snapshot persistence entirely: nothing is
// written on publication and nothing is served when the initial fetch fails.
func WithoutLocalCache() ClientOption {
	return func(c *clientConfig) {
		c.CacheDir = ""
	}
}

// WithOverrides sets process-level property overrides, the highest-priority
// source of the merged view. The map is copied.
func WithOverrides(overrides map[string]string) ClientOption {
	return func(c *clientConfig) {
		c.Overrides = maps.Clone(overrides)
	}
}

// WithDefaults sets built-in resource defaults, consulted after environment
// variables and before the call-site default. The map is copied.
func WithDefaults(defaults map[string]string) ClientOption {
	return func(c *clientConfig) {
		c.Defaults = maps.Clone(defaults)
	}
}

// defaultClientConfig returns the configuration NewClient starts from.
func defaultClientConfig() clientConfig {
	return clientConfig{
		Cluster:                DefaultCluster,
		RefreshInterval:        DefaultRefreshInterval,
		LongPollInitialDelay:   DefaultLongPollInitialDelay,
		LoadConfigQPS:          DefaultLoadConfigQPS,
		LongPollQPS:            DefaultLongPollQPS,
		OnErrorRetryInterval:   DefaultOnErrorRetryInterval,
		MaxRetryInterval:       DefaultMaxRetryInterval,
		LongPollBackoffMax:     DefaultLongPollBackoffMax,
		FetchTimeout:           DefaultFetchTimeout,
		LongPollReadTimeout:    DefaultLongPollReadTimeout,
		RateLimitWait:          DefaultRateLimitWait,
		ServiceRefreshInterval: DefaultServiceRefreshInterval,
		CacheDir:               filepath.Join(os.TempDir(), DefaultCacheDirName),
	}
}
