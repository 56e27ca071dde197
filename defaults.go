package confsync

import "time"

// Default configuration values for NewClient.
// These constants are exported so callers can reference the defaults when
// building custom configurations relative to them (e.g.,
// 2 * DefaultRefreshInterval).
const (
	// DefaultCluster is the cluster used when WithCluster is not given.
	DefaultCluster = "default"

	// DefaultRefreshInterval is the period of the fallback refresh timer
	// that re-fetches each namespace even when long polling is quiet.
	DefaultRefreshInterval = 5 * time.Minute

	// DefaultLongPollInitialDelay postpones the first long poll after the
	// worker starts, giving the synchronous initial fetches a quiet network.
	DefaultLongPollInitialDelay = 2 * time.Second

	// DefaultLoadConfigQPS is the rate limit for config fetches, shared by
	// all repositories of one client.
	DefaultLoadConfigQPS = 2

	// DefaultLongPollQPS is the rate limit for notification long polls.
	DefaultLongPollQPS = 2

	// DefaultOnErrorRetryInterval is the base of the fetch retry schedule:
	// the fixed between-endpoint sleep after a long-poll wake, and the
	// minimum of the exponential schedule otherwise.
	DefaultOnErrorRetryInterval = time.Second

	// DefaultMaxRetryInterval caps the exponential fetch retry schedule.
	DefaultMaxRetryInterval = 8 * time.Second

	// DefaultLongPollBackoffMax caps the retry schedule of the long-poll
	// worker after poll errors (the minimum is DefaultOnErrorRetryInterval).
	DefaultLongPollBackoffMax = 120 * time.Second

	// DefaultFetchTimeout bounds one config fetch or meta-server request.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultLongPollReadTimeout is the client-side read timeout of the
	// notification long poll. It must strictly exceed the server's 60 s
	// hold so a held connection is always answered, never severed.
	DefaultLongPollReadTimeout = 90 * time.Second

	// DefaultRateLimitWait bounds how long a sync or poll waits for a rate
	// limiter token before proceeding anyway.
	DefaultRateLimitWait = 5 * time.Second

	// DefaultServiceRefreshInterval is the period of the background refresh
	// of the config-service endpoint list.
	DefaultServiceRefreshInterval = 5 * time.Minute

	// DefaultCacheDirName is the directory name under the system temp
	// directory where snapshot cache files are stored. The full path is
	// computed as filepath.Join(os.TempDir(), DefaultCacheDirName).
	DefaultCacheDirName = "confsync"
)
