package confsync

import "time"

// ConfigSnapshot holds a copy of clientConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
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

	CacheDir  string
	Overrides map[string]string
	Defaults  map[string]string
}

// ApplyOptionsForTesting creates a default clientConfig, applies the given
// options, and returns a ConfigSnapshot of the result. This tests the option
// closures directly without constructing a Client.
func ApplyOptionsForTesting(opts ...ClientOption) ConfigSnapshot {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		AppID:                  cfg.AppID,
		Cluster:                cfg.Cluster,
		MetaServer:             cfg.MetaServer,
		DataCenter:             cfg.DataCenter,
		ClientIP:               cfg.ClientIP,
		RefreshInterval:        cfg.RefreshInterval,
		LongPollInitialDelay:   cfg.LongPollInitialDelay,
		LoadConfigQPS:          cfg.LoadConfigQPS,
		LongPollQPS:            cfg.LongPollQPS,
		OnErrorRetryInterval:   cfg.OnErrorRetryInterval,
		MaxRetryInterval:       cfg.MaxRetryInterval,
		LongPollBackoffMax:     cfg.LongPollBackoffMax,
		FetchTimeout:           cfg.FetchTimeout,
		LongPollReadTimeout:    cfg.LongPollReadTimeout,
		RateLimitWait:          cfg.RateLimitWait,
		ServiceRefreshInterval: cfg.ServiceRefreshInterval,
		CacheDir:               cfg.CacheDir,
		Overrides:              cfg.Overrides,
		Defaults:               cfg.Defaults,
	}
}

// ValidateForTesting applies the given options to a default clientConfig and
// returns the Validate result, so the _test package can exercise validation
// without triggering the NewClient panic.
func ValidateForTesting(opts ...ClientOption) error {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.Validate()
}
