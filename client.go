package confsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/confsync/internal/cache"
	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/flowcontrol"
	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/meta"
	"github.com/giantswarm/confsync/internal/netutil"
	"github.com/giantswarm/confsync/internal/notify"
	"github.com/giantswarm/confsync/internal/transport"
)

// Compile-time interface satisfaction check.
var _ Config = (*core.Facade)(nil)

// Client is the root object of the library: it owns the process-wide
// collaborators (service locator, long-poll notifier, shared rate limiter,
// snapshot cache) and hands out per-namespace Config views.
//
// Callers must follow this lifecycle ordering:
//
//	NewClient → GetConfig (repeatable) → Close
//
// Client is safe for concurrent use by multiple goroutines. Construct one
// per application; every GetConfig multiplexes onto the same single
// outstanding long poll.
type Client struct {
	cfg clientConfig

	transport *transport.Client
	locator   *meta.Locator
	notifier  *notify.Notifier

	// fetchLimiter is shared by all repositories: loadConfigQPS bounds the
	// process, not each namespace.
	fetchLimiter *flowcontrol.Limiter

	// store is nil when the local cache is disabled.
	store *cache.Store

	// mu guards facades; group deduplicates concurrent first-time
	// construction of the same namespace so exactly one initial fetch runs.
	mu      sync.Mutex
	facades map[string]*core.Facade
	repos   map[string]*core.Repository
	group   singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient creates a Client with the given options. This performs no I/O;
// the first GetConfig for a namespace does.
//
// Panics if the assembled configuration is invalid (missing app id or meta
// server, non-positive durations). Invalid configuration is a programmer
// error that should be caught at construction time, similar to
// regexp.MustCompile.
func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientIP == "" {
		cfg.ClientIP = netutil.LocalIP()
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("confsync: invalid client config: %v", err))
	}

	tc := transport.NewClient(cfg.FetchTimeout, cfg.LongPollReadTimeout)
	locator := meta.NewLocator(tc, cfg.MetaServer, cfg.AppID, cfg.ClientIP, cfg.ServiceRefreshInterval)
	notifier := notify.NewNotifier(notify.Config{
		AppID:         cfg.AppID,
		Cluster:       cfg.Cluster,
		DataCenter:    cfg.DataCenter,
		ClientIP:      cfg.ClientIP,
		InitialDelay:  cfg.LongPollInitialDelay,
		RateLimitWait: cfg.RateLimitWait,
		PollQPS:       cfg.LongPollQPS,
		BackoffMin:    cfg.OnErrorRetryInterval,
		BackoffMax:    cfg.LongPollBackoffMax,
	}, tc, locator)

	var store *cache.Store
	if cfg.CacheDir != "" {
		store = cache.NewStore(cfg.CacheDir)
	}

	return &Client{
		cfg:          cfg,
		transport:    tc,
		locator:      locator,
		notifier:     notifier,
		fetchLimiter: flowcontrol.NewLimiter(cfg.LoadConfigQPS),
		store:        store,
		facades:      make(map[string]*core.Facade),
		repos:        make(map[string]*core.Repository),
	}
}

// GetConfig returns the Config view of namespace, constructing and starting
// its repository on first use: one synchronous fetch, registration with the
// long-poll notifier, and the fallback refresh timer.
//
// When the initial fetch fails and a locally cached snapshot exists, the
// cached (stale-but-available) snapshot is served and the background
// machinery keeps retrying. With no cache to fall back to, the error wraps
// ErrInitialLoadFailed and the next GetConfig retries from scratch.
//
// Returns ErrClosed after Close.
func (c *Client) GetConfig(ctx context.Context, namespace string) (Config, error) {
	if namespace == "" {
		return nil, errors.New("namespace must not be empty")
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	if f, ok := c.facades[namespace]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(namespace, func() (any, error) {
		return c.buildFacade(ctx, namespace)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Facade), nil
}

// buildFacade constructs, starts and registers the facade for namespace.
// Runs under the singleflight group, so at most one builder per namespace.
func (c *Client) buildFacade(ctx context.Context, namespace string) (*core.Facade, error) {
	// A racing builder may have finished between the map check and the
	// singleflight call collapsing onto us.
	c.mu.Lock()
	if f, ok := c.facades[namespace]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	repo := core.NewRepository(core.RepositoryConfig{
		AppID:                c.cfg.AppID,
		Cluster:              c.cfg.Cluster,
		Namespace:            namespace,
		DataCenter:           c.cfg.DataCenter,
		ClientIP:             c.cfg.ClientIP,
		RefreshInterval:      c.cfg.RefreshInterval,
		OnErrorRetryInterval: c.cfg.OnErrorRetryInterval,
		MaxRetryInterval:     c.cfg.MaxRetryInterval,
		RateLimitWait:        c.cfg.RateLimitWait,
	}, core.RepositoryDeps{
		Fetcher:   c.transport,
		Endpoints: c.locator,
		Limiter:   c.fetchLimiter,
		Notifier:  c.notifier,
		Store:     storeOrNil(c.store),
	})

	if err := repo.Start(ctx); err != nil {
		if !errors.Is(err, core.ErrInitialLoadFailed) || c.store == nil {
			return nil, err
		}
		cached, cacheErr := c.store.Load(c.cfg.AppID, c.cfg.Cluster, namespace)
		if cacheErr != nil {
			return nil, fmt.Errorf("%w (local cache: %w)", err, cacheErr)
		}
		logging.Logger().Warn("initial load failed; serving stale snapshot from local cache",
			"namespace", namespace, "releaseKey", cached.ReleaseKey(), "error", err)
		repo.Restore(cached)
		if err := repo.Start(ctx); err != nil {
			return nil, err
		}
	}

	facade := core.NewFacade(repo, c.cfg.Overrides, c.cfg.Defaults)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		// Close raced with construction; do not leak the background
		// goroutine and registration.
		repo.Stop()
		return nil, ErrClosed
	}
	c.facades[namespace] = facade
	c.repos[namespace] = repo
	return facade, nil
}

// Close stops the long-poll notifier, every repository's background refresh
// and the locator's endpoint refresh. Idempotent; always returns nil (the
// signature leaves room for flush-on-close semantics).
//
// In-flight HTTP requests are not aborted; they complete or time out within
// their own deadlines.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		repos := make([]*core.Repository, 0, len(c.repos))
		for _, r := range c.repos {
			repos = append(repos, r)
		}
		c.mu.Unlock()

		for _, r := range repos {
			r.Stop()
		}
		c.notifier.Stop()
		c.locator.Stop()
	})
	return nil
}

// storeOrNil converts a possibly-nil *cache.Store into the SnapshotStore
// dependency without producing a typed-nil interface.
func storeOrNil(s *cache.Store) core.SnapshotStore {
	if s == nil {
		return nil
	}
	return s
}
