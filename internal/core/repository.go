package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/confsync/internal/flowcontrol"
	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/meta"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/transport"
	"github.com/giantswarm/confsync/internal/wire"
)

// ErrInitialLoadFailed is returned by Start when the first fetch yields no
// snapshot. The caller decides whether to fall back to the local cache or
// abort.
const ErrInitialLoadFailed = sentinel.Error("initial configuration load failed")

// ErrLoadFailed is returned by Sync when every endpoint of every attempt
// failed. The previous snapshot, if any, stays in place.
const ErrLoadFailed = sentinel.Error("configuration load failed")

// ErrRepositoryStopped is returned by Sync after Stop.
const ErrRepositoryStopped = sentinel.Error("repository is stopped")

// repoState represents the lifecycle state of a Repository.
type repoState uint32

const (
	repoCreated repoState = iota // Zero value; NewRepository returns in this state
	repoStarted                  // Start succeeded; background refresh running
	repoStopped                  // Stop called
)

// NotifyTarget is the capability a repository exposes to the long-poll
// notifier. The notifier holds targets as non-owning references; the
// repository owns its lifecycle and unregisters itself on Stop.
type NotifyTarget interface {
	// OnLongPollNotified tells the target that the service reported a change
	// for its namespace. endpointURL is the config-service instance that
	// answered the poll, usable as a one-shot fetch hint. messages is the
	// target's private copy of the per-channel notification ids.
	OnLongPollNotified(endpointURL string, messages *wire.Messages)
}

// NotifierRegistry is the registration surface of the long-poll notifier.
type NotifierRegistry interface {
	// Register adds target to the fan-out for namespace and returns whether
	// the pair was newly added. Idempotent for duplicate pairs.
	Register(namespace string, target NotifyTarget) bool
	// Unregister removes target from the fan-out for namespace.
	Unregister(namespace string, target NotifyTarget)
}

// ConfigFetcher is the transport capability a repository needs.
// Satisfied by *transport.Client; tests substitute a stub.
type ConfigFetcher interface {
	GetConfig(ctx context.Context, q transport.ConfigQuery) (*wire.ConfigPayload, error)
}

// EndpointLister resolves config-service endpoints. Satisfied by
// *meta.Locator.
type EndpointLister interface {
	GetConfigServices(ctx context.Context) ([]wire.ServiceInstance, error)
}

// SnapshotStore persists published snapshots so the next process start can
// serve stale-but-available data. Satisfied by *cache.Store.
type SnapshotStore interface {
	Save(snapshot *Snapshot) error
}

// RepositoryDeps bundles the collaborators injected into a Repository.
// Fetcher, Endpoints and Limiter are required; Notifier and Store may be nil
// (no long-poll wake-ups, no persistence), which the tests use.
type RepositoryDeps struct {
	Fetcher   ConfigFetcher
	Endpoints EndpointLister
	Limiter   *flowcontrol.Limiter
	Notifier  NotifierRegistry
	Store     SnapshotStore
}

// Repository maintains the local snapshot of one namespace and keeps it
// fresh: synchronously on Start, on a fixed-rate fallback timer, and on
// long-poll wake-ups. It is safe for concurrent use.
//
// Synchronization strategy:
//   - snapshot is an atomic.Pointer: reads are wait-free and never observe
//     a torn value; the only writer is Sync, serialized by syncMu.
//   - syncMu serializes Sync invocations per repository, which also makes
//     snapshot publications (and therefore change events) monotonic.
//   - listeners are guarded by listenersMu; each dispatch uses a snapshot of
//     the slice taken at publication entry, so add/remove may race with a
//     publication without affecting the in-flight event.
//   - forceRefresh, the endpoint hint and the state enum are atomics written
//     by the notifier goroutine and consumed by Sync.
type Repository struct {
	cfg  RepositoryConfig
	deps RepositoryDeps

	backoff *flowcontrol.Backoff

	snapshot atomic.Pointer[Snapshot]
	syncMu   sync.Mutex

	listenersMu sync.Mutex
	listeners   []ChangeListener

	// forceRefresh is set by a long-poll wake: the server said a change
	// exists, so a 304 on the next fetch is replication lag and warrants one
	// extra attempt. Cleared after a successful load.
	forceRefresh atomic.Bool

	// hint is the config-service endpoint that answered the last long poll,
	// consumed (and cleared) by the next load attempt.
	hint atomic.Pointer[string]

	// msgMu guards lastMessages, the latest per-channel notification ids
	// delivered to this repository. Sent with every fetch so the service can
	// pick the release matching the notification.
	msgMu        sync.Mutex
	lastMessages *wire.Messages

	state atomic.Uint32 // repoState; zero value is repoCreated

	// wakeCh coalesces long-poll wake-ups for the background goroutine.
	// Buffered with one slot: a wake during an in-flight sync pends exactly
	// one more sync, which is sufficient because Sync always fetches the
	// newest state.
	wakeCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Compile-time check: the repository is a valid notifier target.
var _ NotifyTarget = (*Repository)(nil)

// NewRepository creates a Repository. It performs no I/O; call Start.
//
// Panics if cfg is invalid or a required dependency is missing, mirroring
// the construction contract of the other core types.
func NewRepository(cfg RepositoryConfig, deps RepositoryDeps) *Repository {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("confsync: invalid repository config: %v", err))
	}
	if deps.Fetcher == nil {
		panic("confsync: repository fetcher must not be nil")
	}
	if deps.Endpoints == nil {
		panic("confsync: repository endpoint lister must not be nil")
	}
	if deps.Limiter == nil {
		panic("confsync: repository rate limiter must not be nil")
	}
	return &Repository{
		cfg:     cfg,
		deps:    deps,
		backoff: flowcontrol.NewBackoff(cfg.OnErrorRetryInterval, cfg.MaxRetryInterval),
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Namespace returns the namespace this repository watches.
func (r *Repository) Namespace() string { return r.cfg.Namespace }

// Start fetches the namespace once synchronously, registers with the
// notifier and arms the fallback refresh timer.
//
// On first-fetch failure it returns an error wrapping ErrInitialLoadFailed
// and does NOT start the background machinery; the caller may seed the
// repository from the local cache via Restore and call Start again, or
// abort.
func (r *Repository) Start(ctx context.Context) error {
	switch repoState(r.state.Load()) {
	case repoStarted:
		return nil
	case repoStopped:
		return ErrRepositoryStopped
	case repoCreated:
	}

	if r.snapshot.Load() == nil {
		if err := r.Sync(ctx); err != nil {
			return fmt.Errorf("%w: namespace %q: %w", ErrInitialLoadFailed, r.cfg.Namespace, err)
		}
	}

	if !r.state.CompareAndSwap(uint32(repoCreated), uint32(repoStarted)) {
		// Lost the race to a concurrent Start (or Stop); nothing to undo,
		// the winner owns the background machinery.
		return nil
	}

	if r.deps.Notifier != nil {
		r.deps.Notifier.Register(r.cfg.Namespace, r)
	}
	go r.run()
	return nil
}

// Restore seeds the repository with a snapshot loaded from the local cache.
// Only permitted before the first successful sync; a cached snapshot must
// never clobber fresher remote data.
func (r *Repository) Restore(snapshot *Snapshot) {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()
	if r.snapshot.Load() != nil {
		return
	}
	r.snapshot.Store(snapshot)
}

// GetConfig returns the current snapshot without blocking, or nil before the
// first successful fetch.
func (r *Repository) GetConfig() *Snapshot {
	return r.snapshot.Load()
}

// AddListener registers l for change events. Duplicate registrations are
// kept: a listener registered twice is invoked twice, matching the ordered
// multiset semantics of the dispatch list.
func (r *Repository) AddListener(l ChangeListener) {
	if l == nil {
		return
	}
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

// RemoveListener removes the first registration of l, comparing by identity.
func (r *Repository) RemoveListener(l ChangeListener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// listenerSnapshot returns the dispatch list for one publication.
func (r *Repository) listenerSnapshot() []ChangeListener {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	cp := make([]ChangeListener, len(r.listeners))
	copy(cp, r.listeners)
	return cp
}

// OnLongPollNotified implements NotifyTarget. It runs on the notifier's
// worker goroutine and must not block: it records the endpoint hint and the
// message bundle, flags the force refresh, and pends an asynchronous sync.
func (r *Repository) OnLongPollNotified(endpointURL string, messages *wire.Messages) {
	if endpointURL != "" {
		r.hint.Store(&endpointURL)
	}
	r.mergeMessages(messages)
	r.forceRefresh.Store(true)

	select {
	case r.wakeCh <- struct{}{}:
	default:
		// A sync is already pending; it will observe this wake's state.
	}
}

// Stop cancels the refresh timer and the notifier registration. Idempotent.
// In-flight HTTP requests are not aborted; they complete or time out on
// their own.
func (r *Repository) Stop() {
	r.stopOnce.Do(func() {
		r.state.Store(uint32(repoStopped))
		close(r.stopCh)
		if r.deps.Notifier != nil {
			r.deps.Notifier.Unregister(r.cfg.Namespace, r)
		}
	})
}

// run is the background goroutine: fallback refresh ticks and long-poll
// wake-ups both funnel into Sync. Exits on Stop.
func (r *Repository) run() {
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
		case <-r.wakeCh:
		}
		// Re-check after waking from a potentially long select: Stop may
		// have raced with a tick or wake.
		select {
		case <-r.stopCh:
			return
		default:
		}

		if err := r.Sync(context.Background()); err != nil {
			logging.Logger().Warn("background sync failed; previous snapshot stays in place",
				"namespace", r.cfg.Namespace, "error", err)
		}
	}
}

// Sync loads the newest snapshot and publishes it if the release key moved.
// Serialized per repository: concurrent callers queue on the sync mutex, so
// snapshot publications and change events are strictly ordered.
//
// On failure the previous snapshot stays in place, listeners implementing
// ErrorListener are told, and the error (wrapping ErrLoadFailed unless the
// repository is stopped) is returned.
func (r *Repository) Sync(ctx context.Context) error {
	if repoState(r.state.Load()) == repoStopped {
		return ErrRepositoryStopped
	}

	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	prev := r.snapshot.Load()
	next, err := r.load(ctx, prev)
	if err != nil {
		dispatchError(r.cfg.Namespace, err, r.listenerSnapshot())
		return err
	}

	r.forceRefresh.Store(false)
	r.backoff.Success()

	if next.Equal(prev) {
		return nil
	}

	r.snapshot.Store(next)
	r.persist(next)

	event := &ChangeEvent{Namespace: r.cfg.Namespace, Changes: Diff(prev, next)}
	dispatch(event, r.listenerSnapshot())
	return nil
}

// persist writes the published snapshot to the local store, best effort.
func (r *Repository) persist(snapshot *Snapshot) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.Save(snapshot); err != nil {
		logging.Logger().Warn("failed to persist snapshot to local cache",
			"namespace", r.cfg.Namespace, "error", err)
	}
}

// load fetches a snapshot, iterating endpoints and attempts per the retry
// policy: 2 attempts when a long-poll wake demanded the refresh (a 304 then
// is replication lag worth one more try), 1 otherwise.
func (r *Repository) load(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
	// Defensive gate: a token should always be available at the default
	// 2 QPS; when it is not, proceed after a bounded wait rather than drop
	// the sync.
	if !r.deps.Limiter.TryAcquire(ctx, r.cfg.RateLimitWait) {
		logging.Logger().Warn("config fetch rate limit wait timed out; proceeding",
			"namespace", r.cfg.Namespace)
		if err := r.sleep(ctx, r.cfg.RateLimitWait); err != nil {
			return nil, err
		}
	}

	forced := r.forceRefresh.Load()
	attempts := 1
	if forced {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		services, err := r.deps.Endpoints.GetConfigServices(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		ordered := meta.Order(services, r.consumeHint())

		for _, svc := range ordered {
			payload, err := r.deps.Fetcher.GetConfig(ctx, transport.ConfigQuery{
				Endpoint:   svc.HomepageURL,
				AppID:      r.cfg.AppID,
				Cluster:    r.cfg.Cluster,
				Namespace:  r.cfg.Namespace,
				ReleaseKey: releaseKeyOf(prev),
				DataCenter: r.cfg.DataCenter,
				ClientIP:   r.cfg.ClientIP,
				Messages:   r.messagesCopy(),
			})
			switch {
			case err == nil:
				return NewSnapshot(payload, r.messagesCopy()), nil
			case errors.Is(err, transport.ErrNotModified):
				if prev == nil {
					// A 304 without a prior snapshot means the release key
					// parameter was empty and the server misbehaved; treat
					// as an endpoint failure.
					lastErr = fmt.Errorf("endpoint %s answered 304 without a prior snapshot", svc.HomepageURL)
					break
				}
				if forced && attempt < attempts-1 {
					// The long poll said a change exists but this instance
					// has not seen the release yet. Give replication one
					// more chance before settling for the previous state.
					lastErr = err
					break
				}
				return prev, nil
			default:
				lastErr = err
				logging.Logger().Warn("config fetch failed; trying next endpoint",
					"namespace", r.cfg.Namespace, "endpoint", svc.HomepageURL, "error", err)
			}

			if err := r.sleep(ctx, r.retrySleep(forced)); err != nil {
				return nil, err
			}
			if forced && errors.Is(lastErr, transport.ErrNotModified) {
				// Stale 304: move straight to the next attempt instead of
				// hammering the remaining endpoints of this one.
				break
			}
		}
	}
	return nil, fmt.Errorf("%w: namespace %q after %d attempt(s): %w",
		ErrLoadFailed, r.cfg.Namespace, attempts, lastErr)
}

// retrySleep is the between-endpoint delay: fixed when the sync was demanded
// by a long-poll wake (freshness beats politeness), exponential otherwise.
func (r *Repository) retrySleep(forced bool) time.Duration {
	if forced {
		return r.cfg.OnErrorRetryInterval
	}
	return r.backoff.Fail()
}

// sleep waits for d, returning early with an error if the repository stops
// or ctx is canceled. Early wake-ups re-check the stop condition rather than
// being silently swallowed.
func (r *Repository) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.stopCh:
		return ErrRepositoryStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consumeHint returns the one-shot endpoint hint and clears it.
func (r *Repository) consumeHint() string {
	if h := r.hint.Swap(nil); h != nil {
		return *h
	}
	return ""
}

// mergeMessages folds a delivered message bundle into lastMessages.
func (r *Repository) mergeMessages(messages *wire.Messages) {
	if messages.IsEmpty() {
		return
	}
	r.msgMu.Lock()
	defer r.msgMu.Unlock()
	if r.lastMessages == nil {
		r.lastMessages = messages.Clone()
		return
	}
	r.lastMessages.Merge(messages)
}

// messagesCopy returns a private copy of lastMessages for one fetch.
func (r *Repository) messagesCopy() *wire.Messages {
	r.msgMu.Lock()
	defer r.msgMu.Unlock()
	return r.lastMessages.Clone()
}

// releaseKeyOf is nil-tolerant.
func releaseKeyOf(s *Snapshot) string {
	if s == nil {
		return ""
	}
	return s.ReleaseKey()
}
