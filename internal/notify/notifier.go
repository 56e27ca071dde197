package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/flowcontrol"
	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/meta"
	"github.com/giantswarm/confsync/internal/transport"
	"github.com/giantswarm/confsync/internal/wire"
)

// initialNotificationID is the id sent for a namespace the client has never
// been notified about. The server answers immediately with the current id
// when it is larger.
const initialNotificationID = -1

// propertiesSuffix is the format suffix stripped by the server when
// normalizing namespace names. Fan-out must cover both spellings because
// upstream components may register either.
const propertiesSuffix = ".properties"

// NotificationPoller is the transport capability the notifier needs.
// Satisfied by *transport.Client; tests substitute a stub.
type NotificationPoller interface {
	PollNotifications(ctx context.Context, q transport.NotificationQuery) ([]wire.Notification, error)
}

// Config holds the immutable parameters of the notifier.
type Config struct {
	AppID      string
	Cluster    string
	DataCenter string
	ClientIP   string

	// InitialDelay postpones the first long poll after the worker starts,
	// giving the synchronous initial fetches a quiet network. Default: 2s.
	InitialDelay time.Duration

	// RateLimitWait bounds the defensive limiter wait at the loop head.
	// Default: 5s.
	RateLimitWait time.Duration

	// PollQPS is the long-poll rate limit. Default: 2.
	PollQPS int

	// BackoffMin/BackoffMax bound the retry schedule applied after poll
	// errors. Defaults: 1s and 120s.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// Notifier multiplexes all watched namespaces into one outstanding long poll.
// It is safe for concurrent use; the polling itself runs on a single worker
// goroutine.
//
// Worker state machine: Idle -> Running (first Register, via CAS) ->
// Stopping (Stop) -> Stopped (loop observes the flag). Repeated Register
// calls are no-ops for the worker.
type Notifier struct {
	cfg       Config
	poller    NotificationPoller
	endpoints core.EndpointLister
	limiter   *flowcontrol.Limiter
	backoff   *flowcontrol.Backoff

	// mu guards watch, ids and remote. The worker snapshot-copies ids for
	// URL assembly so the map is never read while being written.
	mu    sync.Mutex
	watch map[string][]core.NotifyTarget
	// ids maps namespace -> last acknowledged notification id. Entries only
	// ever increase once present.
	ids map[string]int64
	// remote maps namespace -> latest message bundle received, merged so
	// channel ids never regress.
	remote map[string]*wire.Messages

	// lastEndpoint is the sticky config-service endpoint reused across
	// polls until an error or an opportunistic rebalance drops it.
	lastEndpoint atomic.Pointer[string]

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewNotifier creates a Notifier. The worker starts on first Register.
// Panics on missing dependencies or non-positive durations: notifier
// configuration is assembled from validated options.
func NewNotifier(cfg Config, poller NotificationPoller, endpoints core.EndpointLister) *Notifier {
	if poller == nil {
		panic("confsync: notifier poller must not be nil")
	}
	if endpoints == nil {
		panic("confsync: notifier endpoint lister must not be nil")
	}
	if cfg.InitialDelay < 0 {
		panic(fmt.Sprintf("confsync: notifier initial delay must not be negative, got %s", cfg.InitialDelay))
	}
	if cfg.RateLimitWait <= 0 || cfg.BackoffMin <= 0 || cfg.BackoffMax < cfg.BackoffMin {
		panic("confsync: notifier durations must be positive and backoff max must not be below min")
	}
	if cfg.PollQPS <= 0 {
		panic(fmt.Sprintf("confsync: notifier poll qps must be greater than 0, got %d", cfg.PollQPS))
	}
	return &Notifier{
		cfg:       cfg,
		poller:    poller,
		endpoints: endpoints,
		limiter:   flowcontrol.NewLimiter(cfg.PollQPS),
		backoff:   flowcontrol.NewBackoff(cfg.BackoffMin, cfg.BackoffMax),
		watch:     make(map[string][]core.NotifyTarget),
		ids:       make(map[string]int64),
		remote:    make(map[string]*wire.Messages),
		stopCh:    make(chan struct{}),
	}
}

// Register adds target to the fan-out for namespace, seeding the id vector
// with -1 if the namespace is new, and starts the worker on the very first
// registration. Returns whether the (namespace, target) pair was newly
// added; duplicate pairs are no-ops.
//
// Implements core.NotifierRegistry.
func (n *Notifier) Register(namespace string, target core.NotifyTarget) bool {
	if target == nil {
		return false
	}

	n.mu.Lock()
	added := false
	existing := n.watch[namespace]
	if !containsTarget(existing, target) {
		n.watch[namespace] = append(existing, target)
		added = true
	}
	if _, ok := n.ids[namespace]; !ok {
		n.ids[namespace] = initialNotificationID
	}
	n.mu.Unlock()

	if n.running.CompareAndSwap(false, true) {
		go n.worker()
	}
	return added
}

// Unregister removes target from the fan-out for namespace. The id vector
// entry is kept: a re-registered namespace must not replay old notifications.
//
// Implements core.NotifierRegistry.
func (n *Notifier) Unregister(namespace string, target core.NotifyTarget) {
	n.mu.Lock()
	defer n.mu.Unlock()
	targets := n.watch[namespace]
	for i, t := range targets {
		if t == target {
			n.watch[namespace] = append(targets[:i], targets[i+1:]...)
			break
		}
	}
	if len(n.watch[namespace]) == 0 {
		delete(n.watch, namespace)
	}
}

// Stop sets the stop flag; the worker exits at the next loop-head check.
// An in-flight long poll is not aborted; it completes or times out within
// the poll read timeout. Idempotent.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
}

// NotificationID returns the last acknowledged id for namespace, or -1.
func (n *Notifier) NotificationID(namespace string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if id, ok := n.ids[namespace]; ok {
		return id
	}
	return initialNotificationID
}

// worker is the single polling goroutine.
func (n *Notifier) worker() {
	if n.cfg.InitialDelay > 0 {
		if !n.sleep(n.cfg.InitialDelay) {
			return
		}
	}

	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		// Defensive gate only: at the default QPS a token is always there.
		// On timeout, proceed after a fixed extra sleep; never drop a poll.
		ctx := context.Background()
		if !n.limiter.TryAcquire(ctx, n.cfg.RateLimitWait) {
			logging.Logger().Warn("long-poll rate limit wait timed out; proceeding")
			if !n.sleep(n.cfg.RateLimitWait) {
				return
			}
		}

		if err := n.pollOnce(ctx); err != nil {
			n.lastEndpoint.Store(nil)
			logging.Logger().Warn("long poll failed; backing off", "error", err)
			if !n.sleep(n.backoff.Fail()) {
				return
			}
		}
	}
}

// pollOnce issues one long poll and processes its outcome.
func (n *Notifier) pollOnce(ctx context.Context) error {
	endpoint, err := n.pickEndpoint(ctx)
	if err != nil {
		return err
	}

	changes, err := n.poller.PollNotifications(ctx, transport.NotificationQuery{
		Endpoint:   endpoint,
		AppID:      n.cfg.AppID,
		Cluster:    n.cfg.Cluster,
		DataCenter: n.cfg.DataCenter,
		ClientIP:   n.cfg.ClientIP,
		IDs:        n.idsSnapshot(),
	})
	switch {
	case err == nil:
		n.advance(changes)
		n.fanOut(changes, endpoint)
		n.backoff.Success()
		return nil
	case errors.Is(err, transport.ErrNotModified):
		// The hold expired quietly. Occasionally drop the sticky endpoint so
		// long-lived clients spread across service instances as the fleet
		// scales.
		n.backoff.Success()
		if rand.Float64() < 0.5 {
			n.lastEndpoint.Store(nil)
		}
		return nil
	default:
		return err
	}
}

// pickEndpoint reuses the sticky endpoint when present, otherwise selects a
// random one from the locator.
func (n *Notifier) pickEndpoint(ctx context.Context) (string, error) {
	if e := n.lastEndpoint.Load(); e != nil && *e != "" {
		return *e, nil
	}
	services, err := n.endpoints.GetConfigServices(ctx)
	if err != nil {
		return "", err
	}
	ordered := meta.Order(services, "")
	endpoint := ordered[0].HomepageURL
	n.lastEndpoint.Store(&endpoint)
	return endpoint, nil
}

// idsSnapshot copies the id vector for URL assembly.
func (n *Notifier) idsSnapshot() map[string]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make(map[string]int64, len(n.ids))
	for ns, id := range n.ids {
		cp[ns] = id
	}
	return cp
}

// advance raises the id vector and the remote message bundles for the
// returned changes. Only increases are applied: a reordered or replayed
// response can never regress an acknowledged id.
func (n *Notifier) advance(changes []wire.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range changes {
		if cur, ok := n.ids[c.NamespaceName]; !ok || c.NotificationID > cur {
			n.ids[c.NamespaceName] = c.NotificationID
		}
		if !c.Messages.IsEmpty() {
			if existing, ok := n.remote[c.NamespaceName]; ok {
				existing.Merge(c.Messages)
			} else {
				n.remote[c.NamespaceName] = c.Messages.Clone()
			}
		}
	}
}

// fanOut wakes every repository registered under each changed namespace,
// including the format-suffixed spelling the server normalized away. Each
// target receives its own copy of the message bundle; a panicking target is
// logged and must not block the others.
func (n *Notifier) fanOut(changes []wire.Notification, endpoint string) {
	for _, c := range changes {
		targets := n.targetsFor(c.NamespaceName)
		if len(targets) == 0 {
			continue
		}
		logging.Logger().Info("long poll reported change",
			"namespace", c.NamespaceName, "notificationId", c.NotificationID, "targets", len(targets))
		for _, t := range targets {
			n.notifyOne(t, c.NamespaceName, endpoint, c.Messages.Clone())
		}
	}
}

// targetsFor collects the fan-out list for one normalized namespace name.
func (n *Notifier) targetsFor(namespace string) []core.NotifyTarget {
	n.mu.Lock()
	defer n.mu.Unlock()
	targets := append([]core.NotifyTarget(nil), n.watch[namespace]...)
	if !strings.HasSuffix(namespace, propertiesSuffix) {
		targets = append(targets, n.watch[namespace+propertiesSuffix]...)
	}
	return targets
}

// notifyOne wakes a single target, isolating panics.
func (n *Notifier) notifyOne(t core.NotifyTarget, namespace, endpoint string, messages *wire.Messages) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("notify target panicked",
				"namespace", namespace, "panic", r)
		}
	}()
	t.OnLongPollNotified(endpoint, messages)
}

// sleep waits for d unless Stop fires first; returns false on stop.
func (n *Notifier) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-n.stopCh:
		return false
	}
}

// containsTarget reports identity membership.
func containsTarget(targets []core.NotifyTarget, t core.NotifyTarget) bool {
	for _, existing := range targets {
		if existing == t {
			return true
		}
	}
	return false
}
