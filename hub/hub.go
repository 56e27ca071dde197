package hub

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/wire"
)

// ErrTooManyNamespaces is returned by Poll when the client vector exceeds
// the batch limit. Oversized vectors indicate a misbehaving client; parking
// them would let one caller occupy unbounded index entries.
const ErrTooManyNamespaces = sentinel.Error("too many namespaces in one poll")

// ErrNoNamespaces is returned by Poll for an empty client vector.
const ErrNoNamespaces = sentinel.Error("poll carries no namespaces")

// DefaultHoldTimeout is how long a parked watcher is held before the poll is
// answered 304. The client's read timeout is calibrated against this value,
// so changing it in production requires coordinating both sides.
const DefaultHoldTimeout = 60 * time.Second

// DefaultBatchLimit bounds the number of namespaces one poll may watch.
const DefaultBatchLimit = 32

// propertiesSuffix is stripped when normalizing namespace names. Clients may
// watch either spelling; the id table uses the normalized one and responses
// restore the client's original.
const propertiesSuffix = ".properties"

// Option configures a Hub during construction.
type Option func(*Hub)

// WithHoldTimeout overrides the park duration. Panics if d <= 0.
func WithHoldTimeout(d time.Duration) Option {
	if d <= 0 {
		panic(fmt.Sprintf("confsync: hub hold timeout must be greater than 0, got %s", d))
	}
	return func(h *Hub) {
		h.holdTimeout = d
	}
}

// WithBatchLimit overrides the per-poll namespace limit. Panics if n <= 0.
func WithBatchLimit(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("confsync: hub batch limit must be greater than 0, got %d", n))
	}
	return func(h *Hub) {
		h.batchLimit = n
	}
}

// Hub is the in-memory notification state: the id table and the parked
// watcher index. It is safe for concurrent use.
type Hub struct {
	holdTimeout time.Duration
	batchLimit  int
	metrics     *metrics

	// mu guards ids, messages and parked. Watcher completion happens outside
	// the lock; only index membership is guarded.
	mu sync.Mutex
	// ids maps watch key -> latest published notification id. Absent keys
	// have never seen a publication.
	ids map[string]int64
	// messages maps watch key -> merged per-channel ids of its publications.
	messages map[string]*wire.Messages
	// parked indexes waiting watchers by every watch key of their vector.
	parked map[string]map[*Watcher]struct{}
}

// New creates a Hub and registers its metrics with reg. A nil reg skips
// metric registration, which the tests use.
func New(reg prometheus.Registerer, opts ...Option) *Hub {
	h := &Hub{
		holdTimeout: DefaultHoldTimeout,
		batchLimit:  DefaultBatchLimit,
		metrics:     newMetrics(reg),
		ids:         make(map[string]int64),
		messages:    make(map[string]*wire.Messages),
		parked:      make(map[string]map[*Watcher]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HoldTimeout returns the configured park duration.
func (h *Hub) HoldTimeout() time.Duration { return h.holdTimeout }

// Poll evaluates one client vector. When any watched namespace already has a
// newer notification, the newer entries are returned immediately (with the
// client's original namespace spellings). Otherwise a parked Watcher is
// returned; the caller waits on Watcher.Done with the hold timeout.
//
// Exactly one of the two results is non-nil on success.
func (h *Hub) Poll(appID, cluster string, entries []wire.Notification) ([]wire.Notification, *Watcher, error) {
	if len(entries) == 0 {
		return nil, nil, ErrNoNamespaces
	}
	if len(entries) > h.batchLimit {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrTooManyNamespaces, len(entries), h.batchLimit)
	}

	w := &Watcher{
		id:        uuid.NewString(),
		hub:       h,
		appID:     appID,
		cluster:   cluster,
		vector:    make(map[string]int64, len(entries)),
		originals: make(map[string]string, len(entries)),
		done:      make(chan struct{}),
	}
	for _, e := range entries {
		normalized := normalizeNamespace(e.NamespaceName)
		key := assembleKey(appID, cluster, normalized)
		if cur, ok := w.vector[key]; ok {
			// Both spellings of one namespace collapse to the same watch key.
			// Keep the smaller id (and its spelling) so the more-behind
			// entry cannot be starved of news.
			if e.NotificationID < cur {
				w.vector[key] = e.NotificationID
				w.originals[normalized] = e.NamespaceName
			}
			continue
		}
		w.keys = append(w.keys, key)
		w.vector[key] = e.NotificationID
		w.originals[normalized] = e.NamespaceName
	}

	h.mu.Lock()
	newer := h.newerThanLocked(w)
	if len(newer) > 0 {
		h.mu.Unlock()
		h.metrics.immediateReplies.Inc()
		return newer, nil, nil
	}

	for _, key := range w.keys {
		idx, ok := h.parked[key]
		if !ok {
			idx = make(map[*Watcher]struct{})
			h.parked[key] = idx
		}
		idx[w] = struct{}{}
	}
	h.mu.Unlock()

	h.metrics.parkedWatchers.Inc()
	logging.Logger().Debug("parked long-poll watcher",
		"watcher", w.id, "appId", appID, "cluster", cluster, "namespaces", len(entries))
	return nil, w, nil
}

// Publish records a new notification id for the namespace and releases every
// parked watcher whose vector is behind. Ids only move forward; publishing a
// stale id is a no-op for the table but still a broadcastable event for
// watchers that have never seen the key.
func (h *Hub) Publish(appID, cluster, namespace string, notificationID int64, messages *wire.Messages) {
	normalized := normalizeNamespace(namespace)
	key := assembleKey(appID, cluster, normalized)

	h.mu.Lock()
	if cur, ok := h.ids[key]; !ok || notificationID > cur {
		h.ids[key] = notificationID
	}
	if !messages.IsEmpty() {
		if existing, ok := h.messages[key]; ok {
			existing.Merge(messages)
		} else {
			h.messages[key] = messages.Clone()
		}
	}

	type release struct {
		w       *Watcher
		entries []wire.Notification
	}
	var releases []release
	for w := range h.parked[key] {
		entries := h.newerThanLocked(w)
		if len(entries) == 0 {
			continue
		}
		h.detachLocked(w)
		releases = append(releases, release{w: w, entries: entries})
	}
	h.mu.Unlock()

	h.metrics.publishes.Inc()
	for _, r := range releases {
		r.w.complete(r.entries)
		h.metrics.parkedWatchers.Dec()
	}
	if len(releases) > 0 {
		logging.Logger().Info("released parked watchers",
			"key", key, "notificationId", notificationID, "watchers", len(releases))
	}
}

// PublishNext advances the namespace's notification id by one and publishes
// it, returning the new id. Used by the admin publish endpoint where the
// caller does not track ids itself.
func (h *Hub) PublishNext(appID, cluster, namespace string, messages *wire.Messages) int64 {
	key := assembleKey(appID, cluster, normalizeNamespace(namespace))

	h.mu.Lock()
	next := h.ids[key] + 1
	h.mu.Unlock()

	h.Publish(appID, cluster, namespace, next, messages)
	return next
}

// NotificationID returns the latest published id for the namespace, or -1
// when nothing has been published.
func (h *Hub) NotificationID(appID, cluster, namespace string) int64 {
	key := assembleKey(appID, cluster, normalizeNamespace(namespace))
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.ids[key]; ok {
		return id
	}
	return -1
}

// newerThanLocked collects the entries of w's vector whose published id is
// ahead of the client's, restoring the original namespace spellings. Caller
// holds mu.
func (h *Hub) newerThanLocked(w *Watcher) []wire.Notification {
	var newer []wire.Notification
	for _, key := range w.keys {
		latest, ok := h.ids[key]
		if !ok || latest <= w.vector[key] {
			continue
		}
		normalized := namespaceOfKey(key)
		newer = append(newer, wire.Notification{
			NamespaceName:  w.originalName(normalized),
			NotificationID: latest,
			Messages:       h.messages[key].Clone(),
		})
	}
	return newer
}

// detachLocked removes w from every index entry of its vector. Caller holds mu.
func (h *Hub) detachLocked(w *Watcher) {
	for _, key := range w.keys {
		idx, ok := h.parked[key]
		if !ok {
			continue
		}
		delete(idx, w)
		if len(idx) == 0 {
			delete(h.parked, key)
		}
	}
}

// cancel detaches w on behalf of Watcher.Cancel. Returns whether the watcher
// was still parked (false when a concurrent Publish already released it).
func (h *Hub) cancel(w *Watcher) bool {
	h.mu.Lock()
	parked := false
	for _, key := range w.keys {
		if _, ok := h.parked[key][w]; ok {
			parked = true
			break
		}
	}
	h.detachLocked(w)
	h.mu.Unlock()

	if parked {
		h.metrics.parkedWatchers.Dec()
	}
	return parked
}

// Watcher is one parked long poll. It completes exactly once: either Publish
// releases it with the newer entries, or Cancel resolves it as not-modified
// (hold expiry, client disconnect).
type Watcher struct {
	id      string
	hub     *Hub
	appID   string
	cluster string

	// keys is the watch-key form of the client vector; vector maps each key
	// to the client's last acknowledged id.
	keys   []string
	vector map[string]int64
	// originals maps normalized namespace -> the spelling the client sent.
	// The namespace name is a lookup key on the client side, so responses
	// must carry the original spelling, not the normalized one.
	originals map[string]string

	once   sync.Once
	done   chan struct{}
	result []wire.Notification
}

// ID returns the watcher's correlation id.
func (w *Watcher) ID() string { return w.id }

// Done is closed when the watcher completes.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Result returns the released entries and true, or nil and false when the
// watcher resolved as not-modified. Valid only after Done is closed.
func (w *Watcher) Result() ([]wire.Notification, bool) {
	return w.result, len(w.result) > 0
}

// Cancel resolves the watcher as not-modified and detaches it from the hub's
// index. Safe to call after a concurrent release; completion stays
// exactly-once. Idempotent.
func (w *Watcher) Cancel() {
	w.hub.cancel(w)
	w.complete(nil)
}

// complete resolves the watcher exactly once.
func (w *Watcher) complete(entries []wire.Notification) {
	w.once.Do(func() {
		w.result = entries
		close(w.done)
	})
}

// originalName maps a normalized namespace back to the client's spelling.
func (w *Watcher) originalName(normalized string) string {
	if original, ok := w.originals[normalized]; ok {
		return original
	}
	return normalized
}

// assembleKey builds the watch key for an identity triple.
func assembleKey(appID, cluster, namespace string) string {
	return appID + "+" + cluster + "+" + namespace
}

// namespaceOfKey extracts the namespace from a watch key.
func namespaceOfKey(key string) string {
	parts := strings.SplitN(key, "+", 3)
	return parts[len(parts)-1]
}

// normalizeNamespace strips the properties format suffix, case-insensitively.
func normalizeNamespace(namespace string) string {
	if len(namespace) > len(propertiesSuffix) &&
		strings.EqualFold(namespace[len(namespace)-len(propertiesSuffix):], propertiesSuffix) {
		return namespace[:len(namespace)-len(propertiesSuffix)]
	}
	return namespace
}
