package core

import (
	"github.com/giantswarm/confsync/internal/wire"
)

// Snapshot is an immutable view of one namespace's configuration as published
// by the config service. A Repository replaces its snapshot wholesale via an
// atomic pointer swap; a Snapshot is never mutated after construction.
//
// Two snapshots are equal iff their release keys are equal: the service
// guarantees that a changed release key implies at least one differing entry.
type Snapshot struct {
	appID      string
	cluster    string
	namespace  string
	releaseKey string

	// configurations is owned exclusively by this Snapshot. The constructor
	// copies the input map and accessors copy on the way out, so no caller
	// can alias the internal map.
	configurations map[string]string

	// messages are the per-channel notification ids that produced this
	// snapshot, if the fetch carried any. May be nil.
	messages *wire.Messages
}

// NewSnapshot creates a Snapshot from a decoded config payload. The
// configurations map and messages bundle are deep-copied.
func NewSnapshot(payload *wire.ConfigPayload, messages *wire.Messages) *Snapshot {
	configs := make(map[string]string, len(payload.Configurations))
	for k, v := range payload.Configurations {
		configs[k] = v
	}
	return &Snapshot{
		appID:          payload.AppID,
		cluster:        payload.Cluster,
		namespace:      payload.NamespaceName,
		releaseKey:     payload.ReleaseKey,
		configurations: configs,
		messages:       messages.Clone(),
	}
}

// AppID returns the application id of the identity triple.
func (s *Snapshot) AppID() string { return s.appID }

// Cluster returns the cluster of the identity triple.
func (s *Snapshot) Cluster() string { return s.cluster }

// Namespace returns the namespace of the identity triple.
func (s *Snapshot) Namespace() string { return s.namespace }

// ReleaseKey returns the opaque server-side version identifier.
func (s *Snapshot) ReleaseKey() string { return s.releaseKey }

// Get returns the value for key and whether the key exists.
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.configurations[key]
	return v, ok
}

// Keys returns the configuration keys. The returned slice is a copy.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.configurations))
	for k := range s.configurations {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of configuration entries.
func (s *Snapshot) Len() int { return len(s.configurations) }

// Configurations returns a copy of the configuration map.
func (s *Snapshot) Configurations() map[string]string {
	cp := make(map[string]string, len(s.configurations))
	for k, v := range s.configurations {
		cp[k] = v
	}
	return cp
}

// Messages returns a copy of the notification messages that produced this
// snapshot, or nil if the fetch carried none.
func (s *Snapshot) Messages() *wire.Messages {
	return s.messages.Clone()
}

// Equal reports whether s and other denote the same published release.
// Equality is by release key only; the service guarantees key-for-content
// fidelity.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.releaseKey == other.releaseKey
}

// Payload converts the snapshot back into its wire form, used by the local
// cache store. The returned payload owns fresh copies.
func (s *Snapshot) Payload() *wire.ConfigPayload {
	return &wire.ConfigPayload{
		AppID:          s.appID,
		Cluster:        s.cluster,
		NamespaceName:  s.namespace,
		Configurations: s.Configurations(),
		ReleaseKey:     s.releaseKey,
	}
}
