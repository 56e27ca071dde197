package core

import (
	"os"
	"sync"

	"github.com/giantswarm/confsync/internal/sentinel"
)

// ErrTypeMismatch is returned by the E-suffixed typed accessors when the
// property value exists but cannot be parsed as the requested type.
const ErrTypeMismatch = sentinel.Error("property value does not parse as the requested type")

// Facade presents one namespace as a merged read-through view of ordered
// property sources. Lookup order, highest priority first:
//
//  1. process-level overrides (supplied at construction)
//  2. the repository snapshot
//  3. environment variables
//  4. built-in defaults (supplied at construction)
//  5. the call-site default
//
// The read path never returns an error caused by the sync pipeline: a
// missing or stale snapshot simply falls through to the lower sources.
//
// The facade re-publishes repository change events to its own listeners
// after applying the priority rules, so a change invisible through the
// merged view (e.g. an added key shadowed by an override) is filtered out.
type Facade struct {
	repo *Repository

	// overrides and defaults are copied at construction and immutable after.
	overrides map[string]string
	defaults  map[string]string

	// lookupEnv is os.LookupEnv in production; tests substitute a map.
	lookupEnv func(key string) (string, bool)

	listenersMu sync.Mutex
	listeners   []ChangeListener
}

// NewFacade creates a Facade over repo. overrides and defaults may be nil.
// The facade registers itself as a repository listener to re-fire filtered
// change events; callers interested in raw repository events register with
// the repository directly.
func NewFacade(repo *Repository, overrides, defaults map[string]string) *Facade {
	if repo == nil {
		panic("confsync: facade repository must not be nil")
	}
	f := &Facade{
		repo:      repo,
		overrides: copyStringMap(overrides),
		defaults:  copyStringMap(defaults),
		lookupEnv: os.LookupEnv,
	}
	repo.AddListener(ChangeListenerFunc(f.onRepositoryChange))
	return f
}

// Namespace returns the namespace this facade reads.
func (f *Facade) Namespace() string { return f.repo.Namespace() }

// GetProperty returns the merged value for key, or def when no source
// provides one. It never returns an error.
func (f *Facade) GetProperty(key, def string) string {
	if v, ok := f.lookup(key); ok {
		return v
	}
	return def
}

// Has reports whether any source provides a value for key.
func (f *Facade) Has(key string) bool {
	_, ok := f.lookup(key)
	return ok
}

// AddChangeListener registers l for merged change events.
func (f *Facade) AddChangeListener(l ChangeListener) {
	if l == nil {
		return
	}
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	f.listeners = append(f.listeners, l)
}

// RemoveChangeListener removes the first registration of l by identity.
func (f *Facade) RemoveChangeListener(l ChangeListener) {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

// lookup walks the sources in priority order.
func (f *Facade) lookup(key string) (string, bool) {
	if v, ok := f.overrides[key]; ok {
		return v, true
	}
	if snap := f.repo.GetConfig(); snap != nil {
		if v, ok := snap.Get(key); ok {
			return v, true
		}
	}
	if v, ok := f.lookupEnv(key); ok {
		return v, true
	}
	if v, ok := f.defaults[key]; ok {
		return v, true
	}
	return "", false
}

// lookupBelowSnapshot resolves key through the sources below the repository
// snapshot, used to compute effective values around a snapshot change.
func (f *Facade) lookupBelowSnapshot(key string) (string, bool) {
	if v, ok := f.lookupEnv(key); ok {
		return v, true
	}
	if v, ok := f.defaults[key]; ok {
		return v, true
	}
	return "", false
}

// onRepositoryChange recomputes each repository-level change through the
// priority rules and re-fires the surviving changes to facade listeners.
//
// A key shadowed by an override never changes through the merged view and is
// dropped. A deleted key that a lower source still provides degrades to a
// modification (or disappears entirely when the values coincide); an added
// key that a lower source already provided likewise degrades.
func (f *Facade) onRepositoryChange(event *ChangeEvent) {
	var merged []KeyChange
	for _, c := range event.Changes {
		if mc, visible := f.mergeChange(c); visible {
			merged = append(merged, mc)
		}
	}
	if len(merged) == 0 {
		return
	}

	out := &ChangeEvent{Namespace: event.Namespace, Changes: merged}
	f.listenersMu.Lock()
	listeners := make([]ChangeListener, len(f.listeners))
	copy(listeners, f.listeners)
	f.listenersMu.Unlock()
	dispatch(out, listeners)
}

// mergeChange maps one repository-level change onto the merged view.
func (f *Facade) mergeChange(c KeyChange) (KeyChange, bool) {
	if _, shadowed := f.overrides[c.Key]; shadowed {
		return KeyChange{}, false
	}

	below, belowOK := f.lookupBelowSnapshot(c.Key)

	oldValue, hadOld := c.OldValue, c.Type != ChangeAdded
	newValue, hasNew := c.NewValue, c.Type != ChangeDeleted
	if !hadOld && belowOK {
		oldValue, hadOld = below, true
	}
	if !hasNew && belowOK {
		newValue, hasNew = below, true
	}

	switch {
	case hadOld && hasNew:
		if oldValue == newValue {
			return KeyChange{}, false
		}
		return KeyChange{Key: c.Key, OldValue: oldValue, NewValue: newValue, Type: ChangeModified}, true
	case hasNew:
		return KeyChange{Key: c.Key, NewValue: newValue, Type: ChangeAdded}, true
	default:
		return KeyChange{Key: c.Key, OldValue: oldValue, Type: ChangeDeleted}, true
	}
}

// copyStringMap returns a defensive copy of m; nil maps yield empty maps.
func copyStringMap(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
