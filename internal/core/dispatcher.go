package core

import (
	"github.com/giantswarm/confsync/internal/logging"
)

// ChangeListener receives change events for one namespace. Implementations
// run on the goroutine that drove the publication (a refresh tick or a
// long-poll wake), so they should return quickly and hand expensive work to
// their own goroutines.
type ChangeListener interface {
	// OnChange is invoked once per snapshot publication with the full set of
	// key changes. Events for one namespace arrive in publication order.
	OnChange(event *ChangeEvent)
}

// ErrorListener is an optional extension of ChangeListener. Listeners that
// implement it are additionally told when a sync attempt fails; the prior
// snapshot stays in place, so this is informational.
type ErrorListener interface {
	// OnSyncError is invoked when a sync exhausts its retries. The repository
	// keeps serving the previous snapshot and will retry on the next tick.
	OnSyncError(namespace string, err error)
}

// ChangeListenerFunc adapts a function to the ChangeListener interface.
type ChangeListenerFunc func(event *ChangeEvent)

// OnChange implements ChangeListener.
func (f ChangeListenerFunc) OnChange(event *ChangeEvent) { f(event) }

// dispatch delivers event to every listener, isolating panics: one bad
// listener must not prevent delivery to the others. The listeners slice is a
// snapshot taken by the caller under the listener lock, so registration
// racing with a publication affects only subsequent events.
func dispatch(event *ChangeEvent, listeners []ChangeListener) {
	for _, l := range listeners {
		safeOnChange(l, event)
	}
}

// safeOnChange invokes one listener, converting a panic into a log entry.
func safeOnChange(l ChangeListener, event *ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("change listener panicked",
				"namespace", event.Namespace, "panic", r)
		}
	}()
	l.OnChange(event)
}

// dispatchError reports a sync failure to every listener implementing
// ErrorListener, with the same panic isolation as dispatch.
func dispatchError(namespace string, err error, listeners []ChangeListener) {
	for _, l := range listeners {
		el, ok := l.(ErrorListener)
		if !ok {
			continue
		}
		safeOnSyncError(el, namespace, err)
	}
}

// safeOnSyncError invokes one error listener, converting a panic into a log entry.
func safeOnSyncError(l ErrorListener, namespace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("error listener panicked",
				"namespace", namespace, "panic", r)
		}
	}()
	l.OnSyncError(namespace, err)
}
