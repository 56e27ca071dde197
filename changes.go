package confsync

import "github.com/giantswarm/confsync/internal/core"

// ChangeType classifies a single key transition between two snapshots.
//
// ChangeType is a type alias (not a named type) so that the underlying
// [core.ChangeType] methods are part of the public API:
//
//   - IsValid reports whether the value is a recognized change type.
//   - String returns the name (implements [fmt.Stringer]).
type ChangeType = core.ChangeType

const (
	// ChangeAdded marks a key present in the new snapshot but not the old.
	ChangeAdded = core.ChangeAdded

	// ChangeModified marks a key whose value differs between the snapshots.
	ChangeModified = core.ChangeModified

	// ChangeDeleted marks a key present in the old snapshot but not the new.
	ChangeDeleted = core.ChangeDeleted
)

// KeyChange describes one key's transition between two snapshots.
type KeyChange = core.KeyChange

// ChangeEvent is delivered to listeners when a namespace publishes a new
// snapshot. Changes are sorted by key.
type ChangeEvent = core.ChangeEvent

// ChangeListener receives change events for one namespace. Callbacks run on
// the background goroutine that drove the publication, so they should return
// quickly and hand expensive work to their own goroutines. A panicking
// listener is logged and isolated; it never blocks the other listeners.
type ChangeListener = core.ChangeListener

// ChangeListenerFunc adapts a function to the ChangeListener interface.
type ChangeListenerFunc = core.ChangeListenerFunc

// ErrorListener is an optional extension of ChangeListener: implementations
// are additionally told when a sync attempt fails. The prior snapshot stays
// in place, so the callback is informational.
type ErrorListener = core.ErrorListener
