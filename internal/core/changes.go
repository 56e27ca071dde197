package core

import (
	"fmt"
	"sort"
)

// ChangeType classifies a single key transition between two snapshots.
type ChangeType int

const (
	// ChangeAdded marks a key present in the new snapshot but not the old.
	ChangeAdded ChangeType = iota
	// ChangeModified marks a key present in both snapshots with differing values.
	ChangeModified
	// ChangeDeleted marks a key present in the old snapshot but not the new.
	ChangeDeleted
)

// IsValid reports whether t is a recognized ChangeType value.
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeAdded, ChangeModified, ChangeDeleted:
		return true
	default:
		return false
	}
}

// String returns the name of the change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "ADDED"
	case ChangeModified:
		return "MODIFIED"
	case ChangeDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// KeyChange describes one key's transition between two snapshots.
// OldValue is empty for ChangeAdded; NewValue is empty for ChangeDeleted.
type KeyChange struct {
	Key      string
	OldValue string
	NewValue string
	Type     ChangeType
}

// ChangeEvent is delivered to listeners when a repository publishes a new
// snapshot. Changes are sorted by key for deterministic delivery.
type ChangeEvent struct {
	Namespace string
	Changes   []KeyChange
}

// ChangedKeys returns the keys touched by the event, in delivery order.
func (e *ChangeEvent) ChangedKeys() []string {
	keys := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		keys[i] = c.Key
	}
	return keys
}

// Change returns the change for key, or false if the event does not touch it.
func (e *ChangeEvent) Change(key string) (KeyChange, bool) {
	for _, c := range e.Changes {
		if c.Key == key {
			return c, true
		}
	}
	return KeyChange{}, false
}

// Diff computes the key changes from prev to next. Either snapshot may be
// nil, standing for the empty configuration (e.g. prev is nil on the first
// publication). The result is sorted by key.
func Diff(prev, next *Snapshot) []KeyChange {
	var changes []KeyChange

	if next != nil {
		for _, key := range next.Keys() {
			newValue, _ := next.Get(key)
			if prev == nil {
				changes = append(changes, KeyChange{Key: key, NewValue: newValue, Type: ChangeAdded})
				continue
			}
			oldValue, existed := prev.Get(key)
			switch {
			case !existed:
				changes = append(changes, KeyChange{Key: key, NewValue: newValue, Type: ChangeAdded})
			case oldValue != newValue:
				changes = append(changes, KeyChange{Key: key, OldValue: oldValue, NewValue: newValue, Type: ChangeModified})
			}
		}
	}

	if prev != nil {
		for _, key := range prev.Keys() {
			if next != nil {
				if _, stillThere := next.Get(key); stillThere {
					continue
				}
			}
			oldValue, _ := prev.Get(key)
			changes = append(changes, KeyChange{Key: key, OldValue: oldValue, Type: ChangeDeleted})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}
