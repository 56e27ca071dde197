package core_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/wire"
)

func snapshotOf(release string, configs map[string]string) *core.Snapshot {
	return core.NewSnapshot(&wire.ConfigPayload{
		AppID:          "app",
		Cluster:        "default",
		NamespaceName:  "application",
		Configurations: configs,
		ReleaseKey:     release,
	}, nil)
}

func TestDiffClassifiesTransitions(t *testing.T) {
	t.Parallel()

	prev := snapshotOf("r1", map[string]string{
		"kept":     "same",
		"modified": "old",
		"deleted":  "gone",
	})
	next := snapshotOf("r2", map[string]string{
		"kept":     "same",
		"modified": "new",
		"added":    "fresh",
	})

	got := core.Diff(prev, next)
	want := []core.KeyChange{
		{Key: "added", NewValue: "fresh", Type: core.ChangeAdded},
		{Key: "deleted", OldValue: "gone", Type: core.ChangeDeleted},
		{Key: "modified", OldValue: "old", NewValue: "new", Type: core.ChangeModified},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffNilPrevMarksEverythingAdded(t *testing.T) {
	t.Parallel()

	next := snapshotOf("r1", map[string]string{"a": "1", "b": "2"})

	got := core.Diff(nil, next)
	want := []core.KeyChange{
		{Key: "a", NewValue: "1", Type: core.ChangeAdded},
		{Key: "b", NewValue: "2", Type: core.ChangeAdded},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff(nil, next) mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffNilNextMarksEverythingDeleted(t *testing.T) {
	t.Parallel()

	prev := snapshotOf("r1", map[string]string{"a": "1"})

	got := core.Diff(prev, nil)
	want := []core.KeyChange{
		{Key: "a", OldValue: "1", Type: core.ChangeDeleted},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff(prev, nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	t.Parallel()

	prev := snapshotOf("r1", map[string]string{"a": "1"})
	next := snapshotOf("r2", map[string]string{"a": "1"})

	if got := core.Diff(prev, next); len(got) != 0 {
		t.Errorf("Diff() = %v, want empty", got)
	}
}

func TestDiffIsSortedByKey(t *testing.T) {
	t.Parallel()

	next := snapshotOf("r1", map[string]string{"z": "1", "a": "2", "m": "3"})

	got := core.Diff(nil, next)
	for i := 1; i < len(got); i++ {
		if got[i-1].Key >= got[i].Key {
			t.Fatalf("Diff() not sorted: %q before %q", got[i-1].Key, got[i].Key)
		}
	}
}

func TestChangeEventAccessors(t *testing.T) {
	t.Parallel()

	event := &core.ChangeEvent{
		Namespace: "application",
		Changes: []core.KeyChange{
			{Key: "a", NewValue: "1", Type: core.ChangeAdded},
			{Key: "b", OldValue: "2", Type: core.ChangeDeleted},
		},
	}

	if diff := cmp.Diff([]string{"a", "b"}, event.ChangedKeys()); diff != "" {
		t.Errorf("ChangedKeys() mismatch (-want +got):\n%s", diff)
	}

	c, ok := event.Change("b")
	if !ok {
		t.Fatal("Change(b) not found")
	}
	if c.Type != core.ChangeDeleted || c.OldValue != "2" {
		t.Errorf("Change(b) = %+v, want deleted with old value 2", c)
	}

	if _, ok := event.Change("missing"); ok {
		t.Error("Change(missing) = found, want not found")
	}
}
