package core_test

import (
	"testing"

	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/wire"
)

func TestNewSnapshotCopiesInputMap(t *testing.T) {
	t.Parallel()

	configs := map[string]string{"timeout": "100"}
	snap := core.NewSnapshot(&wire.ConfigPayload{
		AppID: "app", Cluster: "default", NamespaceName: "application",
		Configurations: configs, ReleaseKey: "r1",
	}, nil)

	configs["timeout"] = "999"
	if v, _ := snap.Get("timeout"); v != "100" {
		t.Errorf("Get(timeout) = %q, want %q (constructor must copy)", v, "100")
	}
}

func TestSnapshotConfigurationsReturnsCopy(t *testing.T) {
	t.Parallel()

	snap := snapshotOf("r1", map[string]string{"timeout": "100"})

	out := snap.Configurations()
	out["timeout"] = "999"
	if v, _ := snap.Get("timeout"); v != "100" {
		t.Errorf("Get(timeout) = %q after mutating Configurations() copy, want %q", v, "100")
	}
}

func TestSnapshotEqualComparesReleaseKeys(t *testing.T) {
	t.Parallel()

	a := snapshotOf("r1", map[string]string{"a": "1"})
	b := snapshotOf("r1", map[string]string{"completely": "different"})
	c := snapshotOf("r2", map[string]string{"a": "1"})

	if !a.Equal(b) {
		t.Error("snapshots with the same release key must be equal")
	}
	if a.Equal(c) {
		t.Error("snapshots with different release keys must not be equal")
	}
	var nilSnap *core.Snapshot
	if a.Equal(nil) || nilSnap.Equal(a) {
		t.Error("nil compares unequal to a non-nil snapshot")
	}
	if !nilSnap.Equal(nil) {
		t.Error("nil compares equal to nil")
	}
}

func TestSnapshotPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	snap := snapshotOf("r1", map[string]string{"a": "1", "b": "2"})

	p := snap.Payload()
	if p.AppID != "app" || p.Cluster != "default" || p.NamespaceName != "application" || p.ReleaseKey != "r1" {
		t.Errorf("Payload() identity = %s/%s/%s@%s, want app/default/application@r1",
			p.AppID, p.Cluster, p.NamespaceName, p.ReleaseKey)
	}

	// The payload owns its map.
	p.Configurations["a"] = "mutated"
	if v, _ := snap.Get("a"); v != "1" {
		t.Errorf("Get(a) = %q after mutating Payload() map, want %q", v, "1")
	}

	restored := core.NewSnapshot(p, nil)
	if !restored.Equal(snap) {
		t.Error("snapshot restored from Payload() must equal the original")
	}
}

func TestSnapshotMessagesAreCloned(t *testing.T) {
	t.Parallel()

	msgs := &wire.Messages{Details: map[string]int64{"ch": 3}}
	snap := core.NewSnapshot(&wire.ConfigPayload{
		AppID: "app", Cluster: "default", NamespaceName: "application",
		ReleaseKey: "r1",
	}, msgs)

	msgs.Details["ch"] = 99
	if got := snap.Messages().Details["ch"]; got != 3 {
		t.Errorf("Messages()[ch] = %d, want 3 (constructor must clone)", got)
	}

	out := snap.Messages()
	out.Details["ch"] = 42
	if got := snap.Messages().Details["ch"]; got != 3 {
		t.Errorf("Messages()[ch] = %d after mutating accessor copy, want 3", got)
	}
}
