package core_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/giantswarm/confsync/internal/core"
)

// newTestFacade builds a facade over a repository seeded with the given
// snapshot configurations, with a map-backed environment.
func newTestFacade(t *testing.T, snapshotConfigs, overrides, defaults, env map[string]string) *core.Facade {
	t.Helper()

	fetcher := &scriptedFetcher{script: []fetchStep{
		{payload: payloadOf("r1", snapshotConfigs)},
	}}
	repo := newTestRepository(fetcher, nil)
	t.Cleanup(repo.Stop)

	if err := repo.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f := core.NewFacade(repo, overrides, defaults)
	f.SetLookupEnvForTesting(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return f
}

func TestFacadeLookupPriorityOrder(t *testing.T) {
	t.Parallel()

	f := newTestFacade(t,
		map[string]string{"fromSnapshot": "snap", "layered": "snap"},
		map[string]string{"fromOverride": "override", "layered": "override"},
		map[string]string{"fromDefault": "default", "layered": "default", "envBeatsDefault": "default"},
		map[string]string{"fromEnv": "env", "layered": "env", "envBeatsDefault": "env"},
	)

	tests := []struct {
		key  string
		want string
	}{
		{"fromOverride", "override"},
		{"fromSnapshot", "snap"},
		{"fromEnv", "env"},
		{"fromDefault", "default"},
		{"layered", "override"},
		{"envBeatsDefault", "env"},
		{"missing", "callsite"},
	}
	for _, tt := range tests {
		if got := f.GetProperty(tt.key, "callsite"); got != tt.want {
			t.Errorf("GetProperty(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestFacadeHas(t *testing.T) {
	t.Parallel()

	f := newTestFacade(t,
		map[string]string{"fromSnapshot": "snap"},
		nil,
		map[string]string{"fromDefault": "default"},
		nil,
	)

	if !f.Has("fromSnapshot") || !f.Has("fromDefault") {
		t.Error("Has must see every source")
	}
	if f.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}
}

func TestFacadeNamespace(t *testing.T) {
	t.Parallel()

	f := newTestFacade(t, map[string]string{}, nil, nil, nil)
	if got := f.Namespace(); got != "application" {
		t.Errorf("Namespace() = %q, want application", got)
	}
}

func TestFacadeMergedChangeEvents(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []fetchStep{
		{payload: payloadOf("r1", map[string]string{
			"shadowed": "s1",
			"plain":    "p1",
			"envkey":   "e1",
			"fallback": "f1",
			"same":     "sv",
		})},
		{payload: payloadOf("r2", map[string]string{
			"shadowed": "s2", // changed, but invisible behind the override
			"plain":    "p2", // plainly modified
			"newkey":   "n1", // plainly added
			// envkey, fallback and same are deleted from the snapshot
		})},
	}}
	repo := newTestRepository(fetcher, nil)
	defer repo.Stop()

	if err := repo.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f := core.NewFacade(repo,
		map[string]string{"shadowed": "pinned"},
		map[string]string{"fallback": "dv"},
	)
	f.SetLookupEnvForTesting(func(key string) (string, bool) {
		switch key {
		case "envkey":
			return "ev", true
		case "same":
			return "sv", true
		}
		return "", false
	})

	listener := &countingChangeListener{}
	f.AddChangeListener(listener)

	if err := repo.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	events := listener.snapshot()
	if len(events) != 1 {
		t.Fatalf("facade listener received %d events, want 1", len(events))
	}
	got := events[0].Changes
	want := []core.KeyChange{
		// Deleted from the snapshot but still provided by the environment:
		// degrades to a modification through the merged view.
		{Key: "envkey", OldValue: "e1", NewValue: "ev", Type: core.ChangeModified},
		// Deleted but covered by a built-in default: same degradation.
		{Key: "fallback", OldValue: "f1", NewValue: "dv", Type: core.ChangeModified},
		{Key: "newkey", NewValue: "n1", Type: core.ChangeAdded},
		{Key: "plain", OldValue: "p1", NewValue: "p2", Type: core.ChangeModified},
		// "shadowed" is dropped: the override pins the merged value.
		// "same" is dropped: the environment provides the identical value.
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged changes mismatch (-want +got):\n%s", diff)
	}
}

func TestFacadeRemoveChangeListener(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []fetchStep{
		{payload: payloadOf("r1", map[string]string{"a": "1"})},
		{payload: payloadOf("r2", map[string]string{"a": "2"})},
	}}
	repo := newTestRepository(fetcher, nil)
	defer repo.Stop()

	if err := repo.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f := core.NewFacade(repo, nil, nil)
	listener := &countingChangeListener{}
	f.AddChangeListener(listener)
	f.RemoveChangeListener(listener)

	if err := repo.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n := listener.count(); n != 0 {
		t.Errorf("removed listener received %d events, want 0", n)
	}
}

func TestFacadeOverridesAreCopied(t *testing.T) {
	t.Parallel()

	overrides := map[string]string{"key": "pinned"}
	f := newTestFacade(t, map[string]string{}, overrides, nil, nil)

	overrides["key"] = "mutated"
	if got := f.GetProperty("key", ""); got != "pinned" {
		t.Errorf("GetProperty(key) = %q after caller mutation, want %q", got, "pinned")
	}
}
