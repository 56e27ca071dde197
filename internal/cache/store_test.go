package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/confsync/internal/cache"
	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/wire"
)

func testSnapshot(release string, configs map[string]string) *core.Snapshot {
	return core.NewSnapshot(&wire.ConfigPayload{
		AppID:          "app",
		Cluster:        "default",
		NamespaceName:  "application",
		Configurations: configs,
		ReleaseKey:     release,
	}, nil)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := cache.NewStore(t.TempDir())
	snap := testSnapshot("r1", map[string]string{"timeout": "100", "feature.x": "true"})

	require.NoError(t, store.Save(snap))

	loaded, err := store.Load("app", "default", "application")
	require.NoError(t, err)

	assert.True(t, loaded.Equal(snap), "loaded snapshot must carry the saved release key")
	assert.Equal(t, snap.Configurations(), loaded.Configurations())
	assert.Equal(t, "app", loaded.AppID())
	assert.Equal(t, "default", loaded.Cluster())
	assert.Equal(t, "application", loaded.Namespace())
}

func TestSaveCreatesCacheDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "not", "yet", "created")
	store := cache.NewStore(dir)

	require.NoError(t, store.Save(testSnapshot("r1", nil)))

	_, err := store.Load("app", "default", "application")
	assert.NoError(t, err)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	store := cache.NewStore(t.TempDir())

	require.NoError(t, store.Save(testSnapshot("r1", map[string]string{"a": "1"})))
	require.NoError(t, store.Save(testSnapshot("r2", map[string]string{"a": "2"})))

	loaded, err := store.Load("app", "default", "application")
	require.NoError(t, err)
	assert.Equal(t, "r2", loaded.ReleaseKey())
	v, _ := loaded.Get("a")
	assert.Equal(t, "2", v)
}

func TestLoadMissingYieldsCacheMiss(t *testing.T) {
	t.Parallel()

	store := cache.NewStore(t.TempDir())

	_, err := store.Load("app", "default", "never-saved")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestLoadCorruptFileIsNotACacheMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := cache.NewStore(dir)

	require.NoError(t, store.Save(testSnapshot("r1", nil)))

	// Corrupt the file behind the store's back.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	corrupted := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), []byte("{not json"), 0o600))
			corrupted = true
		}
	}
	require.True(t, corrupted, "no cache file found to corrupt")

	_, err = store.Load("app", "default", "application")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss,
		"a corrupt file is an error to surface, not a miss to silently rebuild")
}

func TestNamespacesWithPathSeparatorsAreFlattened(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := cache.NewStore(dir)

	snap := core.NewSnapshot(&wire.ConfigPayload{
		AppID: "app", Cluster: "default", NamespaceName: "team/service.yaml",
		Configurations: map[string]string{"a": "1"}, ReleaseKey: "r1",
	}, nil)
	require.NoError(t, store.Save(snap))

	// The file lands directly in dir, not in a subdirectory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files int
	for _, e := range entries {
		if !e.IsDir() {
			files++
		}
	}
	assert.NotZero(t, files, "cache file must land in the store directory itself")

	loaded, err := store.Load("app", "default", "team/service.yaml")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.ReleaseKey())
}

func TestNewStorePanicsOnEmptyDir(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { cache.NewStore("") })
}
