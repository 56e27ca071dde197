package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/fileutil"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/wire"
)

// ErrCacheMiss is returned by Load when no cached snapshot exists for the
// namespace.
const ErrCacheMiss = sentinel.Error("no cached snapshot")

// lockTimeout bounds how long Save waits for the advisory lock. Writers are
// rare (one per publication), so contention beyond this indicates a stuck
// peer and the write is skipped rather than queued indefinitely.
const lockTimeout = 2 * time.Second

// lockRetryDelay is the polling interval while waiting for the lock.
const lockRetryDelay = 50 * time.Millisecond

// Store reads and writes per-namespace snapshot files under one directory.
// It is safe for concurrent use.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created lazily on
// first Save. Panics if dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		panic("confsync: cache directory must not be empty")
	}
	return &Store{dir: dir}
}

// Save serializes snapshot and atomically replaces the namespace's cache
// file. Failure leaves any previous file intact.
func (s *Store) Save(snapshot *core.Snapshot) error {
	path := s.path(snapshot.AppID(), snapshot.Cluster(), snapshot.Namespace())

	data, err := wire.Marshal(snapshot.Payload())
	if err != nil {
		return fmt.Errorf("serialize snapshot for %s: %w", snapshot.Namespace(), err)
	}

	unlock, err := s.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write snapshot cache for %s: %w", snapshot.Namespace(), err)
	}
	return nil
}

// Load reads the cached snapshot for the identity triple. Returns
// ErrCacheMiss when the file does not exist.
func (s *Store) Load(appID, cluster, namespace string) (*core.Snapshot, error) {
	path := s.path(appID, cluster, namespace)

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from validated config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("namespace %q: %w", namespace, ErrCacheMiss)
		}
		return nil, fmt.Errorf("read snapshot cache for %s: %w", namespace, err)
	}

	payload, err := wire.DecodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache for %s is corrupt: %w", namespace, err)
	}
	return core.NewSnapshot(payload, nil), nil
}

// lock acquires the advisory lock guarding path, returning the release func.
func (s *Store) lock(path string) (func(), error) {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}
	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock snapshot cache %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock snapshot cache %s: timed out after %s", path, lockTimeout)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			// The lock file descriptor is closed either way; nothing to do.
			_ = err
		}
	}, nil
}

// path maps an identity triple to its cache file. Path separators in
// namespace names (not expected, but cheap to guard) are flattened.
func (s *Store) path(appID, cluster, namespace string) string {
	name := fmt.Sprintf("%s+%s+%s.json", appID, cluster, namespace)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, name)
}
