// Package cache persists the latest successful snapshot of each namespace to
// a local file, so the next process start can serve stale-but-available
// configuration when the config service is unreachable.
//
// Each snapshot is a complete, atomically-replaced JSON serialization. An
// advisory file lock serializes writers across processes sharing a cache
// directory; readers need no lock because the rename-based replace is atomic.
package cache
