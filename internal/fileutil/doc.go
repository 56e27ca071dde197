// Package fileutil provides file operation utilities for the local snapshot
// cache.
//
// EnsureDir creates directories recursively, and WriteFileAtomic writes a
// file via temp-file-then-rename so concurrent readers never observe a
// partially-written snapshot.
package fileutil
