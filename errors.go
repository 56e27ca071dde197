package confsync

import (
	"github.com/giantswarm/confsync/internal/cache"
	"github.com/giantswarm/confsync/internal/core"
	"github.com/giantswarm/confsync/internal/meta"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/transport"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrClosed is returned by GetConfig after Close.
	ErrClosed = sentinel.Error("client is closed")

	// ErrNoAvailableService is returned when the meta server's retry budget
	// is exhausted without producing a non-empty config-service list.
	ErrNoAvailableService = meta.ErrNoAvailableService

	// ErrInitialLoadFailed is returned by GetConfig when the first fetch of
	// a namespace fails and no cached snapshot exists to fall back to.
	ErrInitialLoadFailed = core.ErrInitialLoadFailed

	// ErrLoadFailed marks a sync that exhausted every endpoint of every
	// attempt. The previous snapshot, if any, stays in place.
	ErrLoadFailed = core.ErrLoadFailed

	// ErrNamespaceNotReleased is wrapped into fetch errors when the config
	// service answers 404 for a namespace, most commonly because it exists
	// in the admin portal but has never been released.
	ErrNamespaceNotReleased = transport.ErrNamespaceNotFound

	// ErrCacheMiss is reported when no locally cached snapshot exists for a
	// namespace whose initial fetch failed.
	ErrCacheMiss = cache.ErrCacheMiss

	// ErrTypeMismatch is returned by the E-suffixed typed accessors when a
	// property value exists but cannot be parsed as the requested type.
	ErrTypeMismatch = core.ErrTypeMismatch
)
