package confsync

import (
	"log/slog"

	"github.com/giantswarm/confsync/internal/logging"
)

// SetLogger replaces the package-level logger used by confsync.
// This allows applications to integrate confsync logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; confsync will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Thread safety: SetLogger is safe to call concurrently with other confsync
// operations. The logger is stored as an atomic pointer, so loads and stores
// are data-race-free. For a strict happens-before guarantee, call SetLogger
// before constructing clients.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}
