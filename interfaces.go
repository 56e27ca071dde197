package confsync

import "time"

// Config is the read-only merged view of one namespace.
//
// Lookup order, highest priority first: process-level overrides
// (WithOverrides), the synchronized remote snapshot, environment variables,
// built-in defaults (WithDefaults), and finally the call-site default.
//
// The read path never fails because of the sync pipeline: when the remote
// snapshot is missing or stale, lookups fall through to the lower-priority
// sources. Typed accessors return the call-site default on parse failure;
// use the E-suffixed variants to observe ErrTypeMismatch explicitly.
type Config interface {
	// Namespace returns the namespace this view reads.
	Namespace() string

	// GetProperty returns the merged value for key, or def when no source
	// provides one. It never returns an error.
	GetProperty(key, def string) string

	// Has reports whether any source provides a value for key.
	Has(key string) bool

	// GetInt returns the property as an int, or def when missing or
	// unparsable.
	GetInt(key string, def int) int

	// GetIntE returns the property as an int; an unparsable value yields an
	// error wrapping ErrTypeMismatch.
	GetIntE(key string) (int, error)

	// GetInt64 returns the property as an int64, or def when missing or
	// unparsable.
	GetInt64(key string, def int64) int64

	// GetBool returns the property as a bool, or def when missing or
	// unparsable.
	GetBool(key string, def bool) bool

	// GetBoolE returns the property as a bool; an unparsable value yields an
	// error wrapping ErrTypeMismatch.
	GetBoolE(key string) (bool, error)

	// GetFloat64 returns the property as a float64, or def when missing or
	// unparsable.
	GetFloat64(key string, def float64) float64

	// GetDuration returns the property parsed in Go duration syntax
	// ("150ms", "2m"), or def when missing or unparsable.
	GetDuration(key string, def time.Duration) time.Duration

	// GetStringSlice returns the property split on commas with surrounding
	// whitespace trimmed, or def when missing.
	GetStringSlice(key string, def []string) []string

	// AddChangeListener registers l for merged change events: one event per
	// snapshot publication, filtered through the priority rules (a change
	// shadowed by a higher-priority source is invisible and dropped).
	AddChangeListener(l ChangeListener)

	// RemoveChangeListener removes the first registration of l by identity.
	RemoveChangeListener(l ChangeListener)
}
