package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Typed accessors over the merged view. The plain variants return the
// call-site default when the property is missing or unparsable; the
// E-suffixed variants distinguish the two, returning ErrTypeMismatch for a
// present-but-unparsable value so callers can surface misconfiguration.

// GetInt returns the property as an int, or def when missing or unparsable.
func (f *Facade) GetInt(key string, def int) int {
	if v, err := f.GetIntE(key); err == nil {
		return v
	}
	return def
}

// GetIntE returns the property as an int. Missing keys yield a plain error;
// unparsable values wrap ErrTypeMismatch.
func (f *Facade) GetIntE(key string) (int, error) {
	raw, ok := f.lookup(key)
	if !ok {
		return 0, fmt.Errorf("property %q not set", key)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("property %q value %q as int: %w", key, raw, ErrTypeMismatch)
	}
	return v, nil
}

// GetInt64 returns the property as an int64, or def when missing or unparsable.
func (f *Facade) GetInt64(key string, def int64) int64 {
	raw, ok := f.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return def
	}
	return v
}

// GetBool returns the property as a bool, or def when missing or unparsable.
// Accepts the strconv.ParseBool forms (1/t/true/0/f/false, case-insensitive).
func (f *Facade) GetBool(key string, def bool) bool {
	if v, err := f.GetBoolE(key); err == nil {
		return v
	}
	return def
}

// GetBoolE returns the property as a bool. Missing keys yield a plain error;
// unparsable values wrap ErrTypeMismatch.
func (f *Facade) GetBoolE(key string) (bool, error) {
	raw, ok := f.lookup(key)
	if !ok {
		return false, fmt.Errorf("property %q not set", key)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("property %q value %q as bool: %w", key, raw, ErrTypeMismatch)
	}
	return v, nil
}

// GetFloat64 returns the property as a float64, or def when missing or
// unparsable.
func (f *Facade) GetFloat64(key string, def float64) float64 {
	raw, ok := f.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return v
}

// GetDuration returns the property as a time.Duration in Go duration syntax
// ("150ms", "2m"), or def when missing or unparsable.
func (f *Facade) GetDuration(key string, def time.Duration) time.Duration {
	raw, ok := f.lookup(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// GetStringSlice returns the property split on commas with surrounding
// whitespace trimmed, or def when the property is missing. An empty value
// yields an empty (non-nil) slice.
func (f *Facade) GetStringSlice(key string, def []string) []string {
	raw, ok := f.lookup(key)
	if !ok {
		return def
	}
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
