package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/confsync/internal/sentinel"
)

// ErrEmptyPath is returned when a destination path is empty.
const ErrEmptyPath = sentinel.Error("destination path must not be empty")

// WriteFileAtomic writes data to path by writing a temporary file in the same
// directory, syncing it, and renaming it over path. On POSIX systems rename
// is atomic, so a reader opening path always sees either the previous
// complete content or the new complete content, never a partial write.
//
// Parent directories are created as needed. The file is created with mode
// 0600: cached configuration may contain credentials and must not be
// world-readable.
func WriteFileAtomic(path string, data []byte) (retErr error) {
	if path == "" {
		return ErrEmptyPath
	}

	if err := EnsureDirForFile(path); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if retErr != nil {
			// Best effort: the temp file is garbage once the write failed.
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
