package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("creates file with content and parent dirs", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		path := filepath.Join(base, "nested", "dir", "snapshot.json")

		if err := WriteFileAtomic(path, []byte(`{"k":"v"}`)); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if string(got) != `{"k":"v"}` {
			t.Errorf("content = %q, want %q", got, `{"k":"v"}`)
		}
	})

	t.Run("replaces existing content completely", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "snapshot.json")

		if err := WriteFileAtomic(path, []byte("first version, longer content")); err != nil {
			t.Fatalf("first write: %v", err)
		}
		if err := WriteFileAtomic(path, []byte("second")); err != nil {
			t.Fatalf("second write: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if string(got) != "second" {
			t.Errorf("content = %q, want %q (stale bytes from the longer first write must not survive)", got, "second")
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		path := filepath.Join(base, "snapshot.json")

		if err := WriteFileAtomic(path, []byte("data")); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}

		entries, err := os.ReadDir(base)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("directory has %d entries, want 1 (no leftover temp files)", len(entries))
		}
	})

	t.Run("restrictive permissions", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "snapshot.json")

		if err := WriteFileAtomic(path, []byte("secret")); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("file mode = %o, want 600", perm)
		}
	})

	t.Run("empty path rejected", func(t *testing.T) {
		t.Parallel()
		if err := WriteFileAtomic("", []byte("data")); !errors.Is(err, ErrEmptyPath) {
			t.Errorf("WriteFileAtomic(\"\") error = %v, want ErrEmptyPath", err)
		}
	})
}
