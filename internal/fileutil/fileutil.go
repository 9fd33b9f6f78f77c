package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path by creating a temp file in the same
// directory, syncing it and renaming it over the destination. Readers observe
// either the previous content or the complete new content.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := writeAtomic(path, mode, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

// WriteStreamAtomic copies r into path with the same temp-then-rename
// semantics as WriteFileAtomic and returns the number of bytes written.
func WriteStreamAtomic(path string, r io.Reader, mode os.FileMode) (int64, error) {
	return writeAtomic(path, mode, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
}

func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := fill(tmp)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return written, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return written, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	SyncDir(dir)
	return written, nil
}

// SyncDir flushes directory metadata so a completed rename survives a crash.
// Errors are ignored; some filesystems do not support syncing directories.
func SyncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
