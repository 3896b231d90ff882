// Package fileutil writes library files atomically: readers of the media
// directory never observe a half-written song or cover.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteAtomic streams r into path through a temporary file in the same
// directory and renames it into place. Parent directories are created.
func WriteAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup()

	written, err := io.Copy(pending, r)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return written, fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return written, nil
}

// CopyFileAtomic copies src over dst atomically.
func CopyFileAtomic(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return WriteAtomic(dst, in, 0o644)
}
