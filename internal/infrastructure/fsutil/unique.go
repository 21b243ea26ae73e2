// Package fsutil holds small filesystem helpers shared by the pipeline stages.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UniquePath returns path when nothing exists there, otherwise the first
// "name (n).ext" sibling that is free, n counting up from 1.
func UniquePath(path string) string {
	if !exists(path) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// EnsureDirs creates every directory in dirs.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
