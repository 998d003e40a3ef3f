package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrOutsideDataDir is returned when a path resolves outside the data directory.
var ErrOutsideDataDir = errors.New("path outside data directory")

// Confine resolves path against root and returns it as an absolute path.
// Relative paths are taken relative to root. Symlinks in the part of the
// path that already exists are followed before the containment check, so a
// link pointing out of root is rejected like a "../" path.
func Confine(root, path string) (string, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	base, err = filepath.EvalSymlinks(base)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	resolved, err := resolveExisting(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDataDir, path)
	}
	return resolved, nil
}

// resolveExisting follows symlinks in the longest existing prefix of path and
// appends the components that do not exist yet.
func resolveExisting(path string) (string, error) {
	var missing []string
	for current := path; ; {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}
