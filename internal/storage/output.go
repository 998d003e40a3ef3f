package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxUniqueAttempts bounds the numbered suffixes tried by UniquePath.
const maxUniqueAttempts = 10000

// ErrNoUniquePath is returned when every numbered candidate already exists.
var ErrNoUniquePath = errors.New("no free output path")

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// UniquePath returns path if nothing exists there, otherwise the first free
// "<base>_<n><ext>" for n = 1, 2, ...
func UniquePath(path string) (string, error) {
	if !exists(path) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate := base + "_" + strconv.Itoa(n) + ext
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoUniquePath, path)
}

// PrepareOutput creates the parent directory of path and returns a path that
// does not overwrite an existing file.
func PrepareOutput(path string) (string, error) {
	if err := EnsureDir(path); err != nil {
		return "", err
	}
	return UniquePath(path)
}

// DerivedPath names an output next to input: "<dir>/<base><suffix><ext>".
// An empty ext keeps the extension of input.
func DerivedPath(input, suffix, ext string) string {
	inExt := filepath.Ext(input)
	if ext == "" {
		ext = inExt
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(input, inExt) + suffix + ext
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
