package safepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTraversal is returned for any path that tries to climb out of its base
// directory. Such paths are rejected outright, never rewritten.
var ErrTraversal = errors.New("path contains parent directory traversal")

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// Validate rejects any path containing a parent-directory segment. Archive
// entries and configuration values arrive in both slash conventions, so both
// are treated as separators.
func Validate(path string) error {
	for _, segment := range strings.FieldsFunc(path, isSeparator) {
		if segment == ".." {
			return fmt.Errorf("%w: %s", ErrTraversal, path)
		}
	}

	return nil
}

// Join joins an externally supplied relative path onto base and verifies the
// result still lives under base. Used for every archive entry before it is
// written to disk.
func Join(base, unsafe string) (string, error) {
	if err := Validate(unsafe); err != nil {
		return "", err
	}

	target := filepath.Join(base, filepath.FromSlash(unsafe))

	prefix := filepath.Clean(base) + string(os.PathSeparator)
	if target != filepath.Clean(base) && !strings.HasPrefix(target, prefix) {
		return "", fmt.Errorf("%w: %s", ErrTraversal, unsafe)
	}

	return target, nil
}
