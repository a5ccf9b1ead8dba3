package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// expandHome expands a leading "~/" to the current user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("cannot resolve home directory")
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// canonicalize resolves symlinks where possible, falling back to a
// lexically cleaned path for components that do not yet exist (e.g. a
// file about to be created), so validation also works for writes.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	// Walk up to the nearest existing ancestor, resolve it, then
	// reattach the remaining (not-yet-existing) suffix.
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return filepath.Clean(path), nil
	}
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
