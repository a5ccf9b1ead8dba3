// Package wasm implements the WASM Plugin Host: a wazero-backed runtime
// that loads component-model-style plugins against a simplified
// shared-memory ABI, with per-instance resource limits, a token-bucket
// per-function rate limiter, and the same network/filesystem sandbox
// checks the kernel's native tools use.
package wasm

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxPluginIDLength = 128

// ValidatePluginID checks a plugin id against the same shape as a skill
// directory name: not empty, not "..", not absolute, free of '/', '\\',
// NUL, bounded length, and restricted to [A-Za-z0-9._-].
func ValidatePluginID(id string) error {
	if id == "" {
		return fmt.Errorf("wasm: plugin id must not be empty")
	}
	if len(id) > maxPluginIDLength {
		return fmt.Errorf("wasm: plugin id exceeds %d characters", maxPluginIDLength)
	}
	if id == ".." {
		return fmt.Errorf("wasm: plugin id must not be %q", "..")
	}
	if filepath.IsAbs(id) {
		return fmt.Errorf("wasm: plugin id must not be absolute")
	}
	if strings.ContainsAny(id, "/\\") || strings.ContainsRune(id, 0) {
		return fmt.Errorf("wasm: plugin id must not contain '/', '\\\\', or NUL")
	}
	for _, r := range id {
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if !safe {
			return fmt.Errorf("wasm: plugin id %q contains a character outside [A-Za-z0-9._-]", id)
		}
	}
	return nil
}

// PermissionSpec is what a plugin is allowed to reach through its host
// imports. A nil/empty NetAllow denies network access entirely rather than
// defaulting open. FSRoots is not consulted by the host imports: the
// read-file and write-file imports check paths only against the sandbox
// policy's own filesystem roots.
type PermissionSpec struct {
	NetAllow []string
	FSRoots  []string
	EnvAllow []string
}

// EnvAllowed reports whether name is in the plugin's permitted
// environment-variable list.
func (p PermissionSpec) EnvAllowed(name string) bool {
	for _, n := range p.EnvAllow {
		if n == name {
			return true
		}
	}
	return false
}

// PermissionStore resolves a plugin id to its PermissionSpec. Set rejects
// any id that fails ValidatePluginID, so a path-like id is never stored;
// Get is a plain lookup and returns the zero spec for an unknown id.
type PermissionStore struct {
	specs map[string]PermissionSpec
}

func NewPermissionStore() *PermissionStore {
	return &PermissionStore{specs: make(map[string]PermissionSpec)}
}

func (s *PermissionStore) Set(pluginID string, spec PermissionSpec) error {
	if err := ValidatePluginID(pluginID); err != nil {
		return err
	}
	s.specs[pluginID] = spec
	return nil
}

func (s *PermissionStore) Get(pluginID string) PermissionSpec {
	return s.specs[pluginID]
}
