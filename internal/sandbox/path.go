package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathMode indicates whether a path is being opened for reading or
// writing, so the caller can enforce the right size cap.
type PathMode int

const (
	PathRead PathMode = iota
	PathWrite
)

// ValidatePath canonicalizes p (resolving symlinks) and requires the
// result to live under one of the policy's declared filesystem roots —
// including symlink targets, so a root-confined symlink cannot point
// outside the sandbox.
func (p *Policy) ValidatePath(path string, mode PathMode) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", p.deny("path", path, err.Error())
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", p.deny("path", path, "cannot resolve absolute path")
	}
	canon, err := canonicalize(abs)
	if err != nil {
		return "", p.deny("path", path, fmt.Sprintf("cannot canonicalize: %v", err))
	}

	if len(p.FSRoots) == 0 {
		return "", p.deny("path", path, "no filesystem roots configured")
	}
	for _, root := range p.FSRoots {
		rootCanon, err := canonicalize(root)
		if err != nil {
			continue
		}
		if canon == rootCanon || strings.HasPrefix(canon, rootCanon+string(filepath.Separator)) {
			p.allow("path", canon)
			return canon, nil
		}
	}
	return "", p.deny("path", path, "outside declared filesystem roots")
}
