package sandbox

import (
	"fmt"
	"runtime"
)

// OSEnforcer applies a real, platform-native sandbox (namespaces, seccomp,
// etc.) around a command execution, beyond the policy checks above.
type OSEnforcer interface {
	// Wrap returns an argv that runs cmd inside the platform's native
	// sandbox, or an error if this platform has no implementation.
	Wrap(argv []string) ([]string, error)
}

// NewOSEnforcer returns a platform-native OSEnforcer, or an explicit error
// if SandboxOS was requested on a platform without a real implementation.
// A deceptive silent-success (or silent fallback to a weaker sandbox) is a
// contract violation per the spec's resolved open question: unsupported
// platforms must fail loudly, never pretend to confine the process.
func NewOSEnforcer() (OSEnforcer, error) {
	if runtime.GOOS == "linux" {
		return &linuxEnforcer{}, nil
	}
	return nil, fmt.Errorf("sandbox: OsSandbox has no implementation on %s; refusing to silently downgrade", runtime.GOOS)
}

// linuxEnforcer is a placeholder for a real namespace/seccomp-based
// enforcer. Wrap refuses with an explicit error rather than returning
// argv unchanged: a silent pass-through would report success while
// confining nothing, exactly the deceptive-success failure mode the
// spec's resolved open question rules out. Real mount-namespace and
// seccomp-bpf wiring replaces this once it lands.
type linuxEnforcer struct{}

func (l *linuxEnforcer) Wrap(argv []string) ([]string, error) {
	return nil, fmt.Errorf("sandbox: OS-level enforcement (namespaces, seccomp) is not yet implemented; refusing to report a silent success")
}
