package sandbox

// Mode selects allowlist-vs-denylist semantics for commands or URLs.
type Mode string

const (
	Allowlist Mode = "allowlist"
	Denylist  Mode = "denylist"
)

// SandboxType selects how effectful operations are additionally confined
// beyond the policy checks below.
type SandboxType string

const (
	SandboxNone     SandboxType = "none"
	SandboxWasm     SandboxType = "wasm"
	SandboxOS       SandboxType = "os"
	SandboxCombined SandboxType = "combined"
)

// ResourceLimits bounds a sandboxed operation's resource consumption.
type ResourceLimits struct {
	MaxReadBytes  int64
	MaxWriteBytes int64
}

// DefaultResourceLimits matches the spec's read 8MB / write 4MB caps.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{MaxReadBytes: 8 << 20, MaxWriteBytes: 4 << 20}
}

// defaultCommandAllowlist is the built-in safe command set.
var defaultCommandAllowlist = []string{
	"echo", "cat", "ls", "pwd", "head", "tail", "wc", "grep",
	"find", "sort", "uniq", "diff", "date", "env", "true", "false", "test",
}

// defaultEnvDenylist is always applied, regardless of per-agent allowlist.
var defaultEnvDenylist = []string{
	"AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY",
	"LD_PRELOAD", "LD_LIBRARY_PATH", "BASH_ENV", "GIT_EXTERNAL_DIFF",
	"NODE_OPTIONS",
}

// Policy is the per-agent capability policy enforced on every effectful
// tool call: commands, URLs, filesystem paths, environment variables, and
// (for WASM hosts) raw network access.
type Policy struct {
	CommandMode Mode
	CommandList []string // allow or deny list, per CommandMode

	URLMode  Mode
	URLAllow []string // exact hosts, or "*.domain" wildcards
	URLBlock []string

	FSRoots []string // canonicalized allowed filesystem roots

	NetAllow []string // exact, "*.domain", or "*" — checked after IP-block rules

	EnvAllow []string // per-agent allowlist, on top of the hard deny list

	SandboxType SandboxType
	Limits      ResourceLimits

	audit *auditLog
}

// NewPolicy builds a Policy with the spec's documented defaults: command
// allowlist, no URL restriction beyond the SSRF rules, no extra env allow,
// SandboxNone, default resource limits, and a 256-entry audit ring.
func NewPolicy() *Policy {
	return &Policy{
		CommandMode: Allowlist,
		CommandList: append([]string(nil), defaultCommandAllowlist...),
		URLMode:     Denylist,
		SandboxType: SandboxNone,
		Limits:      DefaultResourceLimits(),
		audit:       newAuditLog(256),
	}
}

// Audit returns a snapshot of the recent decision log.
func (p *Policy) Audit() []AuditEntry {
	return p.audit.snapshot()
}
