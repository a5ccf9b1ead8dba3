package sandbox

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func withNoDNS(t *testing.T) {
	t.Helper()
	old := resolveHost
	resolveHost = func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("203.0.113.5")}, nil // TEST-NET-3, treated as public
	}
	t.Cleanup(func() { resolveHost = old })
}

// TestValidateURLRejectsPrivateLiterals is the direct test for testable
// property 5.
func TestValidateURLRejectsPrivateLiterals(t *testing.T) {
	withNoDNS(t)
	p := NewPolicy()
	cases := []string{
		"http://10.0.0.5/",
		"http://172.16.0.1/",
		"http://172.31.255.255/",
		"http://192.168.1.1/",
		"http://127.0.0.1/",
		"http://[::1]/",
		"http://169.254.169.254/",
		"HTTP://169.254.169.254/", // scheme case
		"http://[::ffff:127.0.0.1]/",
		"http://[::ffff:a9fe:a9fe]/", // hex mapped 169.254.169.254
	}
	for _, u := range cases {
		if err := p.ValidateURL(context.Background(), u); err == nil {
			t.Errorf("expected %q to be rejected", u)
		}
	}
}

func TestValidateURLRejectsBadScheme(t *testing.T) {
	p := NewPolicy()
	if err := p.ValidateURL(context.Background(), "ftp://example.com/"); err == nil {
		t.Error("expected non-http(s) scheme to be rejected")
	}
}

func TestValidateURLAllowsPublicHost(t *testing.T) {
	withNoDNS(t)
	p := NewPolicy()
	if err := p.ValidateURL(context.Background(), "https://example.com/path"); err != nil {
		t.Errorf("expected public host to be allowed, got %v", err)
	}
}

func TestValidateCommandDefaultAllowlist(t *testing.T) {
	p := NewPolicy()
	if err := p.ValidateCommand([]string{"cat", "file.txt"}); err != nil {
		t.Errorf("expected cat to be allowed: %v", err)
	}
	if err := p.ValidateCommand([]string{"rm", "-rf", "/"}); err == nil {
		t.Error("expected rm to be denied under default allowlist")
	}
}

func TestValidateCommandRejectsShellMetachars(t *testing.T) {
	p := NewPolicy()
	if err := p.ValidateCommand([]string{"cat; rm -rf /"}); err == nil {
		t.Error("expected shell metacharacter to be rejected")
	}
}

func TestValidateEnvHardDenyWins(t *testing.T) {
	p := NewPolicy()
	p.EnvAllow = []string{"ANTHROPIC_API_KEY"} // attempted override
	if err := p.ValidateEnv("ANTHROPIC_API_KEY"); err == nil {
		t.Error("hard deny list must win over a per-agent allow entry")
	}
}

func TestValidateEnvAllowlist(t *testing.T) {
	p := NewPolicy()
	p.EnvAllow = []string{"HOME"}
	if err := p.ValidateEnv("HOME"); err != nil {
		t.Errorf("expected HOME to be allowed: %v", err)
	}
	if err := p.ValidateEnv("PATH"); err == nil {
		t.Error("expected PATH to be denied when not in agent allowlist")
	}
}

func TestValidatePathRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	os.MkdirAll(root, 0o755)
	p := NewPolicy()
	p.FSRoots = []string{root}

	if _, err := p.ValidatePath(filepath.Join(root, "ok.txt"), PathWrite); err != nil {
		t.Errorf("expected in-root path to be allowed: %v", err)
	}
	if _, err := p.ValidatePath(filepath.Join(dir, "escape.txt"), PathRead); err == nil {
		t.Error("expected out-of-root path to be rejected")
	}
}

func TestAuditLogRingBuffer(t *testing.T) {
	p := NewPolicy()
	p.audit = newAuditLog(4)
	for i := 0; i < 10; i++ {
		p.allow("command", "cat")
	}
	entries := p.Audit()
	if len(entries) > 4 {
		t.Errorf("expected ring buffer to cap at 4 entries, got %d", len(entries))
	}
}
