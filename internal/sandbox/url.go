package sandbox

import (
	"context"
	"net/url"
	"strings"
)

// ValidateURL parses u strictly, rejects non-http(s) schemes, resolves the
// host (unless it is already a literal IP), and enforces the block list
// before the allow list — a blocked entry always wins over an allowed one,
// per the data model's SandboxPolicy invariant.
func (p *Policy) ValidateURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return p.deny("url", rawURL, "unparseable URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return p.deny("url", rawURL, "scheme must be http or https")
	}
	host := normalizeHostname(parsed.Hostname())
	if host == "" {
		return p.deny("url", rawURL, "missing host")
	}

	if IsPrivateIPAddress(host) {
		return p.deny("url", rawURL, "private or reserved IP literal")
	}
	if !looksLikeIP(host) {
		if err := validatePublicHostname(ctx, host); err != nil {
			p.audit.record(AuditEntry{Op: "url", Subject: rawURL, Allowed: false, Reason: err.Error()})
			return err
		}
	}

	if matchesAny(p.URLBlock, host) {
		return p.deny("url", rawURL, "host explicitly blocked")
	}
	if p.URLMode == Allowlist && !matchesAny(p.URLAllow, host) {
		return p.deny("url", rawURL, "host not in allowlist")
	}

	p.allow("url", rawURL)
	return nil
}

func looksLikeIP(host string) bool {
	if strings.Contains(host, ":") {
		return true // IPv6 literal (hostnames never contain ':')
	}
	if _, ok := parseIPv4(host); ok {
		return true
	}
	return false
}

// matchesAny checks host against a list of exact hostnames or "*.domain"
// wildcards.
func matchesAny(patterns []string, host string) bool {
	for _, pat := range patterns {
		if pat == "*" {
			return true
		}
		if strings.HasPrefix(pat, "*.") {
			suffix := pat[1:] // ".domain"
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if strings.EqualFold(pat, host) {
			return true
		}
	}
	return false
}

// CheckNetwork validates a WASM host's raw network request: host allow
// rules are evaluated only after the SSRF IP-block rules pass.
func (p *Policy) CheckNetwork(ctx context.Context, host string) error {
	h := normalizeHostname(host)
	if IsPrivateIPAddress(h) || IsBlockedHostname(h) {
		return p.deny("network", host, "blocked or private address")
	}
	if !looksLikeIP(h) {
		if err := validatePublicHostname(ctx, h); err != nil {
			return err
		}
	}
	if !matchesAny(p.NetAllow, h) {
		return p.deny("network", host, "host not in network allowlist")
	}
	p.allow("network", host)
	return nil
}
