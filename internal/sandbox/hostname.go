package sandbox

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// blockedHostnames are rejected regardless of URL/net policy.
var blockedHostnames = map[string]bool{
	"localhost":                  true,
	"metadata.google.internal":   true,
}

// dangerousSuffixes mark entire hostname families as non-public.
var dangerousSuffixes = []string{".localhost", ".local", ".internal"}

// IsBlockedHostname reports whether hostname (or any of its dangerous
// suffixes) names a non-routable or metadata endpoint.
func IsBlockedHostname(hostname string) bool {
	h := normalizeHostname(hostname)
	if blockedHostnames[h] {
		return true
	}
	for _, suffix := range dangerousSuffixes {
		if strings.HasSuffix(h, suffix) {
			return true
		}
	}
	return false
}

// resolveHost is overridable in tests to avoid real DNS lookups.
var resolveHost = func(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// validatePublicHostname rejects blocked hostnames, literal private IPs,
// and hostnames that resolve (at validation time) to a private IP. DNS
// rebinding between this check and the later connection is a documented,
// accepted limitation (see DESIGN.md).
func validatePublicHostname(ctx context.Context, hostname string) error {
	h := normalizeHostname(hostname)
	if IsBlockedHostname(h) {
		return denied("url", hostname, "blocked hostname")
	}
	if IsPrivateIPAddress(h) {
		return denied("url", hostname, "private or reserved IP literal")
	}
	ips, err := resolveHost(ctx, h)
	if err != nil {
		return denied("url", hostname, fmt.Sprintf("dns resolution failed: %v", err))
	}
	for _, ip := range ips {
		if IsPrivateIPAddress(ip.String()) {
			return denied("url", hostname, fmt.Sprintf("resolves to private address %s", ip))
		}
	}
	return nil
}
