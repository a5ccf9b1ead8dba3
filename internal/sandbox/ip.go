package sandbox

import "strings"

// privateIPv6Prefixes are the textual prefixes identifying non-global IPv6
// ranges: link-local (fe80::/10), site-local (fec0::/10, deprecated but
// still seen), and unique-local (fc00::/7, written as "fc" or "fd").
var privateIPv6Prefixes = []string{"fe80:", "fec0:", "fc", "fd"}

// normalizeHostname trims whitespace, lowercases, strips a trailing dot,
// and unwraps "[...]" IPv6 bracket notation.
func normalizeHostname(hostname string) string {
	h := strings.ToLower(strings.TrimSpace(hostname))
	h = strings.TrimSuffix(h, ".")
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	return h
}

// parseIPv4 parses a dotted-decimal IPv4 address into its four octets.
func parseIPv4(address string) ([4]byte, bool) {
	var out [4]byte
	parts := strings.Split(address, ".")
	if len(parts) != 4 {
		return out, false
	}
	for i, p := range parts {
		n := 0
		if p == "" || len(p) > 3 {
			return out, false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return out, false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return out, false
		}
		out[i] = byte(n)
	}
	return out, true
}

// parseIPv4FromMappedIPv6 extracts the embedded IPv4 address from an
// "::ffff:" prefixed IPv6 literal, accepting both dotted-decimal
// ("::ffff:192.168.1.1") and hex ("::ffff:c0a8:101" or "::ffff:c0a80101")
// forms.
func parseIPv4FromMappedIPv6(suffix string) ([4]byte, bool) {
	var out [4]byte
	if strings.Contains(suffix, ".") {
		return parseIPv4(suffix)
	}
	hexParts := strings.Split(suffix, ":")
	var combined string
	switch len(hexParts) {
	case 1:
		combined = hexParts[0]
	case 2:
		combined = hexParts[0] + hexParts[1]
	default:
		return out, false
	}
	// pad to 8 hex digits
	for len(combined) < 8 {
		combined = "0" + combined
	}
	if len(combined) != 8 {
		return out, false
	}
	var v uint32
	for _, c := range combined {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		default:
			return out, false
		}
	}
	out[0] = byte(v >> 24)
	out[1] = byte(v >> 16)
	out[2] = byte(v >> 8)
	out[3] = byte(v)
	return out, true
}

// IsPrivateIPv4 classifies a 4-octet address as private/reserved: RFC1918
// ranges, loopback, link-local, current-network, and carrier-grade NAT
// (100.64.0.0/10).
func IsPrivateIPv4(parts [4]byte) bool {
	switch {
	case parts[0] == 0: // 0.0.0.0/8
		return true
	case parts[0] == 10: // 10.0.0.0/8
		return true
	case parts[0] == 127: // 127.0.0.0/8
		return true
	case parts[0] == 169 && parts[1] == 254: // 169.254.0.0/16 link-local + metadata
		return true
	case parts[0] == 172 && parts[1] >= 16 && parts[1] <= 31: // 172.16.0.0/12
		return true
	case parts[0] == 192 && parts[1] == 168: // 192.168.0.0/16
		return true
	case parts[0] == 100 && parts[1] >= 64 && parts[1] <= 127: // 100.64.0.0/10
		return true
	default:
		return false
	}
}

// IsPrivateIPAddress reports whether address (already known to be a
// literal IP, v4 or v6, possibly bracketed) falls in a private/reserved
// range. Property 5 requires this to catch RFC1918/loopback/link-local in
// any IPv4-mapped-IPv6 disguise.
func IsPrivateIPAddress(address string) bool {
	addr := normalizeHostname(address)

	if strings.HasPrefix(addr, "::ffff:") {
		if parts, ok := parseIPv4FromMappedIPv6(addr[len("::ffff:"):]); ok {
			return IsPrivateIPv4(parts)
		}
	}

	if strings.Contains(addr, ":") {
		if addr == "::" || addr == "::1" {
			return true
		}
		for _, prefix := range privateIPv6Prefixes {
			if strings.HasPrefix(addr, prefix) {
				return true
			}
		}
		return false
	}

	if parts, ok := parseIPv4(addr); ok {
		return IsPrivateIPv4(parts)
	}
	return false
}

// CloudMetadataAddress is the well-known cloud provider metadata endpoint,
// blocked unconditionally regardless of allowlists.
const CloudMetadataAddress = "169.254.169.254"
