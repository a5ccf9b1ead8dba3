package sandbox

import (
	"regexp"
	"strings"
)

// shellMetachars matches characters that would let argv0 escape simple
// argv-style invocation into shell interpretation.
var shellMetachars = regexp.MustCompile("[;&|`$<>]")

// ValidateCommand splits argv into argv0 + args and checks argv0 against
// the policy's command mode. Shell metacharacters, quotes, and control
// characters in argv0 are always rejected (defense against option/shell
// injection) regardless of mode.
func (p *Policy) ValidateCommand(argv []string) error {
	if len(argv) == 0 {
		return p.deny("command", "", "empty command")
	}
	argv0 := argv[0]

	if strings.ContainsAny(argv0, "\x00") {
		return p.deny("command", argv0, "null byte in command")
	}
	if strings.ContainsAny(argv0, "\r\n") {
		return p.deny("command", argv0, "control character in command")
	}
	if shellMetachars.MatchString(argv0) {
		return p.deny("command", argv0, "shell metacharacter in command")
	}
	if strings.ContainsAny(argv0, `'"`) {
		return p.deny("command", argv0, "quote character in command")
	}

	name := baseName(argv0)
	switch p.CommandMode {
	case Allowlist:
		if !containsFold(p.CommandList, name) {
			return p.deny("command", argv0, "command not permitted")
		}
	case Denylist:
		if containsFold(p.CommandList, name) {
			return p.deny("command", argv0, "command explicitly denied")
		}
	}
	p.allow("command", argv0)
	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func containsFold(list []string, name string) bool {
	for _, c := range list {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
