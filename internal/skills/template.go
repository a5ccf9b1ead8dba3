package skills

import (
	"strconv"
	"strings"
)

// Substitute expands a skill's instructions in three passes: literal
// "$ARGUMENTS" first, then positional "${N}" placeholders from args, then
// named "${NAME}" placeholders from variables. A missing name renders as
// the empty string; a malformed "${" with no closing "}" is preserved
// verbatim.
func Substitute(instructions string, argumentsJoined string, args []string, variables map[string]string) string {
	out := strings.ReplaceAll(instructions, "$ARGUMENTS", argumentsJoined)
	out = substitutePlaceholders(out, func(key string) (string, bool, bool) {
		if !isAllDigits(key) {
			return "", false, false // not this pass's concern; leave for the name pass
		}
		n, err := strconv.Atoi(key)
		if err != nil || n < 0 || n >= len(args) {
			return "", false, true
		}
		return args[n], true, true
	})
	out = substitutePlaceholders(out, func(key string) (string, bool, bool) {
		v, ok := variables[key]
		return v, ok, true
	})
	return out
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// substitutePlaceholders scans for "${...}" and replaces each with
// resolve(key). resolve's third return value reports whether this pass
// owns the placeholder at all; false leaves it untouched for a later pass.
// Among owned placeholders, an unresolved key becomes "". A "${" without a
// matching "}" is left untouched, including everything after it.
func substitutePlaceholders(s string, resolve func(key string) (string, bool, bool)) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])

		end := strings.IndexByte(s[start+2:], '}')
		if end == -1 {
			// Malformed: no closing brace. Preserve the remainder verbatim.
			b.WriteString(s[start:])
			break
		}
		end += start + 2

		key := s[start+2 : end]
		val, resolved, owned := resolve(key)
		if !owned {
			b.WriteString(s[start : end+1])
			i = end + 1
			continue
		}
		if resolved {
			b.WriteString(val)
		}
		// Missing names (owned but unresolved) render as empty string.
		i = end + 1
	}
	return b.String()
}
