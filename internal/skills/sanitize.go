package skills

import "strings"

// injectionTokens are stripped from skill bodies to prevent a skill file
// from smuggling role-switching control sequences into the prompt.
var injectionTokens = []string{
	"<system>", "</system>",
	"<|im_start|>", "<|im_end|>",
	"<|system|>", "<|user|>", "<|assistant|>",
	"[INST]", "[/INST]",
	"<<SYS>>", "<</SYS>>",
	"<|endoftext|>",
}

// SanitizeBody strips injection tokens from body, repeating until the
// string stops changing (a token can be revealed by removing another, e.g.
// overlapping or nested occurrences). warnedMultiplePasses reports whether
// a second pass actually changed the string — i.e. occurrences remained
// after the first strip — not merely that a final no-op confirmation pass
// ran, which happens for every body regardless of content.
func SanitizeBody(body string) (sanitized string, warnedMultiplePasses bool) {
	current := body
	changedPasses := 0
	for {
		next := stripTokensOnce(current)
		if next == current {
			break
		}
		changedPasses++
		current = next
	}
	return current, changedPasses > 1
}

func stripTokensOnce(s string) string {
	for _, tok := range injectionTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}
