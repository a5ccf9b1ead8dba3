package context

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
)

// AgentContext carries the per-turn inputs an Assembler composes into the
// final message list. The current user message is deliberately not a
// field here: callers append it themselves after Build returns.
type AgentContext struct {
	SystemPrompt string
	AgentHeader  string   // empty if no active agent header applies
	Skills       []string // skill instruction bodies, in declared order
	Memory       string   // empty if there is no memory block
	BootstrapPaths []string // absolute or "~/"-prefixed paths, e.g. SOUL.md
}

// Assembler builds the ordered message list for a provider call:
// [system prompt] -> [agent header] -> [skill instructions] -> [memory] ->
// [history window], enforcing a token budget by truncating history first,
// then memory, then skills, in that priority.
type Assembler struct {
	Bootstrap *BootstrapCache

	// EstimateTokens estimates the token cost of a string. Defaults to a
	// 4-chars-per-token heuristic, matching the ambient estimator used
	// elsewhere in this codebase for skill summaries.
	EstimateTokens func(s string) int
}

// NewAssembler builds an Assembler with a fresh BootstrapCache and the
// default token estimator.
func NewAssembler() *Assembler {
	return &Assembler{
		Bootstrap:      NewBootstrapCache(),
		EstimateTokens: estimateTokensHeuristic,
	}
}

func estimateTokensHeuristic(s string) int {
	return len(s) / 4
}

// expandWorkspacePath expands a leading "~/" to the user's home directory.
func expandWorkspacePath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Build returns the ordered chat message list for one turn. history is the
// session's existing message window (the current, not-yet-appended user
// message is excluded by contract — callers add it themselves).
// tokenBudget <= 0 means unbounded.
func (a *Assembler) Build(agent AgentContext, history []providers.Message, tokenBudget int) ([]providers.Message, error) {
	est := a.EstimateTokens
	if est == nil {
		est = estimateTokensHeuristic
	}

	memory := agent.Memory
	skills := append([]string(nil), agent.Skills...)
	hist := append([]providers.Message(nil), history...)

	var bootstrapBlocks []string
	if a.Bootstrap != nil {
		for _, p := range agent.BootstrapPaths {
			content, err := a.Bootstrap.Get(expandWorkspacePath(p))
			if err != nil {
				continue // missing/unreadable bootstrap files must not abort assembly
			}
			if content != "" {
				bootstrapBlocks = append(bootstrapBlocks, content)
			}
		}
	}

	if tokenBudget > 0 {
		for {
			total := est(agent.SystemPrompt) + est(agent.AgentHeader) + est(strings.Join(bootstrapBlocks, "\n")) + est(memory)
			for _, s := range skills {
				total += est(s)
			}
			for _, m := range hist {
				total += est(m.Text())
			}
			if total <= tokenBudget {
				break
			}
			// Priority 1: truncate the history window.
			if len(hist) > 0 {
				hist = hist[1:]
				continue
			}
			// Priority 2: drop the memory block.
			if memory != "" {
				memory = ""
				continue
			}
			// Priority 3: drop skills, in declared order.
			if len(skills) > 0 {
				skills = skills[1:]
				continue
			}
			// Nothing left to trim; accept going over budget rather than
			// drop the system prompt or agent header.
			break
		}
	}

	var messages []providers.Message
	messages = append(messages, providers.NewTextMessage("system", agent.SystemPrompt))
	if agent.AgentHeader != "" {
		messages = append(messages, providers.NewTextMessage("system", agent.AgentHeader))
	}
	for _, block := range bootstrapBlocks {
		messages = append(messages, providers.NewTextMessage("system", block))
	}
	for _, s := range skills {
		messages = append(messages, providers.NewTextMessage("system", s))
	}
	if memory != "" {
		messages = append(messages, providers.NewTextMessage("system", memory))
	}
	messages = append(messages, hist...)
	return messages, nil
}
