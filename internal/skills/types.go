// Package skills implements the three-tier Skill & Agent Registry: SKILL.md
// (and legacy skill.json+prompt.md) discovery across builtin, user, and
// workspace directories, prompt-injection sanitization, and template
// variable substitution.
package skills

// Source identifies which discovery tier a Skill came from.
type Source string

const (
	SourceBuiltin   Source = "builtin"
	SourceUser      Source = "user"
	SourceWorkspace Source = "workspace"
)

// sourcePriority orders tiers for conflict resolution: higher wins.
var sourcePriority = map[Source]int{
	SourceBuiltin:   10,
	SourceUser:      20,
	SourceWorkspace: 30,
}

// Format records which on-disk format a skill was parsed from.
type Format string

const (
	FormatSkillMD Format = "SKILL.md"
	FormatLegacy  Format = "legacy"
)

// Skill is a named prompt-extension with optional tool allowlist and
// template variables, discovered from a directory on one of the three
// registry tiers.
type Skill struct {
	Name         string
	Description  string
	Version      string
	Instructions string // sanitized markdown body
	Variables    map[string]string
	AllowedTools []string // empty means unrestricted
	UserInvocable bool
	ArgumentHint string

	Source Source
	Format Format
	Path   string // directory the skill was discovered in
}

// Agent is a named system-prompt + skill-set combination. Invariant:
// Model must contain no shell metacharacter, newline, or control char —
// enforced by sandbox.ValidateCommand-style checks at load time by callers
// that pass Model through to a provider or shell.
type Agent struct {
	ID           string
	Model        string
	SystemPrompt string
	Skills       []string // skill names, in declared order
	AllowedTools []string
	Variables    map[string]string
}

// EffectiveAllowedTools returns the intersection of a skill's and an
// agent's allowed-tool lists, treating an empty list as "unrestricted" on
// either side.
func EffectiveAllowedTools(skill *Skill, agent *Agent) []string {
	skillTools := skill.AllowedTools
	agentTools := agent.AllowedTools
	if len(skillTools) == 0 {
		return append([]string(nil), agentTools...)
	}
	if len(agentTools) == 0 {
		return append([]string(nil), skillTools...)
	}
	agentSet := make(map[string]struct{}, len(agentTools))
	for _, t := range agentTools {
		agentSet[t] = struct{}{}
	}
	var out []string
	for _, t := range skillTools {
		if _, ok := agentSet[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
