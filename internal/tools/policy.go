package tools

import (
	"log/slog"
	"strings"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
)

// toolGroups maps a group name to its member tool names. MCP and WASM
// plugin hosts register a group per server/plugin ("mcp:{server}",
// "wasm:{plugin}") as they connect, so an agent's allow/deny spec can
// reference a whole integration without naming every tool it exposes.
var toolGroups = map[string][]string{
	"fs":    {"read_file", "write_file", "list_files", "edit_file", "search", "glob"},
	"shell": {"exec"},
	"web":   {"web_fetch", "web_search"},
}

// RegisterToolGroup adds or replaces a dynamic tool group, used when an
// MCP server or WASM plugin registers its tool set.
func RegisterToolGroup(name string, members []string) {
	toolGroups[name] = members
}

// UnregisterToolGroup removes a dynamic tool group.
func UnregisterToolGroup(name string) {
	delete(toolGroups, name)
}

// toolProfiles are named presets an agent or provider can select instead
// of enumerating an allow list by hand.
var toolProfiles = map[string][]string{
	"readonly": {"group:fs", "group:web"},
	"full":     {},
}

// toolAliases maps alternative spellings to a tool's canonical name.
var toolAliases = map[string]string{
	"bash": "exec",
}

func resolveAlias(name string) string {
	if canonical, ok := toolAliases[name]; ok {
		return canonical
	}
	return name
}

// PolicySpec is a tool policy at any level: global, per-provider, or
// per-agent. An empty Allow means "no restriction at this level"; Deny
// and AlsoAllow are always applied, even when Allow is empty.
type PolicySpec struct {
	Profile    string
	Allow      []string
	Deny       []string
	AlsoAllow  []string
	ByProvider map[string]*PolicySpec
}

// PolicyEngine evaluates which tools a given (agent, provider) pair may
// see, by layering a global spec, an optional per-provider override of
// that global spec, and an optional per-agent spec (with its own
// per-provider override) on top.
type PolicyEngine struct {
	global *PolicySpec
}

// NewPolicyEngine builds a policy engine from the global tool policy.
// A nil global spec behaves as the unrestricted "full" profile.
func NewPolicyEngine(global *PolicySpec) *PolicyEngine {
	if global == nil {
		global = &PolicySpec{}
	}
	return &PolicyEngine{global: global}
}

// FilterTools runs the policy pipeline against every tool in registry
// and returns the provider-facing definitions for the ones that survive.
func (pe *PolicyEngine) FilterTools(registry *Registry, agentID, providerName string, agentPolicy *PolicySpec) []providers.ToolDefinition {
	allTools := registry.List()
	allowed := pe.evaluate(allTools, providerName, agentPolicy)

	var defs []providers.ToolDefinition
	for _, name := range allowed {
		if tool, ok := registry.Get(resolveAlias(name)); ok {
			defs = append(defs, ToProviderDef(tool))
		}
	}

	slog.Debug("tool policy applied",
		"agent", agentID,
		"provider", providerName,
		"total_tools", len(allTools),
		"allowed", len(defs),
	)
	return defs
}

// evaluate runs the policy pipeline: global profile, provider override
// of that profile, global allow, provider allow, agent allow, agent's
// own provider allow, then global deny, agent deny, and finally the
// additive alsoAllow lists — which add tools back in without being
// constrained by any allow list evaluated above them.
func (pe *PolicyEngine) evaluate(allTools []string, providerName string, agentPolicy *PolicySpec) []string {
	g := pe.global

	allowed := pe.applyProfile(allTools, g.Profile)

	if pp, ok := g.ByProvider[providerName]; ok && pp.Profile != "" {
		allowed = pe.applyProfile(allTools, pp.Profile)
	}

	if len(g.Allow) > 0 {
		allowed = intersectWithSpec(allowed, g.Allow)
	}
	if pp, ok := g.ByProvider[providerName]; ok && len(pp.Allow) > 0 {
		allowed = intersectWithSpec(allowed, pp.Allow)
	}

	if agentPolicy != nil && len(agentPolicy.Allow) > 0 {
		allowed = intersectWithSpec(allowed, agentPolicy.Allow)
	}
	if agentPolicy != nil {
		if pp, ok := agentPolicy.ByProvider[providerName]; ok && len(pp.Allow) > 0 {
			allowed = intersectWithSpec(allowed, pp.Allow)
		}
	}

	if len(g.Deny) > 0 {
		allowed = subtractSpec(allowed, g.Deny)
	}
	if agentPolicy != nil && len(agentPolicy.Deny) > 0 {
		allowed = subtractSpec(allowed, agentPolicy.Deny)
	}

	if len(g.AlsoAllow) > 0 {
		allowed = unionWithSpec(allowed, allTools, g.AlsoAllow)
	}
	if agentPolicy != nil && len(agentPolicy.AlsoAllow) > 0 {
		allowed = unionWithSpec(allowed, allTools, agentPolicy.AlsoAllow)
	}

	return allowed
}

// applyProfile returns the tools a named profile allows. An empty or
// "full" profile allows everything; an unknown profile name also falls
// back to "full", with a warning, rather than silently denying all tools.
func (pe *PolicyEngine) applyProfile(allTools []string, profile string) []string {
	if profile == "" || profile == "full" {
		return copySlice(allTools)
	}
	spec, ok := toolProfiles[profile]
	if !ok {
		slog.Warn("unknown tool profile, falling back to full", "profile", profile)
		return copySlice(allTools)
	}
	return expandSpec(allTools, spec)
}

// expandGroups turns a spec list (which may contain "group:x" entries)
// into a flat set of concrete tool names.
func expandGroups(spec []string) map[string]bool {
	expanded := make(map[string]bool, len(spec))
	for _, s := range spec {
		if strings.HasPrefix(s, "group:") {
			for _, m := range toolGroups[strings.TrimPrefix(s, "group:")] {
				expanded[m] = true
			}
			continue
		}
		expanded[s] = true
	}
	return expanded
}

func expandSpec(available, spec []string) []string {
	expanded := expandGroups(spec)
	var result []string
	for _, t := range available {
		if expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

func intersectWithSpec(current, spec []string) []string {
	return expandSpec(current, spec)
}

func subtractSpec(current, spec []string) []string {
	denied := expandGroups(spec)
	var result []string
	for _, t := range current {
		if !denied[t] {
			result = append(result, t)
		}
	}
	return result
}

func unionWithSpec(current, allTools, spec []string) []string {
	existing := make(map[string]bool, len(current))
	for _, t := range current {
		existing[t] = true
	}
	for _, t := range expandSpec(allTools, spec) {
		if !existing[t] {
			current = append(current, t)
			existing[t] = true
		}
	}
	return current
}

func copySlice(s []string) []string {
	c := make([]string, len(s))
	copy(c, s)
	return c
}
