// Package config loads the kernel's JSON5 configuration file:
// agent defaults and per-agent overrides, tool command/URL policy, named
// provider credentials, bus capacity, and provider retry tuning — the
// camelCase key surface spec's external interfaces section enumerates,
// normalized onto the acronym-aware snake_case tags below.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
	"github.com/weave-logic-ai/clawft-sub017/internal/tools"
)

// Secret wraps a credential value so ordinary formatting (fmt, JSON
// marshaling, log fields) never renders it in cleartext; only Expose
// yields the underlying value.
type Secret string

const redactedPlaceholder = "[REDACTED]"

func (s Secret) String() string              { return redactedPlaceholder }
func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redactedPlaceholder + `"`), nil }
func (s Secret) GoString() string            { return redactedPlaceholder }
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// Expose returns the cleartext secret value. Callers that only need to
// check presence should use != "" rather than calling Expose.
func (s Secret) Expose() string { return string(s) }

// Config is the root configuration for the agent runtime kernel.
type Config struct {
	Agents    AgentsConfig              `json:"agents"`
	Tools     ToolsConfig               `json:"tools"`
	Providers map[string]ProviderConfig `json:"providers,omitempty"`
	Bus       BusConfig                 `json:"bus"`
	Retry     RetryConfig               `json:"retry"`
	Sandbox   SandboxTypeConfig         `json:"sandbox"`

	mu sync.RWMutex
}

// AgentsConfig holds agent defaults and per-agent overrides.
type AgentsConfig struct {
	Defaults AgentDefaults        `json:"defaults"`
	List     map[string]AgentSpec `json:"list,omitempty"`
}

// AgentDefaults are the settings every agent inherits unless overridden.
// Field names mirror spec's enumerated key surface
// (agents.defaults.{model, maxTokens, temperature, memoryWindow,
// maxContextTokens}), plus the provider selection and tool-iteration
// bound every agent also needs.
type AgentDefaults struct {
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
	MemoryWindow      int     `json:"memory_window"`       // max prior turns kept before trimming
	MaxContextTokens  int     `json:"max_context_tokens"`  // provider context window budget
	MaxToolIterations int     `json:"max_tool_iterations"` // tool_iteration_limit
}

// AgentSpec is a per-agent override. Zero fields inherit from defaults.
type AgentSpec struct {
	Provider          string  `json:"provider,omitempty"`
	Model             string  `json:"model,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	MemoryWindow      int     `json:"memory_window,omitempty"`
	MaxContextTokens  int     `json:"max_context_tokens,omitempty"`
	MaxToolIterations int     `json:"max_tool_iterations,omitempty"`
	Tools             *tools.PolicySpec `json:"tools,omitempty"`
}

// ToolsConfig configures the sandbox policy's command and URL rules.
type ToolsConfig struct {
	CommandPolicy CommandPolicyConfig `json:"command_policy"`
	URLPolicy     URLPolicyConfig     `json:"url_policy"`
}

// CommandPolicyConfig mirrors sandbox.Policy's CommandMode/CommandList.
type CommandPolicyConfig struct {
	Mode string   `json:"mode,omitempty"` // "allowlist" (default) or "denylist"
	List []string `json:"list,omitempty"`
}

// URLPolicyConfig mirrors sandbox.Policy's URLMode/URLAllow/URLBlock.
type URLPolicyConfig struct {
	Mode  string   `json:"mode,omitempty"` // "allowlist" or "denylist" (default)
	Allow []string `json:"allow,omitempty"`
	Block []string `json:"block,omitempty"`
}

// ApplyToPolicy layers this config onto an existing sandbox.Policy,
// overwriting only the command/URL fields it governs.
func (tc ToolsConfig) ApplyToPolicy(p *sandbox.Policy) {
	switch tc.CommandPolicy.Mode {
	case "denylist":
		p.CommandMode = sandbox.Denylist
	case "allowlist":
		p.CommandMode = sandbox.Allowlist
	}
	if len(tc.CommandPolicy.List) > 0 {
		p.CommandList = tc.CommandPolicy.List
	}

	switch tc.URLPolicy.Mode {
	case "allowlist":
		p.URLMode = sandbox.Allowlist
	case "denylist":
		p.URLMode = sandbox.Denylist
	}
	if len(tc.URLPolicy.Allow) > 0 {
		p.URLAllow = tc.URLPolicy.Allow
	}
	if len(tc.URLPolicy.Block) > 0 {
		p.URLBlock = tc.URLPolicy.Block
	}
}

// ProviderConfig is one named entry under "providers" — spec's
// `providers.<name>.{apiBase, timeoutSecs, enabled, apiKey:Secret}`.
type ProviderConfig struct {
	APIKey      Secret `json:"api_key,omitempty"`
	APIBase     string `json:"api_base,omitempty"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
	EnabledPtr  *bool  `json:"enabled,omitempty"` // nil = enabled when api_key is set
	Model       string `json:"model,omitempty"`   // default model for this provider entry
	Kind        string `json:"kind,omitempty"`    // "anthropic" or "openai" (openai-compatible); "" infers from name
}

// IsEnabled reports whether this provider entry should be wired up: an
// explicit false always wins; otherwise it is enabled iff a credential
// is present.
func (pc ProviderConfig) IsEnabled() bool {
	if pc.EnabledPtr != nil {
		return *pc.EnabledPtr
	}
	return pc.APIKey != ""
}

// Timeout returns TimeoutSecs as a time.Duration, falling back to def
// when unset.
func (pc ProviderConfig) Timeout(def time.Duration) time.Duration {
	if pc.TimeoutSecs <= 0 {
		return def
	}
	return time.Duration(pc.TimeoutSecs) * time.Second
}

// BusConfig configures the inbound/outbound message bus.
type BusConfig struct {
	Capacity int `json:"capacity,omitempty"`
}

// RetryConfig configures provider-call retry/backoff, converted into
// providers.RetryConfig via ToProviderRetryConfig.
type RetryConfig struct {
	MaxRetries   int `json:"max_retries,omitempty"`
	BaseDelayMs  int `json:"base_delay_ms,omitempty"`
	MaxDelayMs   int `json:"max_delay_ms,omitempty"`
}

// ToProviderRetryConfig converts RetryConfig into the providers package's
// RetryConfig, applying providers.DefaultRetryConfig for any zero field.
func (rc RetryConfig) ToProviderRetryConfig() providers.RetryConfig {
	cfg := providers.DefaultRetryConfig()
	if rc.MaxRetries > 0 {
		cfg.MaxRetries = rc.MaxRetries
	}
	if rc.BaseDelayMs > 0 {
		cfg.BaseDelay = time.Duration(rc.BaseDelayMs) * time.Millisecond
	}
	if rc.MaxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(rc.MaxDelayMs) * time.Millisecond
	}
	return cfg
}

// SandboxTypeConfig selects the sandbox.SandboxType enforced alongside
// the command/URL policy.
type SandboxTypeConfig struct {
	Type string `json:"type,omitempty"` // "none" (default), "wasm", "os", "combined"
}

func (sc SandboxTypeConfig) ToSandboxType() sandbox.SandboxType {
	switch sc.Type {
	case "wasm":
		return sandbox.SandboxWasm
	case "os":
		return sandbox.SandboxOS
	case "combined":
		return sandbox.SandboxCombined
	default:
		return sandbox.SandboxNone
	}
}

// ReplaceFrom copies all data fields from src into c, preserving c's
// mutex, so a config reload can swap contents under one lock.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = src.Agents
	c.Tools = src.Tools
	c.Providers = src.Providers
	c.Bus = src.Bus
	c.Retry = src.Retry
	c.Sandbox = src.Sandbox
}

// ResolveAgent returns the effective AgentDefaults for agentID, merging
// per-agent overrides from Agents.List onto Agents.Defaults.
func (c *Config) ResolveAgent(agentID string) AgentDefaults {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := c.Agents.Defaults
	spec, ok := c.Agents.List[agentID]
	if !ok {
		return d
	}
	if spec.Provider != "" {
		d.Provider = spec.Provider
	}
	if spec.Model != "" {
		d.Model = spec.Model
	}
	if spec.MaxTokens > 0 {
		d.MaxTokens = spec.MaxTokens
	}
	if spec.Temperature > 0 {
		d.Temperature = spec.Temperature
	}
	if spec.MemoryWindow > 0 {
		d.MemoryWindow = spec.MemoryWindow
	}
	if spec.MaxContextTokens > 0 {
		d.MaxContextTokens = spec.MaxContextTokens
	}
	if spec.MaxToolIterations > 0 {
		d.MaxToolIterations = spec.MaxToolIterations
	}
	return d
}

// Hash is not cryptographic identity, just a cheap change-detector string
// a caller can compare across reloads; kept deliberately simple since the
// kernel's config is small compared to the gateway's full tree.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%+v", *c)
}
