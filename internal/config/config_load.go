package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/titanous/json5"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// decodeInto round-trips normalized (a map[string]interface{} whose keys
// have already been rewritten to this package's snake_case tags) through
// encoding/json so the standard struct-tag decoder populates cfg,
// without needing a second JSON5-aware decoder.
func decodeInto(normalized interface{}, cfg *Config) error {
	data, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Save writes cfg to path as indented JSON. Secret fields round-trip as
// "[REDACTED]" by design — Save is for persisting non-credential settings
// a user edited at runtime, not for snapshotting full config including
// live API keys.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Default returns a Config with the kernel's built-in defaults: no
// providers configured, an allowlist command policy, a denylist URL
// policy (SSRF rules still apply regardless), and providers.DefaultRetryConfig
// values for retry.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Provider:          "anthropic",
				Model:             "claude-sonnet-4-5-20250929",
				MaxTokens:         8192,
				Temperature:       1.0,
				MemoryWindow:      40,
				MaxContextTokens:  180000,
				MaxToolIterations: 25,
			},
		},
		Tools: ToolsConfig{
			CommandPolicy: CommandPolicyConfig{Mode: "allowlist"},
			URLPolicy:     URLPolicyConfig{Mode: "denylist"},
		},
		Bus: BusConfig{Capacity: 1024},
		Retry: RetryConfig{
			MaxRetries:  3,
			BaseDelayMs: 500,
			MaxDelayMs:  30000,
		},
		Sandbox: SandboxTypeConfig{Type: "none"},
	}
}

// Load reads and parses a JSON5 config file at path. A missing file is
// not an error: Load returns Default() with env overrides applied, the
// same way a first-run deployment with no config file on disk behaves.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	raw := map[string]interface{}{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	normalized := normalizeTree(raw)

	if err := decodeInto(normalized, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	warnUnknownKeys(raw, path)
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers CLAWFT_* environment variables on top of
// whatever Load already populated, matching the teacher's env-override
// idiom (GOCLAW_* there) but scoped to the keys this kernel actually
// exposes: provider credentials and a couple of top-level scalar knobs.
func (c *Config) applyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}

	for _, name := range []string{"anthropic", "openai"} {
		envKey := "CLAWFT_" + strings.ToUpper(name) + "_API_KEY"
		if v := os.Getenv(envKey); v != "" {
			pc := c.Providers[name]
			pc.APIKey = Secret(v)
			c.Providers[name] = pc
		}
	}
	if v := os.Getenv("CLAWFT_ANTHROPIC_BASE_URL"); v != "" {
		pc := c.Providers["anthropic"]
		pc.APIBase = v
		c.Providers["anthropic"] = pc
	}
	if v := os.Getenv("CLAWFT_OPENAI_BASE_URL"); v != "" {
		pc := c.Providers["openai"]
		pc.APIBase = v
		c.Providers["openai"] = pc
	}
	if v := os.Getenv("CLAWFT_AGENT_MODEL"); v != "" {
		c.Agents.Defaults.Model = v
	}
	if v := os.Getenv("CLAWFT_BUS_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Bus.Capacity = n
		}
	}
}

// ApplyEnvOverrides is the exported entry point for re-applying env
// overrides after a config has been mutated in place (e.g. after a
// hot reload merges new file contents).
func (c *Config) ApplyEnvOverrides() { c.applyEnvOverrides() }

// BuildSandboxPolicy constructs a *sandbox.Policy from this config's
// Tools and Sandbox sections, starting from sandbox.NewPolicy's
// documented defaults and layering the config on top.
func (c *Config) BuildSandboxPolicy() *sandbox.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := sandbox.NewPolicy()
	c.Tools.ApplyToPolicy(p)
	p.SandboxType = c.Sandbox.ToSandboxType()
	return p
}

// BuildProviders constructs a providers.Provider for every enabled
// entry under Providers, inferring anthropic vs. openai-compatible
// wiring from Kind (or from the map key when Kind is blank).
func (c *Config) BuildProviders() (map[string]providers.Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	built := make(map[string]providers.Provider, len(c.Providers))
	for name, pc := range c.Providers {
		if !pc.IsEnabled() {
			continue
		}
		kind := pc.Kind
		if kind == "" {
			kind = name
		}
		httpClient := &http.Client{Timeout: pc.Timeout(60 * time.Second)}

		switch kind {
		case "anthropic":
			opts := []providers.AnthropicOption{providers.WithAnthropicHTTPClient(httpClient)}
			if pc.Model != "" {
				opts = append(opts, providers.WithAnthropicModel(pc.Model))
			}
			if pc.APIBase != "" {
				opts = append(opts, providers.WithAnthropicBaseURL(pc.APIBase))
			}
			built[name] = providers.NewAnthropicProvider(pc.APIKey.Expose(), opts...)
		case "openai":
			built[name] = providers.NewOpenAIProviderWithHTTPClient(name, pc.APIKey.Expose(), pc.APIBase, pc.Model, httpClient)
		default:
			return nil, fmt.Errorf("config: provider %q has unrecognized kind %q", name, kind)
		}
	}
	return built, nil
}

// BuildRouter orders built providers by the priority list (falling back
// to map iteration order for any name BuildProviders returned but
// priority omits) and wraps them in a providers.TieredRouter.
func (c *Config) BuildRouter(built map[string]providers.Provider, priority []string, recorder providers.OutcomeRecorder) (*providers.TieredRouter, error) {
	seen := make(map[string]bool, len(priority))
	ordered := make([]providers.Provider, 0, len(built))
	for _, name := range priority {
		p, ok := built[name]
		if !ok {
			continue
		}
		ordered = append(ordered, p)
		seen[name] = true
	}
	for name, p := range built {
		if !seen[name] {
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("config: no enabled providers to route over")
	}
	return providers.NewTieredRouter(ordered, recorder), nil
}

// normalizeKey converts a camelCase (or PascalCase) key into snake_case,
// treating a run of uppercase letters as a single acronym unless it's
// immediately followed by a lowercase-started word, in which case the
// last uppercase rune in the run starts that next word instead of
// ending the acronym. Examples: "apiBase" -> "api_base", "HTMLParser"
// -> "html_parser", "maxHTTPRetries" -> "max_http_retries".
func normalizeKey(key string) string {
	runes := []rune(key)
	var out strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			startOfWord := i == 0
			if !startOfWord {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || nextLower {
					out.WriteByte('_')
				}
			}
			out.WriteRune(unicode.ToLower(r))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// normalizeTree recursively rewrites every map key in v through
// normalizeKey, so a JSON5 document written in camelCase (matching
// the kernel's documented external key surface) decodes against this
// package's snake_case struct tags.
func normalizeTree(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[normalizeKey(k)] = normalizeTree(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = normalizeTree(child)
		}
		return out
	default:
		return v
	}
}

// warnUnknownKeys logs (to stderr; the kernel's ambient logging is
// provided by its caller's slog handler, which this package does not
// depend on to keep config loadable before logging is set up) any
// top-level key this package's Config does not recognize, without
// rejecting the document: forward- or backward-compatible config files
// may carry keys a given binary doesn't know, and that's not fatal.
func warnUnknownKeys(raw map[string]interface{}, path string) {
	known := map[string]bool{
		"agents": true, "tools": true, "providers": true,
		"bus": true, "retry": true, "sandbox": true,
	}
	for k := range raw {
		if !known[normalizeKey(k)] {
			fmt.Fprintf(os.Stderr, "config: %s: unknown top-level key %q (ignored)\n", path, k)
		}
	}
}
