package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeKeyHandlesAcronymsAndWordBoundaries(t *testing.T) {
	cases := map[string]string{
		"apiBase":        "api_base",
		"timeoutSecs":    "timeout_secs",
		"maxTokens":      "max_tokens",
		"HTMLParser":     "html_parser",
		"maxHTTPRetries": "max_http_retries",
		"id":             "id",
		"URL":            "url",
		"baseURL":        "base_url",
	}
	for in, want := range cases {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeTreeRewritesNestedKeys(t *testing.T) {
	raw := map[string]interface{}{
		"agents": map[string]interface{}{
			"defaults": map[string]interface{}{
				"maxTokens": float64(2048),
			},
		},
	}
	out := normalizeTree(raw).(map[string]interface{})
	agents := out["agents"].(map[string]interface{})
	defaults := agents["defaults"].(map[string]interface{})
	if _, ok := defaults["max_tokens"]; !ok {
		t.Fatalf("expected normalized key max_tokens, got %+v", defaults)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.Defaults.Model != Default().Agents.Defaults.Model {
		t.Errorf("expected default model, got %q", cfg.Agents.Defaults.Model)
	}
}

func TestLoadParsesCamelCaseJSON5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	contents := `{
		// comment, to exercise JSON5 parsing
		agents: {
			defaults: {
				model: "claude-sonnet-4-5-20250929",
				maxTokens: 4096,
				temperature: 0.5,
			},
		},
		bus: { capacity: 256 },
		providers: {
			anthropic: { apiKey: "sk-test", apiBase: "https://proxy.example.com" },
		},
	}`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.Defaults.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.Agents.Defaults.MaxTokens)
	}
	if cfg.Bus.Capacity != 256 {
		t.Errorf("Bus.Capacity = %d, want 256", cfg.Bus.Capacity)
	}
	anthropic, ok := cfg.Providers["anthropic"]
	if !ok {
		t.Fatal("expected anthropic provider entry")
	}
	if anthropic.APIKey.Expose() != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", anthropic.APIKey.Expose())
	}
	if anthropic.APIBase != "https://proxy.example.com" {
		t.Errorf("APIBase = %q, want proxy url", anthropic.APIBase)
	}
}

func TestApplyEnvOverridesSetsProviderAPIKey(t *testing.T) {
	t.Setenv("CLAWFT_ANTHROPIC_API_KEY", "sk-from-env")
	cfg := Default()
	cfg.applyEnvOverrides()

	pc, ok := cfg.Providers["anthropic"]
	if !ok {
		t.Fatal("expected anthropic entry created by env override")
	}
	if pc.APIKey.Expose() != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", pc.APIKey.Expose())
	}
}

func TestBuildSandboxPolicyAppliesCommandAndURLPolicy(t *testing.T) {
	cfg := Default()
	cfg.Tools.CommandPolicy.Mode = "denylist"
	cfg.Tools.CommandPolicy.List = []string{"rm", "shutdown"}
	cfg.Tools.URLPolicy.Mode = "allowlist"
	cfg.Tools.URLPolicy.Allow = []string{"api.example.com"}
	cfg.Sandbox.Type = "wasm"

	policy := cfg.BuildSandboxPolicy()
	if len(policy.CommandList) != 2 {
		t.Errorf("CommandList = %v, want 2 entries", policy.CommandList)
	}
	if len(policy.URLAllow) != 1 || policy.URLAllow[0] != "api.example.com" {
		t.Errorf("URLAllow = %v, want [api.example.com]", policy.URLAllow)
	}
}

func TestBuildProvidersSkipsDisabledEntries(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{
		"anthropic": {APIKey: "sk-a", Kind: "anthropic"},
		"openai":    {EnabledPtr: boolPtr(false), APIKey: "sk-b", Kind: "openai"},
	}

	built, err := cfg.BuildProviders()
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if _, ok := built["anthropic"]; !ok {
		t.Error("expected anthropic to be built")
	}
	if _, ok := built["openai"]; ok {
		t.Error("expected openai (enabled=false) to be skipped")
	}
}

func TestWarnUnknownKeysDoesNotPanicOnUnknownTopLevel(t *testing.T) {
	raw := map[string]interface{}{"gateway": map[string]interface{}{"port": float64(8080)}}
	warnUnknownKeys(raw, "test.json5")
}
