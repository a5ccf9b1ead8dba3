package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSecretRedactsInJSONAndString(t *testing.T) {
	s := Secret("sk-super-secret")
	if s.String() != redactedPlaceholder {
		t.Errorf("String() = %q, want redacted placeholder", s.String())
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "sk-super-secret") {
		t.Errorf("marshaled secret leaked cleartext: %s", data)
	}
	if s.Expose() != "sk-super-secret" {
		t.Errorf("Expose() = %q, want original value", s.Expose())
	}
}

func TestSecretUnmarshalRoundTrips(t *testing.T) {
	var s Secret
	if err := json.Unmarshal([]byte(`"abc123"`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Expose() != "abc123" {
		t.Errorf("Expose() = %q, want abc123", s.Expose())
	}
}

func TestProviderConfigIsEnabled(t *testing.T) {
	cases := []struct {
		name string
		pc   ProviderConfig
		want bool
	}{
		{"no key no override", ProviderConfig{}, false},
		{"key set", ProviderConfig{APIKey: "x"}, true},
		{"explicit false wins over key", ProviderConfig{APIKey: "x", EnabledPtr: boolPtr(false)}, false},
		{"explicit true with no key", ProviderConfig{EnabledPtr: boolPtr(true)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pc.IsEnabled(); got != tc.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveAgentMergesOverrides(t *testing.T) {
	cfg := Default()
	cfg.Agents.List = map[string]AgentSpec{
		"researcher": {Model: "claude-opus-4", MaxTokens: 4096},
	}

	resolved := cfg.ResolveAgent("researcher")
	if resolved.Model != "claude-opus-4" {
		t.Errorf("Model = %q, want override", resolved.Model)
	}
	if resolved.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want override 4096", resolved.MaxTokens)
	}
	if resolved.Provider != cfg.Agents.Defaults.Provider {
		t.Errorf("Provider = %q, want inherited default %q", resolved.Provider, cfg.Agents.Defaults.Provider)
	}
}

func TestResolveAgentUnknownFallsBackToDefaults(t *testing.T) {
	cfg := Default()
	resolved := cfg.ResolveAgent("nonexistent")
	if resolved != cfg.Agents.Defaults {
		t.Errorf("resolved = %+v, want defaults %+v", resolved, cfg.Agents.Defaults)
	}
}

func boolPtr(b bool) *bool { return &b }
