package wasm

import (
	"context"
	"strings"
	"testing"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

func TestCheckPluginNetworkRejectsHostOutsidePluginAllowlist(t *testing.T) {
	policy := sandbox.NewPolicy()
	policy.NetAllow = []string{"*"} // policy itself would allow anything

	p := &Plugin{
		id:          "weather",
		policy:      policy,
		permissions: PermissionSpec{NetAllow: []string{"only.example.com"}},
	}

	err := p.checkPluginNetwork(context.Background(), "https://other.example.com/path")
	if err == nil {
		t.Fatal("expected rejection for host outside plugin's own allowlist")
	}
	if !strings.Contains(err.Error(), "not permitted") {
		t.Errorf("expected a plugin-allowlist rejection, got: %v", err)
	}
}

func TestCheckPluginNetworkStillAppliesSSRFRulesAfterAllowlist(t *testing.T) {
	policy := sandbox.NewPolicy()
	policy.NetAllow = []string{"*"}

	p := &Plugin{
		id:          "weather",
		policy:      policy,
		permissions: PermissionSpec{NetAllow: []string{"*"}}, // plugin permits anything
	}

	err := p.checkPluginNetwork(context.Background(), "http://127.0.0.1:9999/")
	if err == nil {
		t.Fatal("expected the SSRF layer to reject a private address even though the plugin allowlist passed")
	}
}

func TestMatchesPluginAllowRejectsEmptyAllowlist(t *testing.T) {
	if matchesPluginAllow(nil, "anything.example.com") {
		t.Error("expected an empty allowlist to reject every host")
	}
}
