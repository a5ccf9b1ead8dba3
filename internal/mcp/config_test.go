package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestServerConfigMergeOverridesNonZeroFields(t *testing.T) {
	base := ServerConfig{
		Name:      "search",
		Transport: "stdio",
		Command:   "search-server",
		Args:      []string{"--base"},
		TimeoutSec: 30,
	}
	override := ServerConfig{
		Args:    []string{"--override"},
		Enabled: boolPtr(false),
	}

	merged := base.merge(override)
	if merged.Command != "search-server" {
		t.Errorf("expected base command preserved, got %q", merged.Command)
	}
	if len(merged.Args) != 1 || merged.Args[0] != "--override" {
		t.Errorf("expected override args to win, got %v", merged.Args)
	}
	if merged.enabled() {
		t.Error("expected override Enabled=false to be honored")
	}
	if merged.TimeoutSec != 30 {
		t.Errorf("expected base timeout preserved, got %d", merged.TimeoutSec)
	}
}

func TestDiscoverConfigDirParsesJSON5Files(t *testing.T) {
	dir := t.TempDir()
	content := "{\n  // trailing comment and unquoted keys are fine in JSON5\n  transport: \"stdio\",\n  command: \"echo\",\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "search.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := DiscoverConfigDir(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	cfg, ok := configs["search"]
	if !ok {
		t.Fatalf("expected a %q entry, got %v", "search", configs)
	}
	if cfg.Transport != "stdio" || cfg.Command != "echo" {
		t.Errorf("unexpected parsed config: %+v", cfg)
	}
}

func TestDiscoverConfigDirMissingDirIsNotAnError(t *testing.T) {
	configs, err := DiscoverConfigDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for a missing directory, got %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("expected no configs, got %v", configs)
	}
}
