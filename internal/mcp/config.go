package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// ServerConfig describes one MCP server connection, whether discovered
// from a config file or supplied by an agent override.
type ServerConfig struct {
	Name       string            `json:"name"`
	Transport  string            `json:"transport"` // "stdio" | "http"
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ToolPrefix string            `json:"toolPrefix,omitempty"`
	TimeoutSec int               `json:"timeoutSec,omitempty"`
	Enabled    *bool             `json:"enabled,omitempty"`
}

func (c *ServerConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// merge layers override onto the receiver's copy: any non-zero field in
// override replaces the base's. Used to apply a per-agent config on top
// of the base discovered from disk.
func (c ServerConfig) merge(override ServerConfig) ServerConfig {
	out := c
	if override.Transport != "" {
		out.Transport = override.Transport
	}
	if override.Command != "" {
		out.Command = override.Command
	}
	if override.Args != nil {
		out.Args = override.Args
	}
	if override.Env != nil {
		out.Env = override.Env
	}
	if override.URL != "" {
		out.URL = override.URL
	}
	if override.Headers != nil {
		out.Headers = override.Headers
	}
	if override.ToolPrefix != "" {
		out.ToolPrefix = override.ToolPrefix
	}
	if override.TimeoutSec != 0 {
		out.TimeoutSec = override.TimeoutSec
	}
	if override.Enabled != nil {
		out.Enabled = override.Enabled
	}
	return out
}

// DiscoverConfigDir reads every `*.json` file in dir as a JSON5-tolerant
// ServerConfig, keyed by its filename minus extension unless the file
// itself sets Name. Missing dir is not an error: auto-discovery is
// best-effort.
func DiscoverConfigDir(dir string) (map[string]ServerConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ServerConfig{}, nil
		}
		return nil, fmt.Errorf("read mcp config dir: %w", err)
	}

	configs := make(map[string]ServerConfig)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var cfg ServerConfig
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		name := cfg.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ".json")
			cfg.Name = name
		}
		configs[name] = cfg
	}
	return configs, nil
}

// DefaultConfigDir returns `~/.clawft/mcp`, the directory McpClientPool
// auto-discovers server configs from.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".clawft", "mcp")
}
