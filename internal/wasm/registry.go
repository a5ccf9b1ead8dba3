package wasm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
	"github.com/weave-logic-ai/clawft-sub017/internal/tools"
)

// pluginToolName builds the `wasm__{plugin}__{tool}` name a plugin's
// tools are registered under, mirroring the MCP `{server}__{tool}`
// convention so either source is distinguishable at a glance.
func pluginToolName(pluginID, tool string) string {
	return "wasm__" + pluginID + "__" + tool
}

// PluginHostRegistry loads WASM plugins into a Host and bridges the
// tools each describes into a tools.Registry, mirroring how
// McpClientPool bridges MCP-discovered tools.
type PluginHostRegistry struct {
	host     *Host
	registry *tools.Registry
	policy   *sandbox.Policy

	mu      sync.Mutex
	loaded  map[string][]string // pluginID -> registered tool names
}

// NewPluginHostRegistry builds a registry that loads plugins against host
// and registers their tools into registry, enforcing policy on every
// plugin's sandboxed host-import calls.
func NewPluginHostRegistry(host *Host, registry *tools.Registry, policy *sandbox.Policy) *PluginHostRegistry {
	return &PluginHostRegistry{
		host:     host,
		registry: registry,
		policy:   policy,
		loaded:   make(map[string][]string),
	}
}

// LoadPlugin validates id, compiles and instantiates wasmBytes under the
// given permission scope and limits, calls its "describe" export, and
// registers every tool it advertises.
func (r *PluginHostRegistry) LoadPlugin(ctx context.Context, id string, wasmBytes []byte, perms PermissionSpec, limits Limits) error {
	if err := r.host.permissions.Set(id, perms); err != nil {
		return err
	}

	plugin, err := r.host.Load(ctx, id, wasmBytes, r.policy, limits)
	if err != nil {
		return err
	}

	described, err := plugin.Describe(ctx)
	if err != nil {
		r.host.Unload(ctx, id)
		return fmt.Errorf("wasm: describe plugin %q: %w", id, err)
	}

	names := make([]string, 0, len(described))
	for _, pt := range described {
		pt := pt
		t := &tools.Tool{
			Name:        pluginToolName(id, pt.Name),
			Description: pt.Description,
			RawSchema:   string(pt.InputSchema),
			Handler: func(ctx context.Context, _ *sandbox.Policy, argsJSON string) (*tools.Result, error) {
				live, ok := r.host.Get(id)
				if !ok {
					return nil, fmt.Errorf("wasm: plugin %q is not loaded", id)
				}
				result, err := live.Execute(ctx, pt.Name, json.RawMessage(argsJSON))
				if err != nil {
					return nil, err
				}
				return tools.NewResult(string(result)), nil
			},
		}
		if err := r.registry.Register(t); err != nil {
			slog.Warn("wasm.plugin.tool_register_failed", "plugin", id, "tool", pt.Name, "error", err)
			continue
		}
		names = append(names, t.Name)
	}

	r.mu.Lock()
	r.loaded[id] = names
	r.mu.Unlock()

	if len(names) > 0 {
		tools.RegisterToolGroup("wasm:"+id, names)
	}
	r.refreshAllGroup()

	slog.Info("wasm.plugin.loaded", "plugin", id, "tools", len(names))
	return nil
}

// UnloadPlugin unregisters a plugin's tools and closes its runtime
// instance.
func (r *PluginHostRegistry) UnloadPlugin(ctx context.Context, id string) {
	r.mu.Lock()
	names := r.loaded[id]
	delete(r.loaded, id)
	r.mu.Unlock()

	for _, name := range names {
		r.registry.Unregister(name)
	}
	tools.UnregisterToolGroup("wasm:" + id)
	r.refreshAllGroup()

	r.host.Unload(ctx, id)
}

// refreshAllGroup rebuilds the "wasm" dynamic tool group spanning every
// loaded plugin.
func (r *PluginHostRegistry) refreshAllGroup() {
	r.mu.Lock()
	var all []string
	for _, names := range r.loaded {
		all = append(all, names...)
	}
	r.mu.Unlock()

	if len(all) > 0 {
		tools.RegisterToolGroup("wasm", all)
	} else {
		tools.UnregisterToolGroup("wasm")
	}
}

// LoadedPlugins returns the ids of every currently loaded plugin.
func (r *PluginHostRegistry) LoadedPlugins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.loaded))
	for id := range r.loaded {
		ids = append(ids, id)
	}
	return ids
}
