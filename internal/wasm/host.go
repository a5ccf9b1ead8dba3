package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// Host owns the shared wazero runtime every plugin instance is compiled
// and instantiated against, plus the permission store and rate limiter
// shared across plugins.
type Host struct {
	runtime wazero.Runtime

	mu      sync.RWMutex
	plugins map[string]*Plugin

	permissions *PermissionStore
	limiter     *functionRateLimiter
}

// NewHost builds a Host with a fresh wazero runtime. limits.MemoryCapBytes
// caps linear memory for every plugin in the runtime, and limits.RateLimit
// and limits.RateWindow seed the shared per-function rate limiter. Of the
// Limits passed to Load, only WallClock is applied per plugin.
func NewHost(limits Limits) *Host {
	config := wazero.NewRuntimeConfig().WithMemoryLimitPages(limits.memoryPages())
	runtime := wazero.NewRuntimeWithConfig(context.Background(), config)

	return &Host{
		runtime:     runtime,
		plugins:     make(map[string]*Plugin),
		permissions: NewPermissionStore(),
		limiter:     newFunctionRateLimiter(limits.RateLimit, limits.RateWindow),
	}
}

// ctx is a placeholder background context used for the one-time host
// module compilation step, which carries no per-request cancellation.
func (h *Host) ctx() context.Context { return context.Background() }

// Permissions exposes the host's permission store so callers can
// provision a plugin's PermissionSpec before loading it.
func (h *Host) Permissions() *PermissionStore { return h.permissions }

// Load compiles and instantiates the plugin at id with wasmBytes,
// running its "init" export once, and registers it for lookup by id.
// Replaces any previously loaded plugin with the same id after closing
// it.
func (h *Host) Load(ctx context.Context, id string, wasmBytes []byte, policy *sandbox.Policy, limits Limits) (*Plugin, error) {
	if err := ValidatePluginID(id); err != nil {
		return nil, err
	}

	compiled, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasm: compile plugin %q: %w", id, err)
	}

	plugin := &Plugin{
		id:          id,
		host:        h,
		policy:      policy,
		permissions: h.permissions.Get(id),
		limiter:     h.limiter,
		limits:      limits,
		compiled:    compiled,
	}

	hostModule, err := h.buildHostModule(plugin)
	if err != nil {
		return nil, fmt.Errorf("wasm: build host imports for %q: %w", id, err)
	}
	plugin.hostModule = hostModule

	if err := plugin.instantiate(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if old, ok := h.plugins[id]; ok {
		_ = old.Close(ctx)
	}
	h.plugins[id] = plugin
	h.mu.Unlock()

	return plugin, nil
}

// Get returns the loaded plugin for id, if any.
func (h *Host) Get(id string) (*Plugin, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.plugins[id]
	return p, ok
}

// Unload closes and removes the plugin at id.
func (h *Host) Unload(ctx context.Context, id string) {
	h.mu.Lock()
	plugin, ok := h.plugins[id]
	delete(h.plugins, id)
	h.mu.Unlock()
	if ok {
		_ = plugin.Close(ctx)
	}
}

// Close tears down every loaded plugin and the underlying runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	plugins := h.plugins
	h.plugins = make(map[string]*Plugin)
	h.mu.Unlock()

	for _, p := range plugins {
		_ = p.Close(ctx)
	}
	return h.runtime.Close(ctx)
}
