package wasm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// Plugin is one loaded, instantiated component-model plugin: a compiled
// module, its host-import bindings, and the permission/limit scope the
// 5 host functions enforce on every call it makes back into the host.
type Plugin struct {
	id     string
	host   *Host
	policy *sandbox.Policy

	permissions PermissionSpec
	limiter     *functionRateLimiter
	limits      Limits

	compiled   wazero.CompiledModule
	hostModule api.Module
	guest      api.Module
}

// describeResult mirrors the guest's "describe" export: the set of tools
// the plugin offers and the JSON schema each accepts.
type describeResult struct {
	Tools []PluginTool `json:"tools"`
}

// PluginTool describes one tool a plugin exports via its "describe" call.
type PluginTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// instantiate compiles the guest module's imports against hostModule and
// runs its "init" export once. Called once from Host.Load.
func (p *Plugin) instantiate(ctx context.Context) error {
	moduleConfig := wazero.NewModuleConfig().WithName(p.id)

	guest, err := p.host.runtime.InstantiateModule(ctx, p.compiled, moduleConfig)
	if err != nil {
		return fmt.Errorf("wasm: instantiate plugin %q: %w", p.id, err)
	}
	p.guest = guest

	if fn := guest.ExportedFunction("init"); fn != nil {
		callCtx, cancel := context.WithTimeout(ctx, p.limits.WallClock)
		defer cancel()
		if _, err := fn.Call(callCtx); err != nil {
			return fmt.Errorf("wasm: init failed for plugin %q: %w", p.id, err)
		}
	}
	return nil
}

// Describe calls the guest's "describe" export and returns the tools it
// advertises.
func (p *Plugin) Describe(ctx context.Context) ([]PluginTool, error) {
	fn := p.guest.ExportedFunction("describe")
	if fn == nil {
		return nil, fmt.Errorf("wasm: plugin %q does not export \"describe\"", p.id)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.limits.WallClock)
	defer cancel()

	results, err := fn.Call(callCtx)
	if err != nil {
		return nil, fmt.Errorf("wasm: describe failed for plugin %q: %w", p.id, err)
	}
	raw, err := p.readResult(results)
	if err != nil {
		return nil, err
	}

	var out describeResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("wasm: decode describe result for plugin %q: %w", p.id, err)
	}
	return out.Tools, nil
}

// Execute calls the guest's "execute-tool" export with the given tool
// name and JSON-encoded arguments, returning the tool's raw JSON result.
func (p *Plugin) Execute(ctx context.Context, toolName string, argsJSON json.RawMessage) (json.RawMessage, error) {
	fn := p.guest.ExportedFunction("execute-tool")
	if fn == nil {
		return nil, fmt.Errorf("wasm: plugin %q does not export \"execute-tool\"", p.id)
	}

	call := struct {
		Tool string          `json:"tool"`
		Args json.RawMessage `json:"args"`
	}{Tool: toolName, Args: argsJSON}
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("wasm: encode execute-tool call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.limits.WallClock)
	defer cancel()

	argPtr, err := writeGuestResult(callCtx, p.guest, payload)
	if err != nil {
		return nil, fmt.Errorf("wasm: write execute-tool args for plugin %q: %w", p.id, err)
	}
	ptr, length := unpack(argPtr)

	results, err := fn.Call(callCtx, uint64(ptr), uint64(length))
	if err != nil {
		return nil, fmt.Errorf("wasm: execute-tool(%q) failed for plugin %q: %w", toolName, p.id, err)
	}
	return p.readResult(results)
}

func (p *Plugin) readResult(results []uint64) (json.RawMessage, error) {
	if len(results) != 1 {
		return nil, fmt.Errorf("wasm: plugin %q returned %d results, want 1", p.id, len(results))
	}
	ptr, length := unpack(results[0])
	return readGuestBytes(p.guest, ptr, length)
}

// Close releases the plugin's guest and host-import module instances.
func (p *Plugin) Close(ctx context.Context) error {
	var firstErr error
	if p.guest != nil {
		if err := p.guest.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if p.hostModule != nil {
		if err := p.hostModule.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
