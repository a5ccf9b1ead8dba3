// Package tools implements the Tool Registry: registration, JSON-schema
// validated execution, sandbox-integrated dispatch, and policy-based
// filtering of the tool set exposed to a provider.
package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// ToolFunc executes a tool given its raw JSON argument string. policy is
// the same policy the tool's SandboxCheck was just evaluated against (nil
// if the call site passed none), so a handler whose sandbox check resolves
// something expensive (a canonical path, a validated URL) can redo that
// resolution itself — Sandbox and Handler do not share state between them.
type ToolFunc func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error)

// SandboxCheck inspects a tool call's arguments against the sandbox
// policy before the handler runs (e.g. ValidateCommand for a shell tool,
// ValidateURL for a web-fetch tool). Tools with no sandbox-relevant
// surface (pure computation) leave this nil.
type SandboxCheck func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	// RawSchema is the tool's JSON Schema for its arguments, as JSON text.
	RawSchema string

	Sandbox SandboxCheck
	Handler ToolFunc

	schema *jsonschema.Schema
}

// mcpToolName builds the `{server}__{tool}` name MCP-sourced tools are
// registered under, keeping them distinguishable from native tools.
func mcpToolName(server, tool string) string {
	return server + "__" + tool
}

// IsMCPToolName reports whether name follows the MCP `{server}__{tool}`
// naming convention.
func IsMCPToolName(name string) bool {
	return strings.Contains(name, "__")
}

// Registry holds all registered tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles t's JSON schema and adds it to the registry,
// overwriting any existing tool with the same name.
func (r *Registry) Register(t *Tool) error {
	if t.RawSchema != "" {
		compiler := jsonschema.NewCompiler()
		resourceName := t.Name + ".json"
		if err := compiler.AddResource(resourceName, strings.NewReader(t.RawSchema)); err != nil {
			return &ErrSchemaInvalid{Name: t.Name, Detail: err.Error()}
		}
		schema, err := compiler.Compile(resourceName)
		if err != nil {
			return &ErrSchemaInvalid{Name: t.Name, Detail: err.Error()}
		}
		t.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	return nil
}

// RegisterMCPTool registers a tool discovered from an MCP server under its
// `{server}__{tool}` name.
func (r *Registry) RegisterMCPTool(server string, t *Tool) error {
	t.Name = mcpToolName(server, t.Name)
	return r.Register(t)
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// UnregisterServer removes every tool whose name carries the given MCP
// server's `{server}__` prefix, e.g. after the server disconnects.
func (r *Registry) UnregisterServer(server string) {
	prefix := server + "__"
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		if strings.HasPrefix(name, prefix) {
			delete(r.tools, name)
		}
	}
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// ToProviderDef converts a Tool into the provider-facing schema shape.
func ToProviderDef(t *Tool) providers.ToolDefinition {
	var params map[string]interface{}
	if t.RawSchema != "" {
		_ = json.Unmarshal([]byte(t.RawSchema), &params)
	}
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}
}
