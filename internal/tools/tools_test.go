package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:      name,
		RawSchema: `{"type":"object","properties":{"x":{"type":"string"}},"required":["x"]}`,
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			return NewResult(argsJSON), nil
		},
	}
}

func TestExecuteNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := Execute(context.Background(), r, nil, "missing", "{}")
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v (%T)", err, err)
	}
}

func TestExecuteSchemaInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	_, err := Execute(context.Background(), r, nil, "echo", `{}`)
	var schemaErr *ErrSchemaInvalid
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected ErrSchemaInvalid, got %v (%T)", err, err)
	}
}

func TestExecutePermissionDenied(t *testing.T) {
	r := NewRegistry()
	tool := echoTool("risky")
	tool.Sandbox = func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
		return errors.New("not allowed here")
	}
	if err := r.Register(tool); err != nil {
		t.Fatal(err)
	}
	policy := sandbox.NewPolicy()
	_, err := Execute(context.Background(), r, policy, "risky", `{"x":"y"}`)
	var denied *ErrPermissionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected ErrPermissionDenied, got %v (%T)", err, err)
	}
}

func TestExecuteExecutionFailed(t *testing.T) {
	r := NewRegistry()
	tool := &Tool{
		Name: "boom",
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			return nil, errors.New("kaboom")
		},
	}
	if err := r.Register(tool); err != nil {
		t.Fatal(err)
	}
	_, err := Execute(context.Background(), r, nil, "boom", `{}`)
	var failed *ErrExecutionFailed
	if !errors.As(err, &failed) {
		t.Fatalf("expected ErrExecutionFailed, got %v (%T)", err, err)
	}
}

func TestExecuteHappyPath(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	res, err := Execute(context.Background(), r, nil, "echo", `{"x":"hi"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ForLLM != `{"x":"hi"}` {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSerializeErrorUsesProperJSON(t *testing.T) {
	err := &ErrExecutionFailed{Name: "t", Msg: `has "quotes" and newline` + "\n"}
	out := SerializeError(err)
	var decoded map[string]string
	if jsonErr := json.Unmarshal([]byte(out), &decoded); jsonErr != nil {
		t.Fatalf("SerializeError did not produce valid JSON: %v (%s)", jsonErr, out)
	}
	if decoded["error"] == "" {
		t.Errorf("expected non-empty error message, got %q", out)
	}
}

func TestMCPToolNaming(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterMCPTool("weather-server", &Tool{Name: "forecast"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get("weather-server__forecast"); !ok {
		t.Fatal("expected MCP tool registered under server__tool name")
	}
	if !IsMCPToolName("weather-server__forecast") {
		t.Error("expected IsMCPToolName to recognize the naming convention")
	}
	if IsMCPToolName("exec") {
		t.Error("expected a native tool name not to be flagged as MCP-sourced")
	}

	r.UnregisterServer("weather-server")
	if _, ok := r.Get("weather-server__forecast"); ok {
		t.Error("expected UnregisterServer to remove all of that server's tools")
	}
}

func TestPolicyEngineGroupAndProfile(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"exec", "read_file", "write_file", "web_fetch", "dangerous_tool"} {
		if err := r.Register(&Tool{Name: name, Handler: func(ctx context.Context, policy *sandbox.Policy, a string) (*Result, error) { return NewResult(""), nil }}); err != nil {
			t.Fatal(err)
		}
	}

	pe := NewPolicyEngine(&PolicySpec{Profile: "readonly"})
	defs := pe.FilterTools(r, "agent-1", "anthropic", nil)
	names := defNames(defs)
	if names["exec"] || names["dangerous_tool"] {
		t.Errorf("readonly profile should exclude exec/dangerous_tool, got %v", names)
	}
	if !names["read_file"] || !names["web_fetch"] {
		t.Errorf("readonly profile should include fs/web groups, got %v", names)
	}
}

func TestPolicyEngineAgentAllowAndDeny(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"exec", "read_file", "write_file"} {
		if err := r.Register(&Tool{Name: name, Handler: func(ctx context.Context, policy *sandbox.Policy, a string) (*Result, error) { return NewResult(""), nil }}); err != nil {
			t.Fatal(err)
		}
	}

	pe := NewPolicyEngine(&PolicySpec{})
	agentPolicy := &PolicySpec{Allow: []string{"group:fs"}, Deny: []string{"write_file"}}
	defs := pe.FilterTools(r, "agent-1", "openai", agentPolicy)
	names := defNames(defs)
	if !names["read_file"] {
		t.Errorf("expected read_file allowed, got %v", names)
	}
	if names["write_file"] {
		t.Errorf("expected write_file denied, got %v", names)
	}
	if names["exec"] {
		t.Errorf("expected exec excluded by agent allow list, got %v", names)
	}
}

func TestPolicyEngineAlsoAllowIsAdditive(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"exec", "read_file"} {
		if err := r.Register(&Tool{Name: name, Handler: func(ctx context.Context, policy *sandbox.Policy, a string) (*Result, error) { return NewResult(""), nil }}); err != nil {
			t.Fatal(err)
		}
	}
	pe := NewPolicyEngine(&PolicySpec{Allow: []string{"read_file"}, AlsoAllow: []string{"exec"}})
	defs := pe.FilterTools(r, "agent-1", "openai", nil)
	names := defNames(defs)
	if !names["exec"] || !names["read_file"] {
		t.Errorf("expected alsoAllow to add exec back alongside read_file, got %v", names)
	}
}

func defNames(defs []providers.ToolDefinition) map[string]bool {
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Function.Name] = true
	}
	return names
}
