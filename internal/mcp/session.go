package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// ClientInfo identifies this process to the server during the initialize
// handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo and Capabilities are parsed permissively: any field the
// server omits keeps its zero value rather than failing the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Capabilities struct {
	Tools     json.RawMessage `json:"tools,omitempty"`
	Resources json.RawMessage `json:"resources,omitempty"`
	Prompts   json.RawMessage `json:"prompts,omitempty"`
}

// ToolInfo is a tool as advertised by list_tools.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type listToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool            `json:"isError"`
}

// McpSession wraps a Transport with the connect handshake and the three
// delegating calls (list_tools, call_tool, send_raw) the rest of the
// kernel uses. ProtocolVersion, Capabilities and ServerInfo are populated
// by Connect with safe zero-value defaults for anything the server omits.
type McpSession struct {
	transport Transport

	ProtocolVersion string
	Capabilities    Capabilities
	ServerInfo      ServerInfo
}

func newSession(t Transport) *McpSession {
	return &McpSession{transport: t}
}

// Connect performs the initialize handshake (S6): send `initialize` with
// this client's capabilities, parse the reply, then send
// `notifications/initialized` with no id and no expected response.
func (s *McpSession) Connect(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      ClientInfo{Name: "clawft", Version: "1.0.0"},
	}

	raw, err := s.transport.SendRequest(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var result struct {
		ProtocolVersion string       `json:"protocolVersion"`
		Capabilities    Capabilities `json:"capabilities"`
		ServerInfo      ServerInfo   `json:"serverInfo"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("initialize: decode reply: %w", err)
		}
	}
	if result.ProtocolVersion == "" {
		result.ProtocolVersion = protocolVersion
	}
	s.ProtocolVersion = result.ProtocolVersion
	s.Capabilities = result.Capabilities
	s.ServerInfo = result.ServerInfo

	if err := s.transport.SendNotification(ctx, "notifications/initialized", map[string]interface{}{}); err != nil {
		return fmt.Errorf("notifications/initialized: %w", err)
	}
	return nil
}

// ListTools fetches the server's tool catalog.
func (s *McpSession) ListTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := s.transport.SendRequest(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("list_tools: %w", err)
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("list_tools: decode reply: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes name with argsJSON and returns the extracted text per
// the call_tool content rules, or an *ExecutionFailedError if the server
// reported isError.
func (s *McpSession) CallTool(ctx context.Context, name string, argsJSON string) (string, error) {
	var args interface{}
	if argsJSON == "" {
		args = map[string]interface{}{}
	} else if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("call_tool %q: invalid arguments: %w", name, err)
	}

	raw, err := s.transport.SendRequest(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", fmt.Errorf("call_tool %q: %w", name, err)
	}
	return extractContent(name, raw)
}

// SendRaw issues an arbitrary request and returns its raw JSON result,
// for callers that need methods beyond list_tools/call_tool.
func (s *McpSession) SendRaw(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return s.transport.SendRequest(ctx, method, params)
}

func (s *McpSession) Close() error {
	return s.transport.Close()
}
