package mcp

import (
	"context"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
	"github.com/weave-logic-ai/clawft-sub017/internal/tools"
)

// bridgeTools builds one tools.Tool per discovered MCP tool, backed by a
// handler that looks up conn's current session on every invocation
// (rather than capturing one) so a tool stays callable across a
// reconnect, which replaces conn.session with a fresh instance, without
// needing to re-register.
func bridgeTools(conn *connection, discovered []ToolInfo) []*tools.Tool {
	out := make([]*tools.Tool, 0, len(discovered))
	for _, info := range discovered {
		info := info
		t := &tools.Tool{
			Name:        info.Name,
			Description: info.Description,
			RawSchema:   string(info.InputSchema),
			Handler: func(ctx context.Context, _ *sandbox.Policy, argsJSON string) (*tools.Result, error) {
				if !conn.connected.Load() {
					return nil, &ErrTransport{Detail: "server " + conn.name + " is not connected"}
				}
				content, err := conn.currentSession().CallTool(ctx, info.Name, argsJSON)
				if err != nil {
					if failed, ok := err.(*ExecutionFailedError); ok {
						return tools.ErrorResult(failed.Text), nil
					}
					return nil, err
				}
				return tools.NewResult(content), nil
			},
		}
		out = append(out, t)
	}
	return out
}
