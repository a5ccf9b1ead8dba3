package tools

import "context"

// Tool execution context keys carry per-call state that doesn't belong on
// the Tool struct itself (which is shared across concurrent calls).

type toolContextKey string

const ctxWorkspace toolContextKey = "tool_workspace"

// WithToolWorkspace attaches the working directory a shell/fs tool should
// operate relative to.
func WithToolWorkspace(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, ws)
}

// ToolWorkspaceFromCtx reads back the workspace set by WithToolWorkspace,
// or "" if none was set.
func ToolWorkspaceFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}
