package tools

import (
	"context"
	"encoding/json"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// Execute looks up name, validates argsJSON against its schema, applies
// its sandbox check (if any), and invokes its handler. On any failure it
// returns a typed error (ErrNotFound, ErrSchemaInvalid, ErrPermissionDenied,
// ErrExecutionFailed) — callers serialize these back to the LLM with
// SerializeError, never a hand-formatted string.
func Execute(ctx context.Context, registry *Registry, policy *sandbox.Policy, name, argsJSON string) (*Result, error) {
	tool, ok := registry.Get(name)
	if !ok {
		return nil, &ErrNotFound{Name: name}
	}

	if tool.schema != nil {
		var decoded interface{}
		if argsJSON == "" {
			argsJSON = "{}"
		}
		if err := json.Unmarshal([]byte(argsJSON), &decoded); err != nil {
			return nil, &ErrSchemaInvalid{Name: name, Detail: err.Error()}
		}
		if err := tool.schema.Validate(decoded); err != nil {
			return nil, &ErrSchemaInvalid{Name: name, Detail: err.Error()}
		}
	}

	if tool.Sandbox != nil && policy != nil {
		if err := tool.Sandbox(ctx, policy, argsJSON); err != nil {
			if denied, ok := err.(*sandbox.DeniedError); ok {
				return nil, &ErrPermissionDenied{Name: name, Reason: denied.Reason}
			}
			return nil, &ErrPermissionDenied{Name: name, Reason: err.Error()}
		}
	}

	result, err := tool.Handler(ctx, policy, argsJSON)
	if err != nil {
		return nil, &ErrExecutionFailed{Name: name, Msg: err.Error()}
	}
	return result, nil
}

// SerializeError encodes err as the `{"error": <msg>}` JSON object the LLM
// expects for a failed tool call, using proper JSON encoding rather than a
// hand-formatted string so error messages containing quotes or newlines
// cannot corrupt the wire format.
func SerializeError(err error) string {
	data, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(data)
}
