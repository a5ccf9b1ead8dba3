package tools

import "fmt"

// ErrNotFound is returned when Execute is called with an unregistered
// tool name.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string { return fmt.Sprintf("tools: tool %q is not registered", e.Name) }

// ErrSchemaInvalid is returned when a tool call's arguments fail JSON
// schema validation.
type ErrSchemaInvalid struct {
	Name   string
	Detail string
}

func (e *ErrSchemaInvalid) Error() string {
	return fmt.Sprintf("tools: arguments for %q failed schema validation: %s", e.Name, e.Detail)
}

// ErrPermissionDenied is returned when a tool call is rejected by sandbox
// policy (command, URL, filesystem, or env checks).
type ErrPermissionDenied struct {
	Name   string
	Reason string
}

func (e *ErrPermissionDenied) Error() string {
	return fmt.Sprintf("tools: %q denied by sandbox policy: %s", e.Name, e.Reason)
}

// ErrExecutionFailed wraps a failure from the tool's own handler.
type ErrExecutionFailed struct {
	Name string
	Msg  string
}

func (e *ErrExecutionFailed) Error() string {
	return fmt.Sprintf("tools: %q execution failed: %s", e.Name, e.Msg)
}
