package tools

import "github.com/weave-logic-ai/clawft-sub017/internal/providers"

// Result is the unified return type from a tool's Handler. A handler
// reports a failure through its error return (surfaced as
// ErrExecutionFailed), not through this struct — IsError marks a
// tool-domain failure the handler chooses to report as content instead
// (e.g. "file not found" from a read tool), which still reaches the LLM
// as ordinary tool output rather than aborting the call.
type Result struct {
	ForLLM  string `json:"for_llm"`
	ForUser string `json:"for_user,omitempty"`
	Silent  bool   `json:"silent"`
	IsError bool   `json:"is_error"`

	// Usage carries token usage for tools that make their own internal
	// provider calls (e.g. an image-description tool), so the agent loop
	// can fold it into session accounting.
	Usage    *providers.Usage `json:"-"`
	Provider string           `json:"-"`
	Model    string           `json:"-"`
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func SilentResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM, Silent: true}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}
