package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExecutionFailedError wraps a call_tool result reported with isError.
type ExecutionFailedError struct {
	Tool string
	Text string
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("mcp: tool %q reported failure: %s", e.Tool, e.Text)
}

// extractContent applies the call_tool content-extraction rules to a raw
// JSON-RPC result: isError is checked first and wins regardless of
// whether a content array is present, becoming an ExecutionFailedError
// with its text blocks (if any) joined by newline; otherwise the text
// blocks of a typed content array are concatenated (non-text blocks
// skipped), falling back to the raw JSON verbatim if there is no content
// array at all. A successful extraction is wrapped as {"output": <text>}.
func extractContent(toolName string, raw json.RawMessage) (string, error) {
	var result callToolResult
	parsed := json.Unmarshal(raw, &result) == nil

	if parsed && result.IsError {
		var texts []string
		for _, b := range result.Content {
			if b.Type == "text" {
				texts = append(texts, b.Text)
			}
		}
		return "", &ExecutionFailedError{Tool: toolName, Text: strings.Join(texts, "\n")}
	}

	var text string
	if parsed && result.Content != nil {
		var texts []string
		for _, b := range result.Content {
			if b.Type == "text" {
				texts = append(texts, b.Text)
			}
		}
		text = strings.Join(texts, "\n")
	} else {
		text = string(raw)
	}

	out, err := json.Marshal(map[string]string{"output": text})
	if err != nil {
		return "", fmt.Errorf("mcp: encode output: %w", err)
	}
	return string(out), nil
}
