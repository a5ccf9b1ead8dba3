package mcp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractContentConcatenatesTextBlocks(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"hello"},{"type":"image","text":"ignored"},{"type":"text","text":"world"}],"isError":false}`)

	got, err := extractContent("greet", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("result is not {\"output\":...}: %v (%s)", err, got)
	}
	if decoded.Output != "hello\nworld" {
		t.Errorf("expected %q, got %q", "hello\nworld", decoded.Output)
	}
}

func TestExtractContentIsErrorReturnsExecutionFailed(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"boom"}],"isError":true}`)

	_, err := extractContent("blow_up", raw)
	if err == nil {
		t.Fatal("expected an error")
	}
	failed, ok := err.(*ExecutionFailedError)
	if !ok {
		t.Fatalf("expected *ExecutionFailedError, got %T", err)
	}
	if failed.Text != "boom" {
		t.Errorf("expected text %q, got %q", "boom", failed.Text)
	}
}

// TestExtractContentIsErrorWinsWithoutContentArray exercises isError as
// first-priority regardless of whether a content array is present: a
// result with isError:true but no content must still fail, not be
// wrapped as a successful {"output": ...}.
func TestExtractContentIsErrorWinsWithoutContentArray(t *testing.T) {
	raw := json.RawMessage(`{"isError":true}`)

	_, err := extractContent("blow_up", raw)
	if err == nil {
		t.Fatal("expected an error")
	}
	failed, ok := err.(*ExecutionFailedError)
	if !ok {
		t.Fatalf("expected *ExecutionFailedError, got %T", err)
	}
	if failed.Text != "" {
		t.Errorf("expected empty text with no content blocks, got %q", failed.Text)
	}
}

func TestExtractContentFallsBackToRawJSON(t *testing.T) {
	raw := json.RawMessage(`{"customField":42}`)

	got, err := extractContent("odd_server", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("result is not {\"output\":...}: %v (%s)", err, got)
	}
	if !strings.Contains(decoded.Output, `"customField":42`) {
		t.Errorf("expected raw JSON echoed into output, got %s", decoded.Output)
	}
}
