// Package providers defines the Provider contract the agent loop drives,
// plus a retrying, failover-capable pipeline on top of it.
package providers

import "context"

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Chat sends messages to the LLM and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and streams response chunks via onChunk.
	// onChunk returning false stops the stream early (the caller cancels).
	// Returns the final aggregated response once streaming ends.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) bool) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// ThinkingCapable is implemented by providers that support an extended
// "thinking" budget (e.g. Anthropic's interleaved thinking).
type ThinkingCapable interface {
	SupportsThinking() bool
}

// ChatRequest is the input to a Chat/ChatStream call.
type ChatRequest struct {
	Messages []Message
	Tools    []ToolDefinition
	Model    string
	Options  Options
}

// Options carries tunables that vary per call; a zero Options uses
// provider defaults.
type Options struct {
	MaxTokens      int
	Temperature    float64
	ThinkingLevel  string // "", "low", "medium", "high"
}

// ChatResponse is the result of an LLM call.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // "stop", "tool_calls", "length"
	Usage        *Usage
}

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	Content  string
	Thinking string
	Done     bool
}

// ImageContent is a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string
	Data     string
}

// Message is one entry in a conversation. Content is a pointer so that a
// tool-call-only assistant message can omit content entirely on the wire,
// matching the data model's "optional string, omitted when null" rule.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    *string
	Images     []ImageContent
	ToolCalls  []ToolCall
	ToolCallID string // set when Role == "tool"
}

// NewTextMessage builds a message with plain text content.
func NewTextMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// Text returns the message content, or "" if nil.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ToolCall is a tool invocation requested by the LLM. Arguments is the raw
// JSON-string form the wire format uses (not a decoded map): callers parse
// it against the tool's schema at execution time.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Type     string // "function"
	Function ToolFunctionSchema
}

// ToolFunctionSchema is the JSON-schema description of a function tool.
type ToolFunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens        int
	CompletionTokens    int
	TotalTokens          int
	ThinkingTokens       int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Add accumulates another usage's counters into u.
func (u *Usage) Add(o *Usage) {
	if o == nil {
		return
	}
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
	u.ThinkingTokens += o.ThinkingTokens
	u.CacheCreationTokens += o.CacheCreationTokens
	u.CacheReadTokens += o.CacheReadTokens
}
