package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// messagesClient is the subset of *sdk.MessageService AnthropicProvider
// needs, narrowed to an interface so tests can substitute a fake.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *sdk.MessageStream
}

// AnthropicProvider implements Provider on top of the official Anthropic
// Messages API client.
type AnthropicProvider struct {
	client       messagesClient
	defaultModel string
}

// anthropicOptions accumulates both AnthropicProvider field overrides and
// extra SDK client options (base URL, HTTP client) that must be applied
// before the client is constructed.
type anthropicOptions struct {
	model      string
	clientOpts []option.RequestOption
}

type AnthropicOption func(*anthropicOptions)

func WithAnthropicModel(model string) AnthropicOption {
	return func(o *anthropicOptions) { o.model = model }
}

// WithAnthropicBaseURL points the client at a custom (e.g. proxy or
// compatibility-layer) endpoint instead of the default Anthropic API.
func WithAnthropicBaseURL(apiBase string) AnthropicOption {
	return func(o *anthropicOptions) {
		if apiBase != "" {
			o.clientOpts = append(o.clientOpts, option.WithBaseURL(strings.TrimRight(apiBase, "/")))
		}
	}
}

// WithAnthropicHTTPClient overrides the HTTP client the SDK issues
// requests through, most commonly to apply a per-provider timeout.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(o *anthropicOptions) {
		if client != nil {
			o.clientOpts = append(o.clientOpts, option.WithHTTPClient(client))
		}
	}
}

// NewAnthropicProvider builds a provider from an API key.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	cfg := anthropicOptions{model: defaultClaudeModel}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.clientOpts...)
	c := sdk.NewClient(clientOpts...)
	return &AnthropicProvider{client: &c.Messages, defaultModel: cfg.model}
}

// NewAnthropicProviderWithClient injects a messagesClient directly —
// used by tests to substitute a fake without network access.
func NewAnthropicProviderWithClient(client messagesClient, defaultModel string) *AnthropicProvider {
	if defaultModel == "" {
		defaultModel = defaultClaudeModel
	}
	return &AnthropicProvider{client: client, defaultModel: defaultModel}
}

func (p *AnthropicProvider) Name() string          { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string  { return p.defaultModel }
func (p *AnthropicProvider) SupportsThinking() bool { return true }

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := p.buildParams(req)
	if err != nil {
		return nil, NewProviderError("anthropic", ErrSerialization, 0, err.Error(), err)
	}
	msg, err := p.client.New(ctx, body)
	if err != nil {
		return nil, classifyAnthropicErr(err)
	}
	return anthropicToChatResponse(msg), nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) bool) (*ChatResponse, error) {
	body, err := p.buildParams(req)
	if err != nil {
		return nil, NewProviderError("anthropic", ErrSerialization, 0, err.Error(), err)
	}
	stream := p.client.NewStreaming(ctx, body)
	defer stream.Close()

	acc := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, NewProviderError("anthropic", ErrSerialization, 0, err.Error(), err)
		}
		switch e := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			chunk := StreamChunk{}
			switch d := e.Delta.AsAny().(type) {
			case sdk.TextDelta:
				chunk.Content = d.Text
			case sdk.ThinkingDelta:
				chunk.Thinking = d.Thinking
			}
			if !onChunk(chunk) {
				return nil, context.Canceled
			}
		}
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, NewProviderError("anthropic", ErrCancelled, 0, "stream cancelled", err)
		}
		return nil, classifyAnthropicErr(err)
	}
	onChunk(StreamChunk{Done: true})
	return anthropicToChatResponse(&acc), nil
}

func (p *AnthropicProvider) buildParams(req ChatRequest) (sdk.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	var system string
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Text()
			continue
		}
		sdkMsg, err := toAnthropicMessage(m)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		msgs = append(msgs, sdkMsg)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	if lvl := req.Options.ThinkingLevel; lvl != "" {
		budget := anthropicThinkingBudget(lvl)
		if params.MaxTokens < budget+4096 {
			params.MaxTokens = budget + 8192
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	} else if req.Options.Temperature != 0 {
		params.Temperature = sdk.Float(req.Options.Temperature)
	}
	return params, nil
}

// anthropicThinkingBudget maps a qualitative thinking level to a token
// budget; Anthropic requires max_tokens to exceed the thinking budget by a
// margin and forbids setting temperature alongside thinking.
func anthropicThinkingBudget(level string) int64 {
	switch level {
	case "low":
		return 4096
	case "high":
		return 32000
	default: // "medium" and anything unrecognized
		return 10000
	}
}

func toAnthropicMessage(m Message) (sdk.MessageParam, error) {
	role := sdk.MessageParamRoleUser
	if m.Role == "assistant" {
		role = sdk.MessageParamRoleAssistant
	}

	var blocks []sdk.ContentBlockParamUnion
	if m.Role == "tool" {
		blocks = append(blocks, sdk.NewToolResultBlock(m.ToolCallID, m.Text(), false))
		return sdk.MessageParam{Role: sdk.MessageParamRoleUser, Content: blocks}, nil
	}
	if txt := m.Text(); txt != "" {
		blocks = append(blocks, sdk.NewTextBlock(txt))
	}
	for _, img := range m.Images {
		blocks = append(blocks, sdk.NewImageBlockBase64(img.MimeType, img.Data))
	}
	for _, tc := range m.ToolCalls {
		var args map[string]interface{}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				return sdk.MessageParam{}, err
			}
		}
		blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	return sdk.MessageParam{Role: role, Content: blocks}, nil
}

func toAnthropicTools(defs []ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        d.Function.Name,
				Description: sdk.String(d.Function.Description),
				InputSchema: sdk.ToolInputSchemaParam{Properties: d.Function.Parameters},
			},
		})
	}
	return out
}

func anthropicToChatResponse(msg *sdk.Message) *ChatResponse {
	resp := &ChatResponse{}
	var content strings.Builder
	var thinkingChars int
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			content.WriteString(b.Text)
		case sdk.ThinkingBlock:
			thinkingChars += len(b.Thinking)
		case sdk.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: string(args)})
		}
	}
	resp.Content = content.String()
	switch msg.StopReason {
	case sdk.MessageStopReasonToolUse:
		resp.FinishReason = "tool_calls"
	case sdk.MessageStopReasonMaxTokens:
		resp.FinishReason = "length"
	default:
		resp.FinishReason = "stop"
	}
	resp.Usage = &Usage{
		PromptTokens:        int(msg.Usage.InputTokens),
		CompletionTokens:    int(msg.Usage.OutputTokens),
		TotalTokens:         int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		ThinkingTokens:      thinkingChars / 4,
		CacheCreationTokens: int(msg.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(msg.Usage.CacheReadInputTokens),
	}
	return resp
}

// classifyAnthropicErr maps an SDK error into a ProviderError without
// string-matching: the SDK's *sdk.Error carries a structured HTTP status.
func classifyAnthropicErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return NewProviderError("anthropic", ErrCancelled, 0, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("anthropic", ErrTimeout, 0, "request timed out", err)
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		switch {
		case status == 401 || status == 403:
			return NewProviderError("anthropic", ErrAuth, status, apiErr.Message, err)
		case status == 429:
			pe := NewProviderError("anthropic", ErrRateLimited, status, apiErr.Message, err)
			if ra := parseRetryAfterHeader(apiErr.Response); ra > 0 {
				return pe.WithRetryAfter(ra)
			}
			return pe
		case status >= 500:
			return NewProviderError("anthropic", ErrHTTP5xx, status, apiErr.Message, err)
		case status >= 400:
			return NewProviderError("anthropic", ErrHTTP4xx, status, apiErr.Message, err)
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return NewProviderError("anthropic", ErrTransport, 0, "connection closed unexpectedly", err)
	}
	return NewProviderError("anthropic", ErrTransport, 0, err.Error(), err)
}
