package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o"

// chatClient is the subset of openai.ChatCompletionService OpenAIProvider
// needs, narrowed for testability.
type chatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *openai.ChatCompletionStream
}

// OpenAIProvider implements Provider on any OpenAI-compatible chat
// completions API (OpenAI itself, or any compatible gateway reached via a
// custom base URL — OpenRouter, Groq, local inference servers, etc.).
type OpenAIProvider struct {
	name         string
	client       chatClient
	defaultModel string
}

// NewOpenAIProvider builds a provider named name against apiBase (empty
// uses the official OpenAI endpoint) using apiKey, defaulting to model.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(apiBase, "/")))
	}
	c := openai.NewClient(opts...)
	if defaultModel == "" {
		defaultModel = defaultOpenAIModel
	}
	return &OpenAIProvider{name: name, client: &c.Chat.Completions, defaultModel: defaultModel}
}

// NewOpenAIProviderWithClient injects a chatClient directly, for tests.
func NewOpenAIProviderWithClient(name string, client chatClient, defaultModel string) *OpenAIProvider {
	return &OpenAIProvider{name: name, client: client, defaultModel: defaultModel}
}

// NewOpenAIProviderWithHTTPClient is NewOpenAIProvider plus a caller-chosen
// HTTP client, most commonly used to apply a per-provider request timeout.
func NewOpenAIProviderWithHTTPClient(name, apiKey, apiBase, defaultModel string, httpClient *http.Client) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(apiBase, "/")))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	c := openai.NewClient(opts...)
	if defaultModel == "" {
		defaultModel = defaultOpenAIModel
	}
	return &OpenAIProvider{name: name, client: &c.Chat.Completions, defaultModel: defaultModel}
}

func (p *OpenAIProvider) Name() string          { return p.name }
func (p *OpenAIProvider) DefaultModel() string  { return p.defaultModel }
func (p *OpenAIProvider) SupportsThinking() bool { return false }

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := p.buildParams(req)
	resp, err := p.client.New(ctx, body)
	if err != nil {
		return nil, classifyOpenAIErr(p.name, err)
	}
	return openAIToChatResponse(resp), nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) bool) (*ChatResponse, error) {
	body := p.buildParams(req)
	body.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := p.client.NewStreaming(ctx, body)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				if !onChunk(StreamChunk{Content: delta.Content}) {
					return nil, context.Canceled
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, NewProviderError(p.name, ErrCancelled, 0, "stream cancelled", err)
		}
		return nil, classifyOpenAIErr(p.name, err)
	}
	onChunk(StreamChunk{Done: true})
	final := acc.ChatCompletion
	return openAIToChatResponse(&final), nil
}

func (p *OpenAIProvider) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != 0 {
		params.Temperature = openai.Float(req.Options.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	return params
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Text()))
		case "user":
			out = append(out, openai.UserMessage(m.Text()))
		case "tool":
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID))
		case "assistant":
			msg := openai.ChatCompletionAssistantMessageParam{}
			if txt := m.Text(); txt != "" {
				msg.Content.OfString = openai.String(txt)
			}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		}
	}
	return out
}

func toOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Function.Name,
				Description: openai.String(d.Function.Description),
				Parameters:  shared.FunctionParameters(d.Function.Parameters),
			},
		})
	}
	return out
}

func openAIToChatResponse(resp *openai.ChatCompletion) *ChatResponse {
	out := &ChatResponse{FinishReason: "stop"}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		switch choice.FinishReason {
		case "tool_calls":
			out.FinishReason = "tool_calls"
		case "length":
			out.FinishReason = "length"
		}
	}
	out.Usage = &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return out
}

func classifyOpenAIErr(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return NewProviderError(provider, ErrCancelled, 0, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, ErrTimeout, 0, "request timed out", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		switch {
		case status == 401 || status == 403:
			return NewProviderError(provider, ErrAuth, status, apiErr.Message, err)
		case status == 429:
			pe := NewProviderError(provider, ErrRateLimited, status, apiErr.Message, err)
			if ra := parseRetryAfterHeader(apiErr.Response); ra > 0 {
				return pe.WithRetryAfter(ra)
			}
			return pe
		case status >= 500:
			return NewProviderError(provider, ErrHTTP5xx, status, apiErr.Message, err)
		case status >= 400:
			return NewProviderError(provider, ErrHTTP4xx, status, apiErr.Message, err)
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewProviderError(provider, ErrSerialization, 0, err.Error(), err)
	}
	return NewProviderError(provider, ErrTransport, 0, err.Error(), err)
}
