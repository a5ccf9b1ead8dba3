package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

const webFetchSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "HTTP or HTTPS URL to fetch"},
		"max_chars": {"type": "integer", "minimum": 100}
	},
	"required": ["url"]
}`

const defaultFetchMaxChars = 50000
const fetchUserAgent = "clawft/1.0"

type fetchArgs struct {
	URL      string `json:"url"`
	MaxChars int    `json:"max_chars"`
}

// NewWebFetchTool builds the web_fetch tool. The URL is checked against
// the sandbox's SSRF rules (scheme, IP-literal, and allow/block lists)
// before any request is made, and the response body is truncated to
// MaxChars to keep it bounded for the context assembler.
func NewWebFetchTool() *Tool {
	return &Tool{
		Name:        "web_fetch",
		Description: "Fetch a URL and return its body as text, truncated to a character limit",
		RawSchema:   webFetchSchema,
		Sandbox: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
			var a fetchArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return err
			}
			return policy.ValidateURL(ctx, a.URL)
		},
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			var a fetchArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			maxChars := a.MaxChars
			if maxChars <= 0 {
				maxChars = defaultFetchMaxChars
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			req.Header.Set("User-Agent", fetchUserAgent)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxChars)+1))
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			text := string(body)
			truncated := false
			if len(text) > maxChars {
				text = text[:maxChars]
				truncated = true
			}
			if resp.StatusCode >= 400 {
				return ErrorResult(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)), nil
			}
			if truncated {
				text += "\n...(truncated)"
			}
			return SilentResult(text), nil
		},
	}
}
