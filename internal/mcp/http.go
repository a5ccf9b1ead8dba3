package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// httpTransport issues each JSON-RPC request as its own POST; there is no
// shared read loop to multiplex, so request/response pairing comes for
// free from the HTTP round trip itself. id is still allocated per request
// to keep the wire format identical to stdio.
type httpTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
	nextID  uint64
}

func newHTTPTransport(url string, headers map[string]string, timeout time.Duration) *httpTransport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpTransport{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *httpTransport) post(ctx context.Context, req rpcRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	return t.client.Do(httpReq)
}

func (t *httpTransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddUint64(&t.nextID, 1)
	resp, err := t.post(ctx, rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, &ErrTransport{Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrTransport{Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ErrTransport{Detail: fmt.Sprintf("http %d: %s", resp.StatusCode, string(data))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, &ErrTransport{Detail: fmt.Sprintf("decode response: %v", err)}
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// SendNotification fires the request and discards the body: HTTP
// notifications are fire-and-forget, a non-2xx is logged, not errored.
func (t *httpTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	resp, err := t.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		slog.Warn("mcp.http.notification_failed", "method", method, "error", err)
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("mcp.http.notification_non2xx", "method", method, "status", resp.StatusCode)
	}
	return nil
}

func (t *httpTransport) Close() error { return nil }
