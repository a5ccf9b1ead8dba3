package wasm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

// hostModuleName is the import module name every plugin's 5 host
// functions are bound under.
const hostModuleName = "clawft_host"

// httpRequestArgs/Result, readFileArgs/Result etc. are the JSON envelopes
// exchanged over the shared-memory ABI — a simplified stand-in for a full
// flat-buffer schema, chosen so each host import is a single
// marshal/unmarshal instead of a hand-packed binary layout.
type httpRequestArgs struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type httpRequestResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
	Error  string `json:"error,omitempty"`
}

type readFileArgs struct {
	Path string `json:"path"`
}

type readFileResult struct {
	Data  string `json:"data,omitempty"` // base64 not required: tool payloads are text-oriented
	Error string `json:"error,omitempty"`
}

type writeFileArgs struct {
	Path string `json:"path"`
	Data string `json:"data"`
}

type writeFileResult struct {
	Error string `json:"error,omitempty"`
}

type getEnvArgs struct {
	Name string `json:"name"`
}

type getEnvResult struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

type logArgs struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// checkPluginNetwork enforces "allowlist checked before SSRF IP rules":
// the plugin's own NetAllow list is evaluated first (a host absent from
// it is rejected without ever reaching the SSRF layer), then
// sandbox.Policy.CheckNetwork applies the private/reserved-IP and
// policy-wide rules regardless of plugin scope.
func (p *Plugin) checkPluginNetwork(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("wasm: unparseable URL: %s", rawURL)
	}
	host := parsed.Hostname()
	if !matchesPluginAllow(p.permissions.NetAllow, host) {
		return fmt.Errorf("wasm: plugin %q is not permitted to reach host %q", p.id, host)
	}
	return p.policy.CheckNetwork(ctx, host)
}

func matchesPluginAllow(allow []string, host string) bool {
	for _, pat := range allow {
		if pat == "*" || strings.EqualFold(pat, host) {
			return true
		}
		if strings.HasPrefix(pat, "*.") && strings.HasSuffix(host, pat[1:]) {
			return true
		}
	}
	return false
}

// buildHostModule registers and instantiates the 5 host imports a plugin
// may call, each bound to inst's policy, permission spec and rate
// limiter, into the runtime's module namespace under hostModuleName.
func (h *Host) buildHostModule(inst *Plugin) (api.Module, error) {
	builder := h.runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(inst.hostHTTPRequest).
		Export("http-request")
	builder.NewFunctionBuilder().
		WithFunc(inst.hostReadFile).
		Export("read-file")
	builder.NewFunctionBuilder().
		WithFunc(inst.hostWriteFile).
		Export("write-file")
	builder.NewFunctionBuilder().
		WithFunc(inst.hostGetEnv).
		Export("get-env")
	builder.NewFunctionBuilder().
		WithFunc(inst.hostLog).
		Export("log")

	return builder.Instantiate(h.ctx())
}

// decodeArgs reads the caller's request envelope out of guest memory and
// unmarshals it into v.
func decodeArgs(mod api.Module, ptr, length uint32, v interface{}) error {
	raw, err := readGuestBytes(mod, ptr, length)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func encodeResult(ctx context.Context, mod api.Module, v interface{}) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": "encode result: " + err.Error()})
	}
	packed, err := writeGuestResult(ctx, mod, data)
	if err != nil {
		slog.Error("wasm.host.write_result_failed", "error", err)
		return 0
	}
	return packed
}

func (p *Plugin) checkRate(function string) error {
	if p.limiter != nil && !p.limiter.Allow(p.id, function) {
		return fmt.Errorf("wasm: plugin %q exceeded rate limit for %q", p.id, function)
	}
	return nil
}

func (p *Plugin) hostHTTPRequest(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	var args httpRequestArgs
	if err := decodeArgs(mod, ptr, length, &args); err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}
	if err := p.checkRate("http-request"); err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}

	if err := p.checkPluginNetwork(ctx, args.URL); err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}

	method := args.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, args.URL, strings.NewReader(args.Body))
	if err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}
	for k, v := range args.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, sandbox.DefaultResourceLimits().MaxReadBytes))
	if err != nil {
		return encodeResult(ctx, mod, httpRequestResult{Error: err.Error()})
	}
	return encodeResult(ctx, mod, httpRequestResult{Status: resp.StatusCode, Body: string(body)})
}

func (p *Plugin) hostReadFile(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	var args readFileArgs
	if err := decodeArgs(mod, ptr, length, &args); err != nil {
		return encodeResult(ctx, mod, readFileResult{Error: err.Error()})
	}
	if err := p.checkRate("read-file"); err != nil {
		return encodeResult(ctx, mod, readFileResult{Error: err.Error()})
	}

	canon, err := p.policy.ValidatePath(args.Path, sandbox.PathRead)
	if err != nil {
		return encodeResult(ctx, mod, readFileResult{Error: err.Error()})
	}
	data, err := os.ReadFile(canon)
	if err != nil {
		return encodeResult(ctx, mod, readFileResult{Error: err.Error()})
	}
	if readCap := sandbox.DefaultResourceLimits().MaxReadBytes; int64(len(data)) > readCap {
		data = data[:readCap]
	}
	return encodeResult(ctx, mod, readFileResult{Data: string(data)})
}

func (p *Plugin) hostWriteFile(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	var args writeFileArgs
	if err := decodeArgs(mod, ptr, length, &args); err != nil {
		return encodeResult(ctx, mod, writeFileResult{Error: err.Error()})
	}
	if err := p.checkRate("write-file"); err != nil {
		return encodeResult(ctx, mod, writeFileResult{Error: err.Error()})
	}
	if int64(len(args.Data)) > sandbox.DefaultResourceLimits().MaxWriteBytes {
		return encodeResult(ctx, mod, writeFileResult{Error: "wasm: write exceeds size cap"})
	}

	canon, err := p.policy.ValidatePath(args.Path, sandbox.PathWrite)
	if err != nil {
		return encodeResult(ctx, mod, writeFileResult{Error: err.Error()})
	}
	if err := os.WriteFile(canon, []byte(args.Data), 0o644); err != nil {
		return encodeResult(ctx, mod, writeFileResult{Error: err.Error()})
	}
	return encodeResult(ctx, mod, writeFileResult{})
}

func (p *Plugin) hostGetEnv(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	var args getEnvArgs
	if err := decodeArgs(mod, ptr, length, &args); err != nil {
		return encodeResult(ctx, mod, getEnvResult{})
	}
	if err := p.checkRate("get-env"); err != nil {
		return encodeResult(ctx, mod, getEnvResult{})
	}
	if !p.permissions.EnvAllowed(args.Name) {
		return encodeResult(ctx, mod, getEnvResult{})
	}
	value, found := os.LookupEnv(args.Name)
	return encodeResult(ctx, mod, getEnvResult{Value: value, Found: found})
}

func (p *Plugin) hostLog(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	var args logArgs
	if err := decodeArgs(mod, ptr, length, &args); err != nil {
		return 0
	}
	level := slog.LevelInfo
	switch strings.ToLower(args.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.Log(ctx, level, "wasm.plugin.log", "plugin", p.id, "message", args.Message)
	return 0
}
