package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

const readFileSchema = `{
	"type": "object",
	"properties": {"path": {"type": "string"}},
	"required": ["path"]
}`

const writeFileSchema = `{
	"type": "object",
	"properties": {"path": {"type": "string"}, "content": {"type": "string"}},
	"required": ["path", "content"]
}`

const listFilesSchema = `{
	"type": "object",
	"properties": {"path": {"type": "string"}},
	"required": ["path"]
}`

type pathArgs struct {
	Path string `json:"path"`
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// resolveAndValidate joins a relative path against the per-call workspace
// (if any) and checks the result against the policy's declared filesystem
// roots, returning the canonicalized path I/O should actually use.
func resolveAndValidate(ctx context.Context, policy *sandbox.Policy, rawPath string, mode sandbox.PathMode) (string, error) {
	path := rawPath
	if !filepath.IsAbs(path) {
		if ws := ToolWorkspaceFromCtx(ctx); ws != "" {
			path = filepath.Join(ws, path)
		}
	}
	if policy == nil {
		return path, nil
	}
	return policy.ValidatePath(path, mode)
}

// NewReadFileTool builds the file-read tool: every path is resolved and
// checked against the sandbox's declared filesystem roots before any I/O.
func NewReadFileTool() *Tool {
	return &Tool{
		Name:        "read_file",
		Description: "Read the contents of a file",
		RawSchema:   readFileSchema,
		Sandbox: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
			var a pathArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return err
			}
			_, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathRead)
			return err
		},
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			var a pathArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			resolved, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathRead)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			return SilentResult(string(data)), nil
		},
	}
}

// NewWriteFileTool builds the file-write tool, sandbox-checked the same
// way as NewReadFileTool but with PathWrite mode.
func NewWriteFileTool() *Tool {
	return &Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating it if necessary",
		RawSchema:   writeFileSchema,
		Sandbox: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
			var a writeArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return err
			}
			_, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathWrite)
			return err
		},
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			var a writeArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			resolved, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathWrite)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return ErrorResult(err.Error()), nil
			}
			if err := os.WriteFile(resolved, []byte(a.Content), 0o644); err != nil {
				return ErrorResult(err.Error()), nil
			}
			return SilentResult(fmt.Sprintf("wrote %d bytes to %s", len(a.Content), resolved)), nil
		},
	}
}

// NewListFilesTool builds the directory-listing tool.
func NewListFilesTool() *Tool {
	return &Tool{
		Name:        "list_files",
		Description: "List the entries of a directory",
		RawSchema:   listFilesSchema,
		Sandbox: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
			var a pathArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return err
			}
			_, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathRead)
			return err
		},
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			var a pathArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			resolved, err := resolveAndValidate(ctx, policy, a.Path, sandbox.PathRead)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}
			var out string
			for _, e := range entries {
				if e.IsDir() {
					out += e.Name() + "/\n"
				} else {
					out += e.Name() + "\n"
				}
			}
			if out == "" {
				out = "(empty directory)"
			}
			return SilentResult(out), nil
		},
	}
}
