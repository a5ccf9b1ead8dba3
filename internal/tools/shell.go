package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
)

const execSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "array", "items": {"type": "string"}, "description": "argv, e.g. [\"ls\", \"-la\"]"},
		"working_dir": {"type": "string"}
	},
	"required": ["command"]
}`

type execArgs struct {
	Command    []string `json:"command"`
	WorkingDir string   `json:"working_dir"`
}

// NewExecTool builds the shell tool: argv is validated against the
// sandbox policy's command allowlist before exec.CommandContext ever
// sees it, and wrapped through enforcer.Wrap when a real OS-level
// sandbox is configured.
func NewExecTool(defaultDir string, enforcer sandbox.OSEnforcer, timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Tool{
		Name:        "exec",
		Description: "Execute a command and return its combined stdout/stderr",
		RawSchema:   execSchema,
		Sandbox: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) error {
			var a execArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return err
			}
			return policy.ValidateCommand(a.Command)
		},
		Handler: func(ctx context.Context, policy *sandbox.Policy, argsJSON string) (*Result, error) {
			var a execArgs
			if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			if len(a.Command) == 0 {
				return nil, fmt.Errorf("command must be a non-empty argv array")
			}
			argv := a.Command
			if enforcer != nil {
				wrapped, err := enforcer.Wrap(argv)
				if err != nil {
					return nil, fmt.Errorf("sandbox enforcement unavailable: %w", err)
				}
				argv = wrapped
			}

			dir := a.WorkingDir
			if dir == "" {
				dir = defaultDir
			}

			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
			cmd.Dir = dir
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			runErr := cmd.Run()

			var out strings.Builder
			out.WriteString(stdout.String())
			if stderr.Len() > 0 {
				if out.Len() > 0 {
					out.WriteString("\n")
				}
				out.WriteString("stderr:\n")
				out.WriteString(stderr.String())
			}

			if runCtx.Err() == context.DeadlineExceeded {
				return ErrorResult(fmt.Sprintf("command timed out after %s", timeout)), nil
			}
			if runErr != nil {
				if out.Len() == 0 {
					out.WriteString(runErr.Error())
				}
				return ErrorResult(out.String()), nil
			}
			if out.Len() == 0 {
				return SilentResult("(command completed with no output)"), nil
			}
			return SilentResult(out.String()), nil
		},
	}
}
