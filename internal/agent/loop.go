// Package agent implements the Agent Loop: the state machine that drives
// one conversation turn from a received user message through context
// assembly, provider calls, and concurrent tool execution, to a posted
// outbound reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	clawctx "github.com/weave-logic-ai/clawft-sub017/internal/context"
	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
	"github.com/weave-logic-ai/clawft-sub017/internal/sandbox"
	"github.com/weave-logic-ai/clawft-sub017/internal/session"
	"github.com/weave-logic-ai/clawft-sub017/internal/skills"
	"github.com/weave-logic-ai/clawft-sub017/internal/tools"
)

// defaultMaxIterations bounds RECEIVE→...→PROVIDER_CALL repetitions when a
// caller does not configure one explicitly.
const defaultMaxIterations = 25

// defaultHistoryShare is the fraction of the provider's context window the
// Context Assembler is allowed to spend before it starts trimming history.
const defaultHistoryShare = 0.75

// RunRequest is one turn's input: a user message already routed to a
// session key by the caller (channel adapter / dispatcher).
type RunRequest struct {
	SessionKey string
	Channel    string
	ChatID     string
	UserID     string
	Message    string
}

// RunResult is the outcome of one Run call.
type RunResult struct {
	Content    string
	Iterations int
	Usage      providers.Usage
}

// LoopConfig wires together the components a Loop drives. Sessions,
// Assembler, and Tools are required; everything else has a usable default.
type LoopConfig struct {
	AgentID  string
	Provider providers.Provider
	Model    string

	Sessions  *session.Manager
	Assembler *clawctx.Assembler
	Tools     *tools.Registry
	Sandbox   *sandbox.Policy

	ToolPolicy      *tools.PolicyEngine
	AgentToolPolicy *tools.PolicySpec

	AgentDef       *skills.Agent
	SkillsRegistry *skills.Registry

	MaxIterations int // tool_iteration_limit; <= 0 uses defaultMaxIterations
	ContextWindow int // provider context window in tokens; <= 0 leaves the budget unbounded
	HistoryLimit  int // max user turns kept in the window; <= 0 keeps everything
}

// Loop runs the RECEIVE → SESSION_APPEND → CONTEXT_BUILD → PROVIDER_CALL →
// [TOOL_FANOUT → SESSION_APPEND → PROVIDER_CALL]* → EMIT state machine for
// one agent. A Loop is safe for concurrent Run calls across different
// session keys; calls sharing a session key serialize on that key's
// advisory lock.
type Loop struct {
	id       string
	provider providers.Provider
	model    string

	sessions  *session.Manager
	assembler *clawctx.Assembler
	tools     *tools.Registry
	policy    *sandbox.Policy

	toolPolicy      *tools.PolicyEngine
	agentToolPolicy *tools.PolicySpec

	agentDef       *skills.Agent
	skillsRegistry *skills.Registry

	maxIterations int
	contextWindow int
	historyLimit  int

	sessionLocks sync.Map // session key -> *sync.Mutex
}

// NewLoop builds a Loop from cfg, applying defaults for unset tunables.
func NewLoop(cfg LoopConfig) *Loop {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Loop{
		id:              cfg.AgentID,
		provider:        cfg.Provider,
		model:           cfg.Model,
		sessions:        cfg.Sessions,
		assembler:       cfg.Assembler,
		tools:           cfg.Tools,
		policy:          cfg.Sandbox,
		toolPolicy:      cfg.ToolPolicy,
		agentToolPolicy: cfg.AgentToolPolicy,
		agentDef:        cfg.AgentDef,
		skillsRegistry:  cfg.SkillsRegistry,
		maxIterations:   maxIterations,
		contextWindow:   cfg.ContextWindow,
		historyLimit:    cfg.HistoryLimit,
	}
}

// sessionLock returns the advisory mutex for key, creating one on first
// use. Two Run calls on the same key serialize here; different keys never
// block each other.
func (l *Loop) sessionLock(key string) *sync.Mutex {
	muI, _ := l.sessionLocks.LoadOrStore(key, &sync.Mutex{})
	return muI.(*sync.Mutex)
}

// Run drives one conversation turn to completion and returns the final
// assistant text. On cancellation it returns ctx.Err() without appending a
// partial assistant message to the session — messages stored by earlier
// iterations (including an assistant tool-call message appended before a
// TOOL_FANOUT) stay, but the fan-out's tool results are not appended and
// no further state mutates once cancellation is observed.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	mu := l.sessionLock(req.SessionKey)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.sessions.AddMessage(req.SessionKey, providers.NewTextMessage("user", req.Message))

	agentContext := l.buildAgentContext()
	tokenBudget := 0
	if l.contextWindow > 0 {
		tokenBudget = int(float64(l.contextWindow) * defaultHistoryShare)
	}

	var totalUsage providers.Usage
	iteration := 0
	var finalContent string
	limitExceeded := false

loop:
	for {
		iteration++
		if iteration > l.maxIterations {
			limitExceeded = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history := l.sessions.GetHistory(req.SessionKey, 0)
		history = limitHistoryTurns(history, l.historyLimit)
		history = sanitizeHistory(history)

		messages, err := l.assembler.Build(agentContext, history, tokenBudget)
		if err != nil {
			return nil, fmt.Errorf("context build (iteration %d): %w", iteration, err)
		}

		var toolDefs []providers.ToolDefinition
		if l.toolPolicy != nil && l.tools != nil {
			toolDefs = l.toolPolicy.FilterTools(l.tools, l.id, l.provider.Name(), l.agentToolPolicy)
		}

		resp, err := l.provider.Chat(ctx, providers.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
			Model:    l.model,
			Options:  providers.Options{MaxTokens: 4096, Temperature: 0.7},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("provider call failed (iteration %d): %w", iteration, err)
		}
		totalUsage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break loop
		}

		assistantContent := resp.Content
		l.sessions.AddMessage(req.SessionKey, providers.Message{
			Role:      "assistant",
			Content:   &assistantContent,
			ToolCalls: resp.ToolCalls,
		})

		toolMessages := l.runToolFanout(ctx, resp.ToolCalls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range toolMessages {
			l.sessions.AddMessage(req.SessionKey, m)
		}
	}

	if limitExceeded {
		slog.Warn("agent loop: tool_iteration_limit exceeded", "agent", l.id, "session", req.SessionKey, "limit", l.maxIterations)
		finalContent = fmt.Sprintf("I stopped after %d tool iterations without reaching a final answer.", l.maxIterations)
	}

	finalContent = SanitizeAssistantContent(finalContent)
	l.sessions.AddMessage(req.SessionKey, providers.NewTextMessage("assistant", finalContent))
	l.sessions.UpdateMetadata(req.SessionKey, l.model, l.provider.Name(), req.Channel)
	l.sessions.AccumulateTokens(req.SessionKey, int64(totalUsage.PromptTokens), int64(totalUsage.CompletionTokens))
	if err := l.sessions.Save(req.SessionKey); err != nil {
		slog.Warn("agent loop: session save failed", "agent", l.id, "session", req.SessionKey, "error", err)
	}

	return &RunResult{Content: finalContent, Iterations: iteration, Usage: totalUsage}, nil
}

// indexedToolResult carries a tool call's message alongside its position in
// the assistant's tool_calls list, so fan-out completion order (arbitrary)
// can be resorted back to declaration order before the messages are
// appended to the session.
type indexedToolResult struct {
	idx int
	msg providers.Message
}

// runToolFanout executes every tool call concurrently and returns the
// resulting tool messages in the order the assistant declared the calls,
// regardless of which finished first — satisfying the tool-call-ordering
// property independent of completion order.
func (l *Loop) runToolFanout(ctx context.Context, calls []providers.ToolCall) []providers.Message {
	resultCh := make(chan indexedToolResult, len(calls))
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(idx int, tc providers.ToolCall) {
			defer wg.Done()
			resultCh <- indexedToolResult{idx: idx, msg: l.executeOne(ctx, tc)}
		}(i, tc)
	}
	// Closing resultCh happens on its own goroutine: the range below must
	// not have to wait for wg.Wait() on the same goroutine that drains it,
	// or a full channel buffer (impossible here since it's sized to len(calls),
	// but kept for the general pattern) would deadlock producer and consumer.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	collected := make([]indexedToolResult, 0, len(calls))
	for r := range resultCh {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })

	out := make([]providers.Message, len(collected))
	for i, r := range collected {
		out[i] = r.msg
	}
	return out
}

// executeOne runs a single tool call through the sandbox-checked registry
// pipeline and turns its outcome into a tool-role message. A tool error
// (not found, schema invalid, permission denied, execution failed) becomes
// the tool message's content as serialized JSON — the LLM sees it as
// ordinary tool output, not a loop-terminating failure.
func (l *Loop) executeOne(ctx context.Context, tc providers.ToolCall) providers.Message {
	result, err := tools.Execute(ctx, l.tools, l.policy, tc.Name, tc.Arguments)
	if err != nil {
		content := tools.SerializeError(err)
		return providers.Message{Role: "tool", Content: &content, ToolCallID: tc.ID}
	}
	content := result.ForLLM
	return providers.Message{Role: "tool", Content: &content, ToolCallID: tc.ID}
}

// buildAgentContext resolves the agent's system prompt and skill
// instructions into the shape the Context Assembler composes. Missing
// AgentDef/SkillsRegistry degrade to a minimal prompt rather than erroring,
// since a Loop can run with just a Provider and Tools wired (e.g. in tests).
func (l *Loop) buildAgentContext() clawctx.AgentContext {
	systemPrompt := fmt.Sprintf("You are agent %q. Available tools: %s.", l.id, strings.Join(l.toolNames(), ", "))
	var variables map[string]string
	if l.agentDef != nil {
		if l.agentDef.SystemPrompt != "" {
			systemPrompt = l.agentDef.SystemPrompt
		}
		variables = l.agentDef.Variables
	}

	var skillTexts []string
	if l.agentDef != nil && l.skillsRegistry != nil {
		for _, s := range l.skillsRegistry.AgentSkills(l.agentDef) {
			skillTexts = append(skillTexts, skills.Substitute(s.Instructions, "", nil, mergeVariables(s.Variables, variables)))
		}
	}

	return clawctx.AgentContext{
		SystemPrompt: systemPrompt,
		Skills:       skillTexts,
	}
}

func (l *Loop) toolNames() []string {
	if l.tools == nil {
		return nil
	}
	return l.tools.List()
}

// mergeVariables layers agent-level variables over a skill's own, agent
// values winning on key collision (an agent's instantiation of a skill
// should be able to override the skill's defaults).
func mergeVariables(skillVars, agentVars map[string]string) map[string]string {
	if len(skillVars) == 0 {
		return agentVars
	}
	if len(agentVars) == 0 {
		return skillVars
	}
	merged := make(map[string]string, len(skillVars)+len(agentVars))
	for k, v := range skillVars {
		merged[k] = v
	}
	for k, v := range agentVars {
		merged[k] = v
	}
	return merged
}
