package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
)

// limitHistoryTurns keeps only the last N user turns (and their associated
// assistant/tool messages). A "turn" is one user message plus every
// subsequent non-user message up to the next user message. limit <= 0
// means unlimited.
func limitHistoryTurns(msgs []providers.Message, limit int) []providers.Message {
	if limit <= 0 || len(msgs) == 0 {
		return msgs
	}

	userCount := 0
	cutoff := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			userCount++
			if userCount > limit {
				return msgs[cutoff:]
			}
			cutoff = i
		}
	}
	return msgs
}

// sanitizeHistory repairs tool_use/tool_result pairing after truncation or
// compaction has cut history at an arbitrary boundary: it drops orphaned
// tool messages (no preceding assistant tool_calls to match) and
// synthesizes a placeholder result for any tool_call a preceding assistant
// message expects but whose result fell outside the window.
func sanitizeHistory(msgs []providers.Message) []providers.Message {
	if len(msgs) == 0 {
		return msgs
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == "tool" {
		slog.Warn("dropping orphaned tool message at history start", "tool_call_id", msgs[start].ToolCallID)
		start++
	}
	if start >= len(msgs) {
		return nil
	}

	var result []providers.Message
	for i := start; i < len(msgs); i++ {
		msg := msgs[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			expected := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				expected[tc.ID] = true
			}
			result = append(result, msg)

			for i+1 < len(msgs) && msgs[i+1].Role == "tool" {
				i++
				toolMsg := msgs[i]
				if expected[toolMsg.ToolCallID] {
					result = append(result, toolMsg)
					delete(expected, toolMsg.ToolCallID)
				} else {
					slog.Warn("dropping mismatched tool result", "tool_call_id", toolMsg.ToolCallID)
				}
			}

			for id := range expected {
				slog.Warn("synthesizing missing tool result", "tool_call_id", id)
				synthesized := providers.NewTextMessage("tool", "[tool result missing: session history was truncated]")
				synthesized.ToolCallID = id
				result = append(result, synthesized)
			}
		} else if msg.Role == "tool" {
			slog.Warn("dropping orphaned tool message mid-history", "tool_call_id", msg.ToolCallID)
		} else {
			result = append(result, msg)
		}
	}
	return result
}

// Thresholds MaybeSummarize checks before compacting a session's history
// into its Summary field; below either one, summarization is skipped entirely.
const (
	summarizeMinMessages    = 50
	summarizeHistoryShare   = 0.75
	summarizeKeepLast       = 4
	summarizeEstCharsPerTok = 4
)

// MaybeSummarize compacts a session's history into its Summary field once
// it grows past the configured share of the context window or a minimum
// message count, whichever triggers last. It runs synchronously (the
// caller decides whether to invoke it in a background goroutine) and is a
// no-op if contextWindow is unset.
func (l *Loop) MaybeSummarize(ctx context.Context, sessionKey string) {
	if l.contextWindow <= 0 {
		return
	}
	history := l.sessions.GetHistory(sessionKey, 0)
	if len(history) <= summarizeMinMessages {
		return
	}

	estimate := 0
	for _, m := range history {
		estimate += len(m.Text()) / summarizeEstCharsPerTok
	}
	threshold := int(float64(l.contextWindow) * summarizeHistoryShare)
	if estimate <= threshold {
		return
	}

	toSummarize := history[:len(history)-summarizeKeepLast]
	var sb strings.Builder
	for _, m := range toSummarize {
		switch m.Role {
		case "user":
			sb.WriteString("user: " + m.Text() + "\n")
		case "assistant":
			sb.WriteString("assistant: " + SanitizeAssistantContent(m.Text()) + "\n")
		}
	}

	prompt := "Provide a concise summary of this conversation, preserving key context:\n"
	if existing := l.sessions.GetSummary(sessionKey); existing != "" {
		prompt += "Existing context: " + existing + "\n"
	}
	prompt += "\n" + sb.String()

	sctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := l.provider.Chat(sctx, providers.ChatRequest{
		Messages: []providers.Message{providers.NewTextMessage("user", prompt)},
		Model:    l.model,
		Options:  providers.Options{MaxTokens: 1024, Temperature: 0.3},
	})
	if err != nil {
		slog.Warn("agent loop: summarization failed", "agent", l.id, "session", sessionKey, "error", err)
		return
	}

	l.sessions.SetSummary(sessionKey, SanitizeAssistantContent(resp.Content))
	l.sessions.TruncateHistory(sessionKey, summarizeKeepLast)
	l.sessions.IncrementCompaction(sessionKey)
	if err := l.sessions.Save(sessionKey); err != nil {
		slog.Warn("agent loop: session save after summarize failed", "agent", l.id, "session", sessionKey, "error", err)
	}
}
