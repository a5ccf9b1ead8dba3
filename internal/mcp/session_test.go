package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// recordingTransport is an in-memory Transport that records every call and
// replays a canned result for "initialize", ignoring (but recording)
// everything else.
type recordingTransport struct {
	mu            sync.Mutex
	requests      []string
	notifications []string
	initResult    json.RawMessage
}

func (t *recordingTransport) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, method)
	if method == "initialize" {
		return t.initResult, nil
	}
	return json.RawMessage(`{}`), nil
}

func (t *recordingTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifications = append(t.notifications, method)
	return nil
}

func (t *recordingTransport) Close() error { return nil }

// TestSessionConnectHandshake verifies S6: exactly one "initialize"
// request observed, followed by exactly one "notifications/initialized"
// with no reply expected, and that list_tools succeeds afterwards.
func TestSessionConnectHandshake(t *testing.T) {
	rt := &recordingTransport{initResult: json.RawMessage(`{"protocolVersion":"2025-06-18"}`)}
	session := newSession(rt)

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.ProtocolVersion != "2025-06-18" {
		t.Errorf("expected protocol version 2025-06-18, got %q", session.ProtocolVersion)
	}

	rt.mu.Lock()
	requests := append([]string(nil), rt.requests...)
	notifications := append([]string(nil), rt.notifications...)
	rt.mu.Unlock()

	if len(requests) != 1 || requests[0] != "initialize" {
		t.Fatalf("expected exactly one initialize request, got %v", requests)
	}
	if len(notifications) != 1 || notifications[0] != "notifications/initialized" {
		t.Fatalf("expected exactly one notifications/initialized, got %v", notifications)
	}

	if _, err := session.ListTools(context.Background()); err != nil {
		t.Fatalf("list_tools after connect: %v", err)
	}
}

// TestSessionConnectDefaultsMissingProtocolVersion covers the "safe
// defaults for missing fields" requirement: a server that replies with an
// empty object still yields a usable protocol version.
func TestSessionConnectDefaultsMissingProtocolVersion(t *testing.T) {
	rt := &recordingTransport{initResult: json.RawMessage(`{}`)}
	session := newSession(rt)

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.ProtocolVersion != protocolVersion {
		t.Errorf("expected default protocol version %q, got %q", protocolVersion, session.ProtocolVersion)
	}
}
