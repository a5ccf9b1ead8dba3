package mcp

import (
	"context"
	"log/slog"
	"time"
)

// healthLoop periodically probes conn and attempts reconnection on
// failure, until ctx is cancelled (by Stop or LoadForAgent tearing the
// connection down).
func (p *McpClientPool) healthLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(p.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx, conn)
		}
	}
}

// probe sends a lightweight request to confirm the server is still
// responsive. A server that doesn't implement "ping" at all is still
// reachable at the transport level and is treated as healthy.
func (p *McpClientPool) probe(ctx context.Context, conn *connection) {
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := conn.session.SendRaw(pctx, "ping", map[string]interface{}{})
	if err == nil || isMethodNotFound(err) {
		conn.connected.Store(true)
		conn.mu.Lock()
		conn.health = HealthHealthy
		conn.reconnAttempts = 0
		conn.lastErr = ""
		conn.mu.Unlock()
		return
	}

	conn.connected.Store(false)
	conn.mu.Lock()
	conn.health = HealthDegraded
	conn.lastErr = err.Error()
	conn.mu.Unlock()
	slog.Warn("mcp.server.health_failed", "server", conn.name, "error", err)

	p.tryReconnect(ctx, conn)
}

func isMethodNotFound(err error) bool {
	rpcErr, ok := err.(*rpcError)
	return ok && rpcErr.Code == -32601
}

// tryReconnect rebuilds conn's transport and session from scratch after a
// bounded exponential backoff. A process-backed stdio server that died
// cannot be revived by re-pinging; it needs a fresh process.
func (p *McpClientPool) tryReconnect(ctx context.Context, conn *connection) {
	conn.mu.Lock()
	if conn.reconnAttempts >= p.maxReconnects {
		conn.health = HealthFailed
		conn.lastErr = "max reconnect attempts reached"
		conn.mu.Unlock()
		slog.Error("mcp.server.reconnect_exhausted", "server", conn.name)
		return
	}
	conn.reconnAttempts++
	attempt := conn.reconnAttempts
	conn.mu.Unlock()

	backoff := initialReconnBackoff * time.Duration(1<<(attempt-1))
	if backoff > maxReconnBackoff {
		backoff = maxReconnBackoff
	}
	slog.Info("mcp.server.reconnecting", "server", conn.name, "attempt", attempt, "backoff", backoff)

	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	transport, err := p.dial(ctx, conn.config)
	if err != nil {
		conn.mu.Lock()
		conn.lastErr = err.Error()
		conn.mu.Unlock()
		return
	}
	session := newSession(transport)
	if err := session.Connect(ctx); err != nil {
		_ = transport.Close()
		conn.mu.Lock()
		conn.lastErr = err.Error()
		conn.mu.Unlock()
		return
	}

	conn.mu.Lock()
	old := conn.session
	conn.session = session
	conn.health = HealthHealthy
	conn.reconnAttempts = 0
	conn.lastErr = ""
	conn.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	conn.connected.Store(true)

	slog.Info("mcp.server.reconnected", "server", conn.name)
}
