package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/tools"
)

// HealthStatus is a connection's most recently observed state.
type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFailed   HealthStatus = "failed"
)

const (
	defaultSchemaTTL      = 300 * time.Second
	defaultHealthInterval = 60 * time.Second
	defaultMaxReconnects  = 5
	initialReconnBackoff  = 2 * time.Second
	maxReconnBackoff      = 60 * time.Second
)

// ServerStatus reports one connection's state for diagnostics.
type ServerStatus struct {
	Name      string       `json:"name"`
	Transport string       `json:"transport"`
	Health    HealthStatus `json:"health"`
	ToolCount int          `json:"tool_count"`
	Error     string       `json:"error,omitempty"`
}

// connection tracks one live (or recently live) MCP server.
type connection struct {
	name   string
	config ServerConfig

	session   *McpSession
	connected atomic.Bool
	cancel    context.CancelFunc

	mu             sync.Mutex
	health         HealthStatus
	reconnAttempts int
	lastErr        string
	toolNames      []string
	toolsFetched   time.Time
}

func (c *connection) currentSession() *McpSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// McpClientPool manages the set of live MCP server connections for the
// kernel: config auto-discovery, per-agent config overrides layered onto
// the base set, TTL-based schema caching, periodic health checks and
// bounded reconnect with backoff.
type McpClientPool struct {
	registry *tools.Registry

	mu    sync.RWMutex
	conns map[string]*connection
	base  map[string]ServerConfig

	schemaTTL      time.Duration
	healthInterval time.Duration
	maxReconnects  int
}

// PoolOption configures a McpClientPool.
type PoolOption func(*McpClientPool)

func WithBaseConfigs(cfgs map[string]ServerConfig) PoolOption {
	return func(p *McpClientPool) { p.base = cfgs }
}

func WithSchemaTTL(d time.Duration) PoolOption {
	return func(p *McpClientPool) { p.schemaTTL = d }
}

func WithHealthInterval(d time.Duration) PoolOption {
	return func(p *McpClientPool) { p.healthInterval = d }
}

func WithMaxReconnects(n int) PoolOption {
	return func(p *McpClientPool) { p.maxReconnects = n }
}

// NewPool builds a pool bound to registry. Call Start (standalone, base
// configs connect immediately) or LoadForAgent (per-agent override set)
// to bring servers up.
func NewPool(registry *tools.Registry, opts ...PoolOption) *McpClientPool {
	p := &McpClientPool{
		registry:       registry,
		conns:          make(map[string]*connection),
		base:           make(map[string]ServerConfig),
		schemaTTL:      defaultSchemaTTL,
		healthInterval: defaultHealthInterval,
		maxReconnects:  defaultMaxReconnects,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start connects every enabled base config. Non-fatal per server: a
// failed connection is logged and skipped so the rest can still come up.
func (p *McpClientPool) Start(ctx context.Context) error {
	var failed []string
	for name, cfg := range p.base {
		if !cfg.enabled() {
			slog.Info("mcp.server.disabled", "server", name)
			continue
		}
		if err := p.connectServer(ctx, cfg); err != nil {
			slog.Warn("mcp.server.connect_failed", "server", name, "error", err)
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("mcp: servers failed to connect: %v", failed)
	}
	return nil
}

// LoadForAgent replaces the pool's connections with the result of layering
// overrides onto the base config set, keyed by server name. A server
// named only in base, only in overrides, or in both, is connected; one
// named in neither is torn down.
func (p *McpClientPool) LoadForAgent(ctx context.Context, overrides map[string]ServerConfig) error {
	merged := make(map[string]ServerConfig, len(p.base)+len(overrides))
	for name, cfg := range p.base {
		merged[name] = cfg
	}
	for name, override := range overrides {
		if base, ok := merged[name]; ok {
			merged[name] = base.merge(override)
		} else {
			if override.Name == "" {
				override.Name = name
			}
			merged[name] = override
		}
	}

	p.Stop()

	var failed []string
	for name, cfg := range merged {
		if !cfg.enabled() {
			continue
		}
		if err := p.connectServer(ctx, cfg); err != nil {
			slog.Warn("mcp.server.connect_failed", "server", name, "error", err)
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("mcp: servers failed to connect: %v", failed)
	}
	return nil
}

func (p *McpClientPool) connectServer(ctx context.Context, cfg ServerConfig) error {
	transport, err := p.dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	session := newSession(transport)
	if err := session.Connect(ctx); err != nil {
		_ = transport.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	discovered, err := session.ListTools(ctx)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("list_tools: %w", err)
	}

	conn := &connection{name: cfg.Name, config: cfg, session: session, health: HealthHealthy, toolsFetched: time.Now()}
	conn.connected.Store(true)

	bridged := bridgeTools(conn, discovered)
	names := make([]string, 0, len(bridged))
	for _, t := range bridged {
		origName := t.Name
		if err := p.registry.RegisterMCPTool(cfg.Name, t); err != nil {
			slog.Warn("mcp.tool.register_failed", "server", cfg.Name, "tool", origName, "error", err)
			continue
		}
		names = append(names, t.Name)
	}
	conn.toolNames = names
	if len(names) > 0 {
		tools.RegisterToolGroup("mcp:"+cfg.Name, names)
	}
	p.refreshAllGroup()

	hctx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel

	p.mu.Lock()
	p.conns[cfg.Name] = conn
	p.mu.Unlock()

	go p.healthLoop(hctx, conn)

	slog.Info("mcp.server.connected", "server", cfg.Name, "transport", cfg.Transport, "tools", len(names))
	return nil
}

func (p *McpClientPool) dial(ctx context.Context, cfg ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case "stdio", "":
		return newStdioTransport(ctx, cfg.Command, cfg.Args, mapToEnvSlice(cfg.Env))
	case "http":
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		return newHTTPTransport(cfg.URL, cfg.Headers, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %q", cfg.Transport)
	}
}

// refreshAllGroup rebuilds the "mcp" dynamic tool group spanning every
// connected server. Must be called with p.mu NOT held.
func (p *McpClientPool) refreshAllGroup() {
	p.mu.RLock()
	var all []string
	for _, c := range p.conns {
		all = append(all, c.toolNames...)
	}
	p.mu.RUnlock()

	if len(all) > 0 {
		tools.RegisterToolGroup("mcp", all)
	} else {
		tools.UnregisterToolGroup("mcp")
	}
}

// Stop tears down every connection and unregisters their tools.
func (p *McpClientPool) Stop() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*connection)
	p.mu.Unlock()

	for name, conn := range conns {
		if conn.cancel != nil {
			conn.cancel()
		}
		if s := conn.currentSession(); s != nil {
			_ = s.Close()
		}
		p.registry.UnregisterServer(name)
		tools.UnregisterToolGroup("mcp:" + name)
	}
	tools.UnregisterToolGroup("mcp")
}

// ListServerStatus reports every connection's current state.
func (p *McpClientPool) ListServerStatus() []ServerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ServerStatus, 0, len(p.conns))
	for _, c := range p.conns {
		c.mu.Lock()
		out = append(out, ServerStatus{
			Name:      c.name,
			Transport: c.config.Transport,
			Health:    c.health,
			ToolCount: len(c.toolNames),
			Error:     c.lastErr,
		})
		c.mu.Unlock()
	}
	return out
}

// RefreshTools re-lists a server's tools if its schema cache has expired,
// re-registering any newly advertised tool. Tools the server has dropped
// are left registered (they will simply start failing) since the kernel
// has no mechanism to know a skill/agent no longer references them.
func (p *McpClientPool) RefreshTools(ctx context.Context, serverName string) error {
	p.mu.RLock()
	conn, ok := p.conns[serverName]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mcp: unknown server %q", serverName)
	}

	conn.mu.Lock()
	stale := time.Since(conn.toolsFetched) > p.schemaTTL
	conn.mu.Unlock()
	if !stale {
		return nil
	}

	discovered, err := conn.currentSession().ListTools(ctx)
	if err != nil {
		return fmt.Errorf("refresh tools for %q: %w", serverName, err)
	}

	bridged := bridgeTools(conn, discovered)
	names := make([]string, 0, len(bridged))
	for _, t := range bridged {
		if err := p.registry.RegisterMCPTool(serverName, t); err != nil {
			continue
		}
		names = append(names, t.Name)
	}

	conn.mu.Lock()
	conn.toolNames = names
	conn.toolsFetched = time.Now()
	conn.mu.Unlock()

	tools.RegisterToolGroup("mcp:"+serverName, names)
	p.refreshAllGroup()
	return nil
}
