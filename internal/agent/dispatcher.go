package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/weave-logic-ai/clawft-sub017/internal/bus"
	"github.com/weave-logic-ai/clawft-sub017/internal/session"
)

// Dispatcher consumes InboundMessages off a Bus, routes each to the Loop
// registered for its target agent, and publishes the resulting reply back
// onto the Bus as an OutboundMessage. It is the component that actually
// makes C8 "consume the bus" and "emit outbound messages" as §2 describes,
// on top of the single-turn Loop.Run state machine.
type Dispatcher struct {
	bus *bus.Bus

	mu    sync.RWMutex
	loops map[string]*Loop
}

// NewDispatcher builds a Dispatcher with no agents registered yet.
func NewDispatcher(b *bus.Bus) *Dispatcher {
	return &Dispatcher{bus: b, loops: make(map[string]*Loop)}
}

// Register associates an agent ID with the Loop that serves it. Replaces
// any previously registered Loop for the same ID.
func (d *Dispatcher) Register(agentID string, l *Loop) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loops[agentID] = l
}

func (d *Dispatcher) loopFor(agentID string) (*Loop, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.loops[agentID]
	return l, ok
}

// Run drains the bus's inbound queue until ctx is cancelled, dispatching
// each message to its target agent's Loop concurrently. One slow or
// blocked agent never holds up delivery to another: each message is
// handled on its own goroutine, and Loop.Run's own per-session lock
// serializes same-session turns within that.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msg, ok := d.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		wg.Add(1)
		go func(msg bus.InboundMessage) {
			defer wg.Done()
			d.handle(ctx, msg)
		}(msg)
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg bus.InboundMessage) {
	loop, ok := d.loopFor(msg.AgentID)
	if !ok {
		slog.Warn("dispatcher: no loop registered for agent", "agent", msg.AgentID)
		return
	}

	kind := session.PeerKind(msg.PeerKind)
	if kind == "" {
		kind = session.PeerDirect
	}
	sessionKey := session.BuildKey(msg.AgentID, msg.Channel, kind, msg.ChatID)

	result, err := loop.Run(ctx, RunRequest{
		SessionKey: sessionKey,
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		UserID:     msg.UserID,
		Message:    msg.Content,
	})
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled: no partial reply to publish
		}
		slog.Warn("dispatcher: agent loop failed", "agent", msg.AgentID, "session", sessionKey, "error", err)
		return
	}

	if result.Content == "" {
		return
	}
	d.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: result.Content,
	})

	go loop.MaybeSummarize(context.Background(), sessionKey)
}
