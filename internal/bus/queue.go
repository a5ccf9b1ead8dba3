package bus

import (
	"context"
	"sync"
)

// DefaultCapacity is the bounded queue size used when a Bus is built via
// New rather than WithCapacity.
const DefaultCapacity = 1024

// Bus is a bounded, multi-producer/multi-consumer FIFO of inbound and
// outbound messages. Send suspends the caller when the queue is full;
// Consume/recv suspends when it is empty. Ordering is preserved per
// producer, not globally across producers.
type Bus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	closeOnce sync.Once
	closed    chan struct{}

	pub *publisher
}

// New builds a Bus with DefaultCapacity.
func New() *Bus {
	return WithCapacity(DefaultCapacity)
}

// WithCapacity builds a Bus whose inbound and outbound queues each hold up
// to n buffered messages before Send blocks.
func WithCapacity(n int) *Bus {
	if n <= 0 {
		n = DefaultCapacity
	}
	return &Bus{
		inbound:  make(chan InboundMessage, n),
		outbound: make(chan OutboundMessage, n),
		closed:   make(chan struct{}),
		pub:      newPublisher(),
	}
}

// PublishInbound enqueues msg, blocking if the inbound queue is full.
// It is a no-op once Close has been called.
func (b *Bus) PublishInbound(msg InboundMessage) {
	select {
	case <-b.closed:
		return
	default:
	}
	select {
	case b.inbound <- msg:
	case <-b.closed:
	}
}

// ConsumeInbound dequeues the next inbound message, blocking until one
// arrives, ctx is cancelled, or the bus is closed and drained (ok=false).
// Messages already buffered before Close are still delivered.
func (b *Bus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	case <-b.closed:
		select {
		case msg := <-b.inbound:
			return msg, true
		default:
			return InboundMessage{}, false
		}
	}
}

// PublishOutbound enqueues msg, blocking if the outbound queue is full.
func (b *Bus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	case <-b.closed:
	}
}

// SubscribeOutbound dequeues the next outbound message, blocking until one
// arrives, ctx is cancelled, or the bus is closed and drained (ok=false).
// Messages already buffered before Close are still delivered.
func (b *Bus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	case <-b.closed:
		select {
		case msg := <-b.outbound:
			return msg, true
		default:
			return OutboundMessage{}, false
		}
	}
}

// Close signals end-of-stream: pending and future Consume/Subscribe calls
// observe end-of-stream once buffered messages are exhausted. Safe to call
// more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
}

// Events returns the Bus's EventPublisher for broadcast/subscribe of
// server-side events, independent of the inbound/outbound message queues.
func (b *Bus) Events() EventPublisher {
	return b.pub
}

// publisher is a simple fan-out EventPublisher: each subscriber receives
// every broadcast event on its own goroutine-free callback invocation.
type publisher struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

func newPublisher() *publisher {
	return &publisher{handlers: make(map[string]EventHandler)}
}

func (p *publisher) Subscribe(id string, handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[id] = handler
}

func (p *publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, id)
}

func (p *publisher) Broadcast(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.handlers {
		h(event)
	}
}
