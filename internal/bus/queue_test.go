package bus

import (
	"context"
	"testing"
	"time"
)

func TestBusFIFOPerProducer(t *testing.T) {
	b := WithCapacity(8)
	for i := 0; i < 5; i++ {
		b.PublishInbound(InboundMessage{Content: string(rune('a' + i))})
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		msg, ok := b.ConsumeInbound(ctx)
		if !ok {
			t.Fatalf("expected message %d, got end-of-stream", i)
		}
		want := string(rune('a' + i))
		if msg.Content != want {
			t.Errorf("out of order: got %q want %q", msg.Content, want)
		}
	}
}

// TestBusProducerSuspendsOnFull is the direct test for testable property 8:
// a producer blocks once the bounded queue is full, and unblocks only once
// a consumer drains it.
func TestBusProducerSuspendsOnFull(t *testing.T) {
	b := WithCapacity(2)
	b.PublishInbound(InboundMessage{Content: "1"})
	b.PublishInbound(InboundMessage{Content: "2"})

	published := make(chan struct{})
	go func() {
		b.PublishInbound(InboundMessage{Content: "3"})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("producer did not suspend on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	ctx := context.Background()
	if _, ok := b.ConsumeInbound(ctx); !ok {
		t.Fatal("expected a buffered message")
	}

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("producer did not resume once the queue had room")
	}
}

func TestBusConsumeBlocksUntilContextCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected consume to time out on an empty queue")
	}
}

func TestBusCloseDrainsBufferedThenEndsStream(t *testing.T) {
	b := WithCapacity(4)
	b.PublishInbound(InboundMessage{Content: "buffered"})
	b.Close()

	ctx := context.Background()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok || msg.Content != "buffered" {
		t.Fatalf("expected buffered message to survive Close, got %+v ok=%v", msg, ok)
	}
	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected end-of-stream after buffered messages are drained")
	}
}

func TestEventPublisherBroadcast(t *testing.T) {
	p := newPublisher()
	received := make(chan Event, 1)
	p.Subscribe("sub1", func(e Event) { received <- e })
	p.Broadcast(Event{Name: "health"})
	select {
	case e := <-received:
		if e.Name != "health" {
			t.Errorf("got %q", e.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	p.Unsubscribe("sub1")
	p.Broadcast(Event{Name: "health"})
	select {
	case <-received:
		t.Fatal("unsubscribed handler should not be invoked")
	case <-time.After(20 * time.Millisecond):
	}
}
