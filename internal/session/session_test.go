package session

import (
	"sync"
	"testing"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
)

// TestKeyRoundTrip is the direct test for testable property 1:
// decode(encode(k)) == k for any byte string k.
func TestKeyRoundTrip(t *testing.T) {
	cases := []string{
		"agent:foo:telegram:direct:12345",
		"has a space",
		"has:colons:and/slashes\\and\x00nul",
		"unicode-ключ-日本語",
		"%25-already-percent-encoded",
		"",
		string([]byte{0, 1, 2, 255, '/', '\\', ':'}),
	}
	for _, k := range cases {
		enc := encodeKey(k)
		if got := decodeKey(enc); got != k {
			t.Errorf("round trip failed for %q: encoded=%q decoded=%q", k, enc, got)
		}
		for i := 0; i < len(enc); i++ {
			c := enc[i]
			if c == '/' || c == '\\' || c == 0 {
				t.Errorf("encoded form of %q contains unsafe byte %q", k, c)
			}
		}
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	m := NewManager("")
	s1 := m.GetOrCreate("agent:a:x")
	s2 := m.GetOrCreate("agent:a:x")
	if s1 != s2 {
		t.Fatal("expected the same *Session pointer on repeated GetOrCreate")
	}
}

func TestAddMessageAndHistory(t *testing.T) {
	m := NewManager("")
	key := "agent:a:x"
	m.AddMessage(key, providers.NewTextMessage("user", "hi"))
	m.AddMessage(key, providers.NewTextMessage("assistant", "hello"))

	hist := m.GetHistory(key, 0)
	if len(hist) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(hist))
	}
	if hist[0].Text() != "hi" || hist[1].Text() != "hello" {
		t.Errorf("unexpected order/content: %+v", hist)
	}

	last1 := m.GetHistory(key, 1)
	if len(last1) != 1 || last1[0].Text() != "hello" {
		t.Errorf("expected last 1 message to be 'hello', got %+v", last1)
	}
}

func TestGetHistoryReturnsACopy(t *testing.T) {
	m := NewManager("")
	key := "agent:a:x"
	m.AddMessage(key, providers.NewTextMessage("user", "hi"))
	hist := m.GetHistory(key, 0)
	hist[0] = providers.NewTextMessage("user", "mutated")

	hist2 := m.GetHistory(key, 0)
	if hist2[0].Text() != "hi" {
		t.Error("mutating a returned history slice must not affect the stored session")
	}
}

// TestListDoesNotBlockOnOtherSessionMutation is the direct test for the
// per-session-lock concurrency requirement: List must not block behind a
// slow mutation held on a different session.
func TestListDoesNotBlockOnOtherSessionMutation(t *testing.T) {
	m := NewManager("")
	busyKey := "agent:a:busy"
	otherKey := "agent:a:other"
	m.GetOrCreate(otherKey)

	busy := m.GetOrCreate(busyKey)
	busy.mu.Lock() // simulate a long-held mutation on one session
	defer busy.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.List("a")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("List blocked behind a lock held on a different session")
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	m := NewManager("")
	key := "agent:a:x"
	m.GetOrCreate(key)
	if err := m.Delete(key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hist := m.GetHistory(key, 0)
	if hist != nil {
		t.Error("expected deleted session to have no history")
	}
}

func TestSaveAndReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:a:telegram:direct:123:weird key"
	m.AddMessage(key, providers.NewTextMessage("user", "hello there"))
	m.SetSummary(key, "a short summary")
	if err := m.Save(key); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	m2 := NewManager(dir)
	hist := m2.GetHistory(key, 0)
	if len(hist) != 1 || hist[0].Text() != "hello there" {
		t.Fatalf("expected reloaded history to contain the saved message, got %+v", hist)
	}
	if got := m2.GetSummary(key); got != "a short summary" {
		t.Errorf("expected summary to survive reload, got %q", got)
	}
}

func TestConcurrentAddMessageIsSerializedPerSession(t *testing.T) {
	m := NewManager("")
	key := "agent:a:x"
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddMessage(key, providers.NewTextMessage("user", "x"))
		}()
	}
	wg.Wait()
	if got := len(m.GetHistory(key, 0)); got != 50 {
		t.Errorf("expected 50 messages after concurrent appends, got %d", got)
	}
}
