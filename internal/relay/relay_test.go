package relay

import (
	"testing"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/topic"
)

// fakeConn records enqueued frames; full=true simulates a saturated outbound
// queue.
type fakeConn struct {
	id     string
	full   bool
	frames [][]byte
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(data []byte) bool {
	if f.full {
		return false
	}
	f.frames = append(f.frames, data)
	return true
}

func TestPublishFansOutToAllMembers(t *testing.T) {
	registry := topic.NewRegistry()
	r := New(registry)

	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	c3 := &fakeConn{id: "c3"}
	registry.Join(c1, "t1")
	registry.Join(c2, "t1")
	registry.Join(c3, "other")

	payload := []byte(`{"type":"chat:message"}`)
	r.Publish("t1", payload)

	for _, c := range []*fakeConn{c1, c2} {
		if len(c.frames) != 1 {
			t.Errorf("conn %s received %d frames, want 1", c.id, len(c.frames))
			continue
		}
		if string(c.frames[0]) != string(payload) {
			t.Errorf("conn %s received %q, want %q", c.id, c.frames[0], payload)
		}
	}
	if len(c3.frames) != 0 {
		t.Errorf("conn on another topic received %d frames, want 0", len(c3.frames))
	}
}

func TestPublishToEmptyTopic(t *testing.T) {
	r := New(topic.NewRegistry())
	// Must not panic or block.
	r.Publish("nobody-here", []byte("x"))
}

func TestPublishExceptSkipsSender(t *testing.T) {
	registry := topic.NewRegistry()
	r := New(registry)

	sender := &fakeConn{id: "sender"}
	peer := &fakeConn{id: "peer"}
	registry.Join(sender, "t1")
	registry.Join(peer, "t1")

	r.PublishExcept("t1", sender, []byte("offer"))

	if len(sender.frames) != 0 {
		t.Errorf("sender received %d frames, want 0", len(sender.frames))
	}
	if len(peer.frames) != 1 {
		t.Errorf("peer received %d frames, want 1", len(peer.frames))
	}
}

func TestPublishDeliversOncePerMember(t *testing.T) {
	registry := topic.NewRegistry()
	r := New(registry)

	c := &fakeConn{id: "c1"}
	registry.Join(c, "t1")
	registry.Join(c, "t1") // duplicate join must not double-deliver

	r.Publish("t1", []byte("x"))

	if len(c.frames) != 1 {
		t.Errorf("conn received %d frames, want 1", len(c.frames))
	}
}

func TestPublishDropsOnFullQueueWithoutAffectingOthers(t *testing.T) {
	registry := topic.NewRegistry()
	r := New(registry)

	slow := &fakeConn{id: "slow", full: true}
	fast := &fakeConn{id: "fast"}
	registry.Join(slow, "t1")
	registry.Join(fast, "t1")

	r.Publish("t1", []byte("a"))
	r.Publish("t1", []byte("b"))

	if len(slow.frames) != 0 {
		t.Errorf("saturated conn received %d frames, want 0", len(slow.frames))
	}
	if len(fast.frames) != 2 {
		t.Errorf("healthy conn received %d frames, want 2", len(fast.frames))
	}
}

func TestPublishPreservesOrderPerTopic(t *testing.T) {
	registry := topic.NewRegistry()
	r := New(registry)

	c := &fakeConn{id: "c1"}
	registry.Join(c, "t1")

	want := []string{"1", "2", "3", "4"}
	for _, p := range want {
		r.Publish("t1", []byte(p))
	}

	if len(c.frames) != len(want) {
		t.Fatalf("received %d frames, want %d", len(c.frames), len(want))
	}
	for i, p := range want {
		if string(c.frames[i]) != p {
			t.Errorf("frame %d = %q, want %q", i, c.frames[i], p)
		}
	}
}
