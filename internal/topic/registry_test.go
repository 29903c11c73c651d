package topic

import "testing"

type fakeConn struct {
	id string
}

func (f *fakeConn) ID() string               { return f.id }
func (f *fakeConn) Enqueue(data []byte) bool { return true }

func TestDirectKeyIsSymmetric(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"alice", "bob", "alice:bob"},
		{"bob", "alice", "alice:bob"},
		{"u1", "u1", "u1:u1"},
		{"9", "10", "10:9"}, // lexicographic, not numeric
	}
	for _, tt := range tests {
		if got := Direct(tt.a, tt.b); got != tt.want {
			t.Errorf("Direct(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJoinAndMembers(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	r.Join(c1, "t1")
	r.Join(c2, "t1")
	r.Join(c1, "t2")

	members := r.Members("t1")
	if len(members) != 2 {
		t.Fatalf("Members(t1) = %d conns, want 2", len(members))
	}
	if members[0].ID() != "c1" || members[1].ID() != "c2" {
		t.Errorf("Members(t1) order = [%s %s], want [c1 c2]", members[0].ID(), members[1].ID())
	}

	if got := r.Members("t2"); len(got) != 1 || got[0] != Conn(c1) {
		t.Errorf("Members(t2) = %v, want [c1]", got)
	}
	if got := r.Members("missing"); len(got) != 0 {
		t.Errorf("Members(missing) = %d conns, want 0", len(got))
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{id: "c1"}

	r.Join(c, "t1")
	r.Join(c, "t1")
	r.Join(c, "t1")

	if got := len(r.Members("t1")); got != 1 {
		t.Errorf("Members(t1) = %d conns after repeated joins, want 1", got)
	}
}

func TestLeavePrunesEmptyTopics(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	r.Join(c1, "t1")
	r.Join(c2, "t1")
	if got := r.TopicCount(); got != 1 {
		t.Fatalf("TopicCount = %d, want 1", got)
	}

	r.Leave(c1, "t1")
	if got := len(r.Members("t1")); got != 1 {
		t.Errorf("Members(t1) = %d conns after one leave, want 1", got)
	}
	if got := r.TopicCount(); got != 1 {
		t.Errorf("TopicCount = %d after one leave, want 1", got)
	}

	r.Leave(c2, "t1")
	if got := r.TopicCount(); got != 0 {
		t.Errorf("TopicCount = %d after last leave, want 0", got)
	}
}

func TestLeaveAll(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	r.Join(c1, "t1")
	r.Join(c1, "t2")
	r.Join(c1, "t3")
	r.Join(c2, "t1")

	r.LeaveAll(c1)

	if got := r.Topics(c1); len(got) != 0 {
		t.Errorf("Topics(c1) = %v after LeaveAll, want none", got)
	}
	if got := r.Members("t1"); len(got) != 1 || got[0] != Conn(c2) {
		t.Errorf("Members(t1) = %v after LeaveAll(c1), want [c2]", got)
	}
	// t2 and t3 had only c1 and must be gone.
	if got := r.TopicCount(); got != 1 {
		t.Errorf("TopicCount = %d after LeaveAll, want 1", got)
	}

	// LeaveAll on a conn with no memberships is a no-op.
	r.LeaveAll(c1)
}

func TestTopics(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{id: "c1"}

	r.Join(c, "b")
	r.Join(c, "a")
	r.Join(c, "c")

	got := r.Topics(c)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Topics = %v, want %v", got, want)
		}
	}
}
