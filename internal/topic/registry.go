// Package topic provides the in-memory registry that maps live connections to
// the topics (fan-out scopes) they have joined. Membership lives exactly as
// long as the connection: there is no persistence and no timeout-based expiry;
// a process restart clears every topic and clients must re-join.
package topic

import (
	"sort"
	"sync"
)

// Direct returns the topic key for a direct conversation between two users.
// The pair is sorted before joining so both participants compute the same key
// regardless of who initiates.
func Direct(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Group returns the topic key for a group conversation.
func Group(groupID string) string { return groupID }

// Notification returns the per-user topic key for out-of-band alerts.
func Notification(userID string) string { return userID }

// Conn is the minimal connection surface the registry and relay need. The ws
// package's Connection satisfies it; tests substitute lightweight fakes.
type Conn interface {
	// ID returns a stable identifier for the connection.
	ID() string
	// Enqueue hands an outbound frame to the connection without blocking.
	// It returns false if the frame was dropped (queue full or closed).
	Enqueue(data []byte) bool
}

// Registry tracks which connections belong to which topics. It is safe for
// concurrent use by all connection workers. Topics are created implicitly on
// first join and removed when their last member leaves.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[Conn]struct{}
	byConn map[Conn]map[string]struct{}
}

// NewRegistry creates an empty Registry. The registry is owned by the relay
// process and passed to whatever needs it; there is no package-level instance.
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[Conn]struct{}),
		byConn: make(map[Conn]map[string]struct{}),
	}
}

// Join adds the connection to the topic's member set. Joining a topic the
// connection already belongs to is a no-op.
func (r *Registry) Join(conn Conn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		members = make(map[Conn]struct{})
		r.topics[topic] = members
	}
	members[conn] = struct{}{}

	joined, ok := r.byConn[conn]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[conn] = joined
	}
	joined[topic] = struct{}{}
}

// Leave removes the connection from a single topic. Empty topics are pruned.
func (r *Registry) Leave(conn Conn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn, topic)
}

// LeaveAll removes the connection from every topic it had joined. It is
// invoked exactly once, at disconnect.
func (r *Registry) LeaveAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.byConn[conn] {
		r.leaveLocked(conn, topic)
	}
	delete(r.byConn, conn)
}

func (r *Registry) leaveLocked(conn Conn, topic string) {
	if members, ok := r.topics[topic]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
	if joined, ok := r.byConn[conn]; ok {
		delete(joined, topic)
		if len(joined) == 0 {
			delete(r.byConn, conn)
		}
	}
}

// Members returns a snapshot of the topic's current member set. The returned
// slice is safe to iterate without holding any lock. Order is not significant
// but is made deterministic (by connection ID) for callers that log or test
// against it.
func (r *Registry) Members(topic string) []Conn {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.topics[topic]))
	for conn := range r.topics[topic] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i].ID() < members[j].ID() })
	return members
}

// Topics returns the topics the connection currently belongs to.
func (r *Registry) Topics(conn Conn) []string {
	r.mu.RLock()
	topics := make([]string, 0, len(r.byConn[conn]))
	for topic := range r.byConn[conn] {
		topics = append(topics, topic)
	}
	r.mu.RUnlock()

	sort.Strings(topics)
	return topics
}

// TopicCount returns the number of non-empty topics, for metrics.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	n := len(r.topics)
	r.mu.RUnlock()
	return n
}
