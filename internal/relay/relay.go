// Package relay implements topic fan-out for ephemeral events. Delivery is
// at-most-once per currently-connected member, per publish call: a member
// whose outbound queue is full simply misses that event. Consumers that need
// guaranteed delivery reconcile through the durable history path instead.
package relay

import (
	"log"
	"sync"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/metrics"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/topic"
)

// Relay fans events out to the current members of a topic. Publishes to the
// same topic are serialized by a per-topic lock, so events delivered to a
// member preserve the relative order of the publish calls that produced them.
// No ordering is guaranteed across topics.
type Relay struct {
	registry *topic.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Relay over the given registry.
func New(registry *topic.Registry) *Relay {
	return &Relay{
		registry: registry,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Publish delivers data to every member of the topic, including the sender's
// own connection if it is a member (clients ignore their own echo at the UI
// layer). Deliveries that cannot be enqueued are dropped and do not affect the
// other members.
func (r *Relay) Publish(topicKey string, data []byte) {
	r.publish(topicKey, data, nil)
}

// PublishExcept behaves like Publish but skips the given connection. Used for
// call signaling, where the sender must never receive its own signal back.
func (r *Relay) PublishExcept(topicKey string, except topic.Conn, data []byte) {
	r.publish(topicKey, data, except)
}

func (r *Relay) publish(topicKey string, data []byte, except topic.Conn) {
	lock := r.topicLock(topicKey)
	lock.Lock()
	defer lock.Unlock()

	for _, member := range r.registry.Members(topicKey) {
		if except != nil && member == except {
			continue
		}
		if !member.Enqueue(data) {
			metrics.DeliveriesDropped.Inc()
			log.Printf("relay: dropped delivery topic=%s conn=%s (queue full or closed)",
				topicKey, member.ID())
			continue
		}
		metrics.EventsDelivered.Inc()
	}
}

// topicLock returns the serialization lock for a topic, creating it on first
// use. Locks are never removed; topic-key cardinality is bounded by the live
// conversation count.
func (r *Relay) topicLock(topicKey string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[topicKey]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[topicKey] = lock
	}
	return lock
}
