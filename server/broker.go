package server

import (
	"log/slog"
	"sync"
)

// Broker is the subscription registry: topic name → set of subscriber
// identities. It is the only state shared between the stream connection
// goroutines and the datagram loop, so every access happens under the
// mutex. Network sends never happen here; callers snapshot and fan out
// outside the lock.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[Client]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[Client]struct{}),
	}
}

// Subscribe adds client to the topic's set. Re-subscribing is a no-op on
// the set; the return value reports whether the client was newly added.
func (b *Broker) Subscribe(topic string, client Client) bool {
	slog.Debug("Subscribing", "topic", topic, "clientId", client.Meta().ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[Client]struct{})
	}
	if _, exists := b.subs[topic][client]; exists {
		return false
	}
	b.subs[topic][client] = struct{}{}
	return true
}

// UnsubscribeAll removes client from every topic set and returns how many
// subscriptions were dropped. Used on stream disconnect and TERMINATE.
func (b *Broker) UnsubscribeAll(client Client) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for topic, set := range b.subs {
		if _, exists := set[client]; exists {
			delete(set, client)
			removed++
		}
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
	if removed > 0 {
		slog.Debug("Unsubscribed from all topics", "clientId", client.Meta().ID, "topics", removed)
	}
	return removed
}

// Subscribers returns a snapshot of the topic's current subscriber set.
// Topics match by exact byte equality only.
func (b *Broker) Subscribers(topic string) []Client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.subs[topic]
	clients := make([]Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	return clients
}

// TopicCounts returns subscriber counts per topic, for the admin surface.
func (b *Broker) TopicCounts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[string]int, len(b.subs))
	for topic, set := range b.subs {
		counts[topic] = len(set)
	}
	return counts
}

// TopicsOf returns the topics a client is currently subscribed to.
func (b *Broker) TopicsOf(client Client) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var topics []string
	for topic, set := range b.subs {
		if _, exists := set[client]; exists {
			topics = append(topics, topic)
		}
	}
	return topics
}
