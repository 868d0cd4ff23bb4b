package server

import (
	"sync"
)

// ClientRegistry tracks every known client by id, independent of topic
// subscriptions. It backs the admin API and MCP introspection tools.
type ClientRegistry struct {
	mu    sync.RWMutex
	store map[string]Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{store: make(map[string]Client)}
}

func (r *ClientRegistry) Store(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[client.Meta().ID] = client
}

func (r *ClientRegistry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.store[id]
	return val, ok
}

func (r *ClientRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
}

func (r *ClientRegistry) List() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.store))
	for _, client := range r.store {
		clients = append(clients, client)
	}
	return clients
}
