package server

import (
	"fmt"
	"sync"
	"testing"
)

func TestClientRegistry_StoreAndGet(t *testing.T) {
	registry := NewClientRegistry()
	client := NewMockClient("tcp-1")

	registry.Store(client)

	stored, ok := registry.Get("tcp-1")
	if !ok {
		t.Fatal("Expected client to be stored")
	}
	if stored != Client(client) {
		t.Error("Expected the same client identity back")
	}
}

func TestClientRegistry_GetMissing(t *testing.T) {
	registry := NewClientRegistry()
	if _, ok := registry.Get("ghost"); ok {
		t.Error("Expected lookup miss for unknown id")
	}
}

func TestClientRegistry_Delete(t *testing.T) {
	registry := NewClientRegistry()
	registry.Store(NewMockClient("tcp-1"))
	registry.Delete("tcp-1")

	if _, ok := registry.Get("tcp-1"); ok {
		t.Error("Expected client to be deleted")
	}
	// Deleting again is a no-op.
	registry.Delete("tcp-1")
}

func TestClientRegistry_List(t *testing.T) {
	registry := NewClientRegistry()
	for i := 0; i < 3; i++ {
		registry.Store(NewMockClient(fmt.Sprintf("client-%d", i)))
	}

	if got := len(registry.List()); got != 3 {
		t.Errorf("Expected 3 clients, got %d", got)
	}
}

func TestClientRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewClientRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", i)
			for j := 0; j < 100; j++ {
				registry.Store(NewMockClient(id))
				registry.Get(id)
				registry.List()
				registry.Delete(id)
			}
		}(i)
	}
	wg.Wait()

	if got := len(registry.List()); got != 0 {
		t.Errorf("Expected empty registry after churn, got %d", got)
	}
}
