// pkg/objectstore/objectstore.go
package objectstore

import (
	"context"
	"sync"
)

// ObjectStore is the write-only blob interface the pipeline stages through.
// Put overwrites whatever object currently lives at the key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
}

// MemoryStore is an in-process ObjectStore used by tests
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutCount tracks writes per key
	PutCount map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		PutCount: make(map[string]int),
	}
}

// Put stores a copy of body at key, replacing any previous object
func (m *MemoryStore) Put(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	m.objects[key] = buf
	m.PutCount[key]++
	return nil
}

// Get returns the object stored at key, if any
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, ok := m.objects[key]
	return body, ok
}
