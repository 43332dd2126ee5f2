package attachment

import (
	"context"
	"sync"

	"intake/pkg/platform/sentinel"
)

// InMemoryStore keeps payloads in a map. It is the development and test
// backend; semantics match the Redis store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.entries[key] = buf
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *InMemoryStore) GarbageCollect(_ context.Context, live map[string]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if _, ok := live[key]; !ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
