package persist

import (
	"context"
	"sync"

	"intake/pkg/platform/sentinel"
)

// InMemoryEnvelopeStore keeps envelopes in a map. Development and test
// backend; favors clarity over performance.
type InMemoryEnvelopeStore struct {
	mu        sync.RWMutex
	envelopes map[string]Envelope
	lastCode  string
}

func NewInMemoryEnvelopeStore() *InMemoryEnvelopeStore {
	return &InMemoryEnvelopeStore{envelopes: make(map[string]Envelope)}
}

func (s *InMemoryEnvelopeStore) Get(_ context.Context, code string) (Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.envelopes[code]
	if !ok {
		return Envelope{}, sentinel.ErrNotFound
	}
	return env, nil
}

func (s *InMemoryEnvelopeStore) Put(_ context.Context, code string, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes[code] = env
	return nil
}

func (s *InMemoryEnvelopeStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.envelopes[code]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.envelopes, code)
	return nil
}

func (s *InMemoryEnvelopeStore) List(_ context.Context) (map[string]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Envelope, len(s.envelopes))
	for code, env := range s.envelopes {
		out[code] = env
	}
	return out, nil
}

func (s *InMemoryEnvelopeStore) SetLastCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCode = code
	return nil
}

func (s *InMemoryEnvelopeStore) LastCode(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastCode == "" {
		return "", sentinel.ErrNotFound
	}
	return s.lastCode, nil
}
