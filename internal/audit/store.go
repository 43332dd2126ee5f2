package audit

import (
	"context"
	"sync"
)

// Sink accepts events for delivery. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, ev Event) error
}

// Store is a sink that can also be queried, used by tests and the in-process
// backend.
type Store interface {
	Sink
	ListByCode(ctx context.Context, code string) ([]Event, error)
}

// InMemoryStore keeps events in order of arrival.
type InMemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *InMemoryStore) ListByCode(_ context.Context, code string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Code == code {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Fanout delivers every event to each sink in order, returning the first
// failure.
type Fanout []Sink

func (f Fanout) Append(ctx context.Context, ev Event) error {
	for _, sink := range f {
		if err := sink.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
