package audit

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStorage keeps events in process memory. It backs tests and
// deployments without Postgres; events are lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *MemoryStorage) StoreBatch(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events = append(s.events, cloneEvent(e))
	}
	return nil
}

// Query returns matching events newest first.
func (s *MemoryStorage) Query(_ context.Context, criteria Criteria) ([]Event, error) {
	s.mu.RLock()
	matched := make([]Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if criteria.Matches(s.events[i]) {
			matched = append(matched, cloneEvent(s.events[i]))
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Event) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if criteria.Offset > 0 {
		if criteria.Offset >= len(matched) {
			return []Event{}, nil
		}
		matched = matched[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(matched) > criteria.Limit {
		matched = matched[:criteria.Limit]
	}
	return matched, nil
}

func (s *MemoryStorage) Count(_ context.Context, criteria Criteria) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if criteria.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored events.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func cloneEvent(e Event) Event {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
