package storage

import (
	"context"
	"sync"

	"github.com/simshield/simshield-server/internal/models"
)

// MemoryStore is a bounded in-memory event archive. Once the cap is
// reached the oldest events drop first. It is the default archive when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	cap    int
	events []*models.SimulationEvent
}

// NewMemoryStore creates a memory store holding at most cap events
func NewMemoryStore(cap int) *MemoryStore {
	if cap <= 0 {
		cap = 500
	}
	return &MemoryStore{
		cap:    cap,
		events: make([]*models.SimulationEvent, 0, cap),
	}
}

// InsertEvent appends an event, dropping the oldest at capacity
func (s *MemoryStore) InsertEvent(_ context.Context, event *models.SimulationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == s.cap {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event.Clone())
	return nil
}

// ListEvents returns events newest first
func (s *MemoryStore) ListEvents(_ context.Context, limit, offset int) ([]*models.SimulationEvent, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(len(s.events))

	// Index from the newest end
	start := len(s.events) - offset
	if start < 0 {
		start = 0
	}

	out := make([]*models.SimulationEvent, 0, limit)
	for i := start - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i].Clone())
	}
	return out, total, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
