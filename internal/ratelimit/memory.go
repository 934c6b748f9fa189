package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// MemoryStore keeps timestamps in process memory. At most maxClients
// identifiers are tracked; the least recently seen one is evicted first.
type MemoryStore struct {
	mu      sync.Mutex
	clients *simplelru.LRU[string, []time.Time]
}

func NewMemoryStore(maxClients int) (*MemoryStore, error) {
	clients, err := simplelru.NewLRU[string, []time.Time](maxClients, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}
	return &MemoryStore{clients: clients}, nil
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, limit int, window time.Duration) (Result, error) {
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps, _ := s.clients.Get(key)
	recent := make([]time.Time, 0, len(stamps)+1)
	for _, ts := range stamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= limit {
		s.clients.Add(key, recent)
		return Result{Count: len(recent), Oldest: recent[0]}, nil
	}

	recent = append(recent, now)
	s.clients.Add(key, recent)
	return Result{Allowed: true, Count: len(recent)}, nil
}

// Len returns the number of tracked client identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients.Len()
}
