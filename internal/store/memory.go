package store

import (
	"context"
	"sync"

	"sisko/internal/models"
)

// MemoryStore holds the queue in memory only. Fallback half of a failover
// pair and the store used in tests.
type MemoryStore struct {
	mu    sync.Mutex
	queue []models.ActionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ActionRecord, 0, len(s.queue))
	for _, a := range s.queue {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = make([]models.ActionRecord, 0, len(queue))
	for _, a := range queue {
		s.queue = append(s.queue, a.Clone())
	}
	return nil
}
