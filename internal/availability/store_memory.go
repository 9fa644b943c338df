package availability

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory schedule store for tests and early development.
type MemoryStore struct {
	mu        sync.Mutex
	schedules map[string]Schedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schedules: map[string]Schedule{}}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[tenantID]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return sched, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.TenantID] = sched
	return nil
}
