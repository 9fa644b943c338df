package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory call ledger for tests and early development.
// The state-guarded updates hold the store mutex, giving the same
// single-winner semantics the Postgres conditional updates provide.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]CallRequest // key: tenantID + "|" + callID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]CallRequest{}}
}

func key(tenantID, callID string) string { return tenantID + "|" + callID }

func (s *MemoryStore) Insert(ctx context.Context, c CallRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.calls {
		if existing.TenantID == c.TenantID &&
			existing.RequesterID == c.RequesterID &&
			existing.State.Active() {
			return ErrDuplicateActive
		}
	}
	s.calls[key(c.TenantID, c.ID)] = c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, callID string) (CallRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[key(tenantID, callID)]
	if !ok {
		return CallRequest{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) FindActiveByRequester(ctx context.Context, tenantID, requesterID string) (CallRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.calls {
		if c.TenantID == tenantID && c.RequesterID == requesterID && c.State.Active() {
			return c, true, nil
		}
	}
	return CallRequest{}, false, nil
}

func (s *MemoryStore) ListWaiting(ctx context.Context, tenantID string) ([]CallRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CallRequest, 0)
	for _, c := range s.calls {
		if c.TenantID == tenantID && c.State == StateWaiting {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ClaimWaiting(ctx context.Context, tenantID, callID, dispatcherID, roomRef string, at time.Time) (CallRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenantID, callID)
	c, ok := s.calls[k]
	if !ok {
		return CallRequest{}, ErrNotFound
	}
	if c.State != StateWaiting {
		if c.State == StateInProgress {
			return c, ErrAlreadyClaimed
		}
		return c, ErrStateChanged
	}

	claimedAt := at
	c.State = StateInProgress
	c.ClaimedBy = dispatcherID
	c.RoomRef = roomRef
	c.ClaimedAt = &claimedAt
	c.UpdatedAt = at
	s.calls[k] = c
	return c, nil
}

func (s *MemoryStore) Terminate(ctx context.Context, tenantID, callID string, to State, at time.Time) (CallRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenantID, callID)
	c, ok := s.calls[k]
	if !ok {
		return CallRequest{}, ErrNotFound
	}
	if c.State.Terminal() {
		return c, ErrStateChanged
	}
	// Finishing is only defined for claimed calls; a waiting request can
	// leave the queue only by being claimed or canceled.
	if to == StateFinished && c.State != StateInProgress {
		return c, ErrStateChanged
	}

	endedAt := at
	c.State = to
	c.EndedAt = &endedAt
	c.UpdatedAt = at
	s.calls[k] = c
	return c, nil
}

func (s *MemoryStore) ListEnded(ctx context.Context, tenantID string, from, to time.Time) ([]CallRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CallRequest, 0)
	for _, c := range s.calls {
		if c.TenantID != tenantID || !c.State.Terminal() {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
