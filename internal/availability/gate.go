package availability

import (
	"context"
	"errors"
	"time"

	"libras-central/pkg/logger"
)

var ErrNotFound = errors.New("availability: schedule not found")

// Store is the persistence contract for tenant schedules.
type Store interface {
	Get(ctx context.Context, tenantID string) (Schedule, error)
	Upsert(ctx context.Context, s Schedule) error
}

// Gate answers "can a call be requested right now?" for a tenant.
//
// Failure mode: a missing or malformed schedule means unavailable for that
// tenant only; it is never an error that blocks unrelated tenants. Storage
// I/O errors do surface so callers can distinguish outage from closed hours.
type Gate struct {
	store Store
	clock func() time.Time
}

func NewGate(store Store) *Gate {
	return &Gate{store: store, clock: time.Now}
}

func (g *Gate) IsAvailable(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, nil
	}
	if g.store == nil {
		return false, errors.New("availability: store not configured")
	}

	s, err := g.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	loc, err := s.Location()
	if err != nil {
		// Misconfigured timezone closes this tenant, nothing more.
		logger.From(ctx).Warn("availability schedule has invalid timezone",
			"tenant_id", tenantID,
			"timezone", s.Timezone,
		)
		return false, nil
	}

	return s.Contains(g.clock().In(loc)), nil
}
