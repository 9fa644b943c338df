package availability

import (
	"context"
	"testing"
	"time"
)

func newTestGate(t *testing.T, sched Schedule, now time.Time) *Gate {
	t.Helper()
	store := NewMemoryStore()
	if sched.TenantID != "" {
		if err := store.Upsert(context.Background(), sched); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	g := NewGate(store)
	g.clock = func() time.Time { return now }
	return g
}

func TestGate_BusinessHoursMatch(t *testing.T) {
	sched := Schedule{
		TenantID: "t1",
		Timezone: "America/Sao_Paulo",
		Windows: map[string][]Window{
			"mon": {{Start: "08:00", End: "18:00"}},
			"tue": {{Start: "08:00", End: "18:00"}},
			"wed": {{Start: "08:00", End: "18:00"}},
		},
	}

	loc, _ := time.LoadLocation("America/Sao_Paulo")
	// Wednesday 10:00 local time.
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, loc)

	g := newTestGate(t, sched, now)
	ok, err := g.IsAvailable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected available during business hours")
	}
}

func TestGate_OutsideWindowUnavailable(t *testing.T) {
	sched := Schedule{
		TenantID: "t1",
		Timezone: "UTC",
		Windows:  map[string][]Window{"wed": {{Start: "08:00", End: "12:00"}}},
	}
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) // Wednesday 15:00

	g := newTestGate(t, sched, now)
	ok, err := g.IsAvailable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected unavailable outside window")
	}
}

func TestGate_OvernightWindowWraps(t *testing.T) {
	sched := Schedule{
		TenantID: "t1",
		Timezone: "UTC",
		Windows:  map[string][]Window{"wed": {{Start: "22:00", End: "06:00"}}},
	}
	now := time.Date(2025, 3, 12, 23, 30, 0, 0, time.UTC) // Wednesday 23:30

	g := newTestGate(t, sched, now)
	ok, err := g.IsAvailable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected overnight window to match")
	}
}

func TestGate_NoScheduleMeansUnavailable(t *testing.T) {
	g := newTestGate(t, Schedule{}, time.Now())
	ok, err := g.IsAvailable(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("missing schedule must not error: %v", err)
	}
	if ok {
		t.Fatalf("expected unavailable for tenant without schedule")
	}
}

func TestGate_MalformedWindowsAreSkipped(t *testing.T) {
	// Malformed entries are skipped; the valid one still matches.
	sched := Schedule{
		TenantID: "t1",
		Timezone: "UTC",
		Windows: map[string][]Window{
			"wed": {{Start: "99:99", End: "10:00"}, {Start: "08:00", End: "18:00"}},
		},
	}
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	// Bypass Upsert validation to simulate a corrupt stored row.
	store.schedules = map[string]Schedule{"t1": sched}
	g := NewGate(store)
	g.clock = func() time.Time { return now }

	ok, err := g.IsAvailable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected the well-formed window to match")
	}
}

func TestSchedule_ValidateRejectsBadInput(t *testing.T) {
	bad := []Schedule{
		{TenantID: ""},
		{TenantID: "t", Timezone: "Not/AZone"},
		{TenantID: "t", Windows: map[string][]Window{"monday": {}}},
		{TenantID: "t", Windows: map[string][]Window{"mon": {{Start: "8h00", End: "12:00"}}}},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
