package reporting

import (
	"context"
	"math"
	"testing"
	"time"

	"libras-central/internal/dispatch"
)

func mustInsert(t *testing.T, store *dispatch.MemoryStore, c dispatch.CallRequest) {
	t.Helper()
	if err := store.Insert(context.Background(), c); err != nil {
		t.Fatalf("Insert(%s) error = %v", c.ID, err)
	}
}

func TestQueueSummary(t *testing.T) {
	store := dispatch.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Finished call: 30s wait, 10min session.
	claimed1 := base.Add(30 * time.Second)
	ended1 := claimed1.Add(10 * time.Minute)
	mustInsert(t, store, dispatch.CallRequest{
		ID: "c1", TenantID: "tenant-a", RequesterID: "u1",
		State: dispatch.StateFinished,
		CreatedAt: base, ClaimedAt: &claimed1, EndedAt: &ended1, UpdatedAt: ended1,
	})

	// Finished call: 90s wait, 4min session.
	created2 := base.Add(time.Hour)
	claimed2 := created2.Add(90 * time.Second)
	ended2 := claimed2.Add(4 * time.Minute)
	mustInsert(t, store, dispatch.CallRequest{
		ID: "c2", TenantID: "tenant-a", RequesterID: "u2",
		State: dispatch.StateFinished,
		CreatedAt: created2, ClaimedAt: &claimed2, EndedAt: &ended2, UpdatedAt: ended2,
	})

	// Canceled before claim: counts, but no wait/session contribution.
	created3 := base.Add(2 * time.Hour)
	ended3 := created3.Add(time.Minute)
	mustInsert(t, store, dispatch.CallRequest{
		ID: "c3", TenantID: "tenant-a", RequesterID: "u3",
		State: dispatch.StateCanceled,
		CreatedAt: created3, EndedAt: &ended3, UpdatedAt: ended3,
	})

	// Still waiting: live depth only.
	mustInsert(t, store, dispatch.CallRequest{
		ID: "c4", TenantID: "tenant-a", RequesterID: "u4",
		State: dispatch.StateWaiting, CreatedAt: base.Add(3 * time.Hour), UpdatedAt: base.Add(3 * time.Hour),
	})

	// Other tenant: invisible.
	mustInsert(t, store, dispatch.CallRequest{
		ID: "c5", TenantID: "tenant-b", RequesterID: "u5",
		State: dispatch.StateFinished, CreatedAt: base, UpdatedAt: base,
	})

	svc := NewService(store)
	sum, err := svc.QueueSummary(ctx, "tenant-a", base.Add(-time.Hour), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QueueSummary() error = %v", err)
	}

	if sum.TotalEnded != 3 || sum.Finished != 2 || sum.Canceled != 1 {
		t.Fatalf("counts = %d/%d/%d, want 3/2/1", sum.TotalEnded, sum.Finished, sum.Canceled)
	}
	if sum.ClaimedCount != 2 {
		t.Fatalf("claimed = %d, want 2", sum.ClaimedCount)
	}
	if math.Abs(sum.AvgWaitSeconds-60) > 1e-9 {
		t.Fatalf("avg wait = %v, want 60", sum.AvgWaitSeconds)
	}
	if math.Abs(sum.MaxWaitSeconds-90) > 1e-9 {
		t.Fatalf("max wait = %v, want 90", sum.MaxWaitSeconds)
	}
	if math.Abs(sum.AvgSessionSeconds-420) > 1e-9 {
		t.Fatalf("avg session = %v, want 420", sum.AvgSessionSeconds)
	}
	if sum.CurrentlyWaiting != 1 {
		t.Fatalf("waiting depth = %d, want 1", sum.CurrentlyWaiting)
	}
}

func TestQueueSummaryRangeBounds(t *testing.T) {
	store := dispatch.NewMemoryStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ended := base.Add(time.Minute)

	mustInsert(t, store, dispatch.CallRequest{
		ID: "in", TenantID: "tenant-a", RequesterID: "u1",
		State: dispatch.StateCanceled, CreatedAt: base, EndedAt: &ended, UpdatedAt: ended,
	})
	outside := base.Add(48 * time.Hour)
	mustInsert(t, store, dispatch.CallRequest{
		ID: "out", TenantID: "tenant-a", RequesterID: "u2",
		State: dispatch.StateCanceled, CreatedAt: outside, EndedAt: &outside, UpdatedAt: outside,
	})

	svc := NewService(store)
	sum, err := svc.QueueSummary(context.Background(), "tenant-a", base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QueueSummary() error = %v", err)
	}
	if sum.TotalEnded != 1 {
		t.Fatalf("total ended = %d, want 1 (range filter)", sum.TotalEnded)
	}
}
