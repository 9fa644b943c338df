package audit

import (
	"context"
	"testing"
	"time"
)

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	err := svc.LogCallEvent(context.Background(), EventTypeCallCreated, "t1", "u1", "requester", "c1", "created")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("expected clock timestamp, got %v", e.CreatedAt)
	}
}

func TestAppend_RejectsMissingTenant(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{Type: EventTypeCallCreated}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
