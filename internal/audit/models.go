package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - actor capture is best-effort; do not block call flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// CallID references the call request the event concerns.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallCreated        EventType = "call_created"
	EventTypeCallClaimed        EventType = "call_claimed"
	EventTypeClaimRolledBack    EventType = "claim_rolled_back"
	EventTypeCallCanceled       EventType = "call_canceled"
	EventTypeCallFinished       EventType = "call_finished"
	EventTypeInviteSent         EventType = "invite_sent"
	EventTypeRoomTeardownFailed EventType = "room_teardown_failed"
	EventTypeScheduleUpdated    EventType = "schedule_updated"
)
