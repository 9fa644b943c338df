package dispatch

import "time"

// CallRequest is the persisted unit of work representing one interpreter
// session request.
//
// Multi-tenant invariant: TenantID is required on every row; all queue reads
// are tenant-scoped.
//
// Lifecycle invariants:
// - At most one request per (tenant, requester) may be active
//   (waiting/in_progress) at a time.
// - ClaimedBy and RoomRef are set together, exactly once, by the claim CAS.
// - State transitions are monotone; terminal states are immutable.
//
// Rows are never deleted: terminal requests are retained as history, and the
// created/claimed/ended timestamps feed wait-time reporting.
type CallRequest struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	RequesterID string `json:"requester_id" db:"requester_id"`
	// RequesterName is denormalized display info for the dispatcher queue.
	RequesterName string `json:"requester_name" db:"requester_name"`

	State State `json:"state" db:"state"`

	// ClaimedBy identifies the dispatcher who won the claim; immutable once set.
	ClaimedBy string `json:"claimed_by,omitempty" db:"claimed_by"`

	// RoomRef is the opaque join URL of the provisioned video room.
	RoomRef string `json:"room_ref,omitempty" db:"room_ref"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type State string

const (
	StateWaiting    State = "waiting"
	StateInProgress State = "in_progress"
	StateCanceled   State = "canceled"
	StateFinished   State = "finished"
)

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateCanceled || s == StateFinished
}

// Active reports whether the request counts against the requester's
// one-active-call rule and the tenant's concurrency cap.
func (s State) Active() bool {
	return s == StateWaiting || s == StateInProgress
}

// IsParticipant reports whether userID is the requester or the claimant.
func (c CallRequest) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == c.RequesterID || (c.ClaimedBy != "" && userID == c.ClaimedBy)
}
