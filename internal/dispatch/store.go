package dispatch

import (
	"context"
	"time"
)

// Store is the persistence contract for the call ledger.
//
// Mutual exclusion is per request: the conditional updates (ClaimWaiting,
// Terminate) are single-row compare-and-swap operations guarded by the
// current state, so operations on different requests never contend and
// concurrent operations on the same request serialize without long-held
// locks.
type Store interface {
	// Insert persists a new waiting request. ErrDuplicateActive is returned
	// when the requester already has an active request in the tenant.
	Insert(ctx context.Context, c CallRequest) error

	Get(ctx context.Context, tenantID, callID string) (CallRequest, error)

	// FindActiveByRequester returns the requester's waiting/in-progress
	// request, if any. Used for create deduplication.
	FindActiveByRequester(ctx context.Context, tenantID, requesterID string) (CallRequest, bool, error)

	// ListWaiting returns waiting requests oldest-first. Ordering is
	// recomputed from created_at on every read; no positions are persisted.
	ListWaiting(ctx context.Context, tenantID string) ([]CallRequest, error)

	// ClaimWaiting atomically transitions waiting -> in_progress, setting
	// claimed_by, room_ref and claimed_at together. Exactly one concurrent
	// caller succeeds; losers get ErrAlreadyClaimed along with the
	// authoritative record (or ErrStateChanged when the request left the
	// queue some other way).
	ClaimWaiting(ctx context.Context, tenantID, callID, dispatcherID, roomRef string, at time.Time) (CallRequest, error)

	// Terminate atomically moves a non-terminal request to the given terminal
	// state. When the request is already terminal it returns the current
	// record with ErrStateChanged so callers can converge idempotently.
	Terminate(ctx context.Context, tenantID, callID string, to State, at time.Time) (CallRequest, error)

	// ListEnded returns terminal requests whose created_at falls in
	// [from, to). Feeds wait-time reporting.
	ListEnded(ctx context.Context, tenantID string, from, to time.Time) ([]CallRequest, error)
}
