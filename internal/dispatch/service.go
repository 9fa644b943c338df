package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"libras-central/internal/audit"
	"libras-central/internal/bridge"
	"libras-central/internal/config"
	"libras-central/internal/invite"
	"libras-central/internal/rbac"
	"libras-central/pkg/utils"
)

// AvailabilityGate reports whether a tenant is currently accepting new
// interpreter requests.
type AvailabilityGate interface {
	IsAvailable(ctx context.Context, tenantID string) (bool, error)
}

// InviteSender delivers out-of-band join invitations.
type InviteSender interface {
	Send(ctx context.Context, inv invite.Invitation) error
}

// Service implements the call dispatch flow: requesters enqueue, dispatchers
// claim, both sides can end. All state transitions go through the store's
// conditional updates so concurrent actors never double-apply.
type Service struct {
	store   Store
	gate    AvailabilityGate
	rooms   bridge.Provider
	invites InviteSender
	audit   *audit.Service
	rdb     *redis.Client
	cfg     config.DispatchConfig
	logger  *slog.Logger

	// clock is injectable for tests.
	clock func() time.Time
	newID func() string
}

func NewService(
	store Store,
	gate AvailabilityGate,
	rooms bridge.Provider,
	invites InviteSender,
	auditSvc *audit.Service,
	rdb *redis.Client,
	cfg config.DispatchConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		gate:    gate,
		rooms:   rooms,
		invites: invites,
		audit:   auditSvc,
		rdb:     rdb,
		cfg:     cfg,
		logger:  logger.With("component", "dispatch"),
		clock:   time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

func capKey(tenantID string) string {
	return "dispatch:active_calls:" + tenantID
}

// Create enqueues a new interpreter request for the requester. It fails with
// ErrUnavailable outside the tenant's service windows, ErrDuplicateActive
// (returning the existing record) when the requester already has an active
// request, and ErrTenantBusy when the tenant's active-call cap is exhausted.
func (s *Service) Create(ctx context.Context, tenantID, requesterID, requesterName string) (CallRequest, error) {
	if tenantID == "" || requesterID == "" {
		return CallRequest{}, ErrInvalidArgument
	}

	open, err := s.gate.IsAvailable(ctx, tenantID)
	if err != nil {
		return CallRequest{}, fmt.Errorf("availability check: %w", err)
	}
	if !open {
		return CallRequest{}, ErrUnavailable
	}

	if existing, found, err := s.store.FindActiveByRequester(ctx, tenantID, requesterID); err != nil {
		return CallRequest{}, err
	} else if found {
		return existing, ErrDuplicateActive
	}

	acquired, err := s.acquireCapSlot(ctx, tenantID)
	if err != nil {
		return CallRequest{}, err
	}
	if !acquired {
		return CallRequest{}, ErrTenantBusy
	}

	now := s.clock().UTC()
	call := CallRequest{
		ID:            s.newID(),
		TenantID:      tenantID,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		State:         StateWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, call); err != nil {
		s.releaseCapSlot(ctx, tenantID)
		if errors.Is(err, ErrDuplicateActive) {
			// Concurrent create won; surface the authoritative record.
			if existing, found, ferr := s.store.FindActiveByRequester(ctx, tenantID, requesterID); ferr == nil && found {
				return existing, ErrDuplicateActive
			}
			return CallRequest{}, ErrDuplicateActive
		}
		return CallRequest{}, err
	}

	s.logAudit(ctx, audit.EventTypeCallCreated, tenantID, requesterID, rbac.RoleRequester, call.ID, "interpreter request enqueued")
	return call, nil
}

// Status returns the current record for a call. Only the requester and the
// claimant may poll; a waiting request has no claimant yet, so dispatchers
// watch it through the queue until they claim.
func (s *Service) Status(ctx context.Context, tenantID, callID, userID, role string) (CallRequest, error) {
	call, err := s.store.Get(ctx, tenantID, callID)
	if err != nil {
		return CallRequest{}, err
	}
	if !call.IsParticipant(userID) && !rbac.IsSuperAdmin(role) {
		return CallRequest{}, ErrForbidden
	}
	return call, nil
}

// ListWaiting returns the tenant's queue in FIFO order (oldest first).
func (s *Service) ListWaiting(ctx context.Context, tenantID string) ([]CallRequest, error) {
	return s.store.ListWaiting(ctx, tenantID)
}

// Claim atomically assigns a waiting request to the dispatcher and provisions
// its video room. The room is allocated before the claim is committed: the
// room name is derived from the call id, so a racing dispatcher allocates the
// same room and the loser has nothing to tear down. If provisioning fails the
// request stays waiting and the claim reports ErrProvisioning.
func (s *Service) Claim(ctx context.Context, tenantID, callID, dispatcherID string) (CallRequest, error) {
	call, err := s.store.Get(ctx, tenantID, callID)
	if err != nil {
		return CallRequest{}, err
	}
	switch call.State {
	case StateInProgress:
		return call, ErrAlreadyClaimed
	case StateWaiting:
	default:
		return call, ErrStateChanged
	}

	room, err := s.rooms.CreateRoom(ctx, bridge.CreateRoomRequest{
		TenantID: tenantID,
		RoomName: bridge.RoomNameForCall(callID),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "room provisioning failed",
			"tenant_id", tenantID, "call_id", callID, "error", err)
		s.logAudit(ctx, audit.EventTypeClaimRolledBack, tenantID, dispatcherID, rbac.RoleDispatcher, callID, "room provisioning failed, request remains queued")
		return CallRequest{}, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	now := s.clock().UTC()
	claimed, err := s.store.ClaimWaiting(ctx, tenantID, callID, dispatcherID, room.URL, now)
	if err != nil {
		if errors.Is(err, ErrStateChanged) && claimed.State.Terminal() && claimed.RoomRef == "" {
			// Nobody will ever use the room we just allocated.
			s.teardownRoom(ctx, tenantID, callID, dispatcherID)
		}
		return claimed, err
	}

	s.logAudit(ctx, audit.EventTypeCallClaimed, tenantID, dispatcherID, rbac.RoleDispatcher, callID, "request claimed, room provisioned")
	return claimed, nil
}

// Cancel moves a request to canceled. Requesters may only cancel their own
// request. Canceling an already-canceled request is an idempotent no-op;
// canceling a finished one reports ErrStateChanged with the record.
func (s *Service) Cancel(ctx context.Context, tenantID, callID, userID, role string) (CallRequest, error) {
	return s.terminate(ctx, tenantID, callID, userID, role, StateCanceled)
}

// Finish moves an in-progress call to finished. Either participant may finish.
// Finishing an already-finished call is an idempotent no-op.
func (s *Service) Finish(ctx context.Context, tenantID, callID, userID, role string) (CallRequest, error) {
	return s.terminate(ctx, tenantID, callID, userID, role, StateFinished)
}

func (s *Service) terminate(ctx context.Context, tenantID, callID, userID, role string, to State) (CallRequest, error) {
	call, err := s.store.Get(ctx, tenantID, callID)
	if err != nil {
		return CallRequest{}, err
	}
	// A waiting request has no claimant, so only its requester can end it;
	// once in progress either party may.
	if !call.IsParticipant(userID) && !rbac.IsSuperAdmin(role) {
		return CallRequest{}, ErrForbidden
	}

	now := s.clock().UTC()
	ended, err := s.store.Terminate(ctx, tenantID, callID, to, now)
	if err != nil {
		if errors.Is(err, ErrStateChanged) && ended.State.Terminal() {
			// Already terminal. Duplicate finish/cancel signals (both parties
			// hanging up) converge on the existing terminal state.
			return ended, nil
		}
		return ended, err
	}

	s.releaseCapSlot(ctx, tenantID)
	if ended.RoomRef != "" {
		s.teardownRoom(ctx, tenantID, callID, userID)
	}

	typ := audit.EventTypeCallCanceled
	if to == StateFinished {
		typ = audit.EventTypeCallFinished
	}
	s.logAudit(ctx, typ, tenantID, userID, role, callID, "call "+string(to))
	return ended, nil
}

// FinishFromBridge finishes a call in response to a bridge room.ended event.
// The room is already gone on the bridge side, so no teardown is attempted.
// Events for already-ended calls are ignored.
func (s *Service) FinishFromBridge(ctx context.Context, tenantID, callID string) error {
	now := s.clock().UTC()
	ended, err := s.store.Terminate(ctx, tenantID, callID, StateFinished, now)
	if err != nil {
		if errors.Is(err, ErrStateChanged) || errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	s.releaseCapSlot(ctx, tenantID)
	s.logAudit(ctx, audit.EventTypeCallFinished, tenantID, "", "bridge", ended.ID, "call finished by bridge room.ended")
	return nil
}

// Invite sends a join link for an in-progress call to an external email
// address. Only participants of the call may invite. Delivery failures never
// change call state.
func (s *Service) Invite(ctx context.Context, tenantID, callID, userID, role, email, displayName string) error {
	call, err := s.store.Get(ctx, tenantID, callID)
	if err != nil {
		return err
	}
	if call.State != StateInProgress {
		return ErrStateChanged
	}
	if !call.IsParticipant(userID) && !rbac.IsSuperAdmin(role) {
		return ErrForbidden
	}

	err = s.invites.Send(ctx, invite.Invitation{
		CallID:      callID,
		TenantID:    tenantID,
		Email:       email,
		DisplayName: displayName,
		RoomURL:     call.RoomRef,
		InvitedBy:   userID,
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventTypeInviteSent, tenantID, userID, role, callID, "join invitation sent to "+email)
	return nil
}

func (s *Service) acquireCapSlot(ctx context.Context, tenantID string) (bool, error) {
	if s.rdb == nil || s.cfg.ActiveCallCap <= 0 {
		return true, nil
	}
	return utils.AcquireConcurrencyCap(ctx, s.rdb, capKey(tenantID), s.cfg.ActiveCallCap, s.cfg.ActiveCallCapTTL)
}

func (s *Service) releaseCapSlot(ctx context.Context, tenantID string) {
	if s.rdb == nil || s.cfg.ActiveCallCap <= 0 {
		return
	}
	if err := utils.ReleaseConcurrencyCap(ctx, s.rdb, capKey(tenantID)); err != nil {
		s.logger.WarnContext(ctx, "failed to release active-call slot",
			"tenant_id", tenantID, "error", err)
	}
}

func (s *Service) teardownRoom(ctx context.Context, tenantID, callID, actorID string) {
	err := s.rooms.DeleteRoom(ctx, bridge.DeleteRoomRequest{
		TenantID: tenantID,
		RoomName: bridge.RoomNameForCall(callID),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "room teardown failed",
			"tenant_id", tenantID, "call_id", callID, "error", err)
		s.logAudit(ctx, audit.EventTypeRoomTeardownFailed, tenantID, actorID, "", callID, "bridge room deletion failed")
	}
}

func (s *Service) logAudit(ctx context.Context, typ audit.EventType, tenantID, actorID, actorRole, callID, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogCallEvent(ctx, typ, tenantID, actorID, actorRole, callID, message); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "type", string(typ), "error", err)
	}
}
