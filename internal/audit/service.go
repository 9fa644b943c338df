package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only; no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call lifecycle audit information.
//
// Audit is internal-only and best-effort: dispatch operations log append
// failures but never fail because of them.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCallEvent records a lifecycle transition on a call request.
func (s *Service) LogCallEvent(ctx context.Context, typ EventType, tenantID, actorUserID, actorRole, callID, message string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        typ,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		CallID:      callID,
		Message:     message,
	})
}
