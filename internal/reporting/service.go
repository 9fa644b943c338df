package reporting

import (
	"context"
	"time"

	"libras-central/internal/dispatch"
)

// Ledger is the slice of the call store reporting reads from. The dispatch
// stores satisfy it.
type Ledger interface {
	ListWaiting(ctx context.Context, tenantID string) ([]dispatch.CallRequest, error)
	ListEnded(ctx context.Context, tenantID string, from, to time.Time) ([]dispatch.CallRequest, error)
}

// QueueSummary aggregates queue health for one tenant over a created_at
// range. Wait time is created→claimed; session time is claimed→ended.
// Requests canceled before a claim contribute to counts but not to wait or
// session figures.
type QueueSummary struct {
	TenantID string    `json:"tenant_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`

	TotalEnded int `json:"total_ended"`
	Finished   int `json:"finished"`
	Canceled   int `json:"canceled"`

	ClaimedCount      int     `json:"claimed_count"`
	AvgWaitSeconds    float64 `json:"avg_wait_seconds"`
	MaxWaitSeconds    float64 `json:"max_wait_seconds"`
	AvgSessionSeconds float64 `json:"avg_session_seconds"`

	// CurrentlyWaiting is the live queue depth, independent of the range.
	CurrentlyWaiting int `json:"currently_waiting"`
}

type Service struct {
	ledger Ledger
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// QueueSummary computes the summary for calls created within [from, to).
func (s *Service) QueueSummary(ctx context.Context, tenantID string, from, to time.Time) (QueueSummary, error) {
	out := QueueSummary{TenantID: tenantID, From: from, To: to}

	ended, err := s.ledger.ListEnded(ctx, tenantID, from, to)
	if err != nil {
		return QueueSummary{}, err
	}

	var waitSum, sessionSum float64
	sessions := 0
	for _, c := range ended {
		out.TotalEnded++
		switch c.State {
		case dispatch.StateFinished:
			out.Finished++
		case dispatch.StateCanceled:
			out.Canceled++
		}
		if c.ClaimedAt == nil {
			continue
		}
		out.ClaimedCount++
		wait := c.ClaimedAt.Sub(c.CreatedAt).Seconds()
		waitSum += wait
		if wait > out.MaxWaitSeconds {
			out.MaxWaitSeconds = wait
		}
		if c.EndedAt != nil {
			sessionSum += c.EndedAt.Sub(*c.ClaimedAt).Seconds()
			sessions++
		}
	}
	if out.ClaimedCount > 0 {
		out.AvgWaitSeconds = waitSum / float64(out.ClaimedCount)
	}
	if sessions > 0 {
		out.AvgSessionSeconds = sessionSum / float64(sessions)
	}

	waiting, err := s.ledger.ListWaiting(ctx, tenantID)
	if err != nil {
		return QueueSummary{}, err
	}
	out.CurrentlyWaiting = len(waiting)

	return out, nil
}
