package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"libras-central/pkg/utils"
)

// PostgresStore persists the call ledger.
//
// Assumed table:
//
//	call_requests (
//	  id             TEXT PRIMARY KEY,
//	  tenant_id      TEXT NOT NULL,
//	  requester_id   TEXT NOT NULL,
//	  requester_name TEXT NOT NULL DEFAULT '',
//	  state          TEXT NOT NULL,
//	  claimed_by     TEXT NOT NULL DEFAULT '',
//	  room_ref       TEXT NOT NULL DEFAULT '',
//	  created_at     TIMESTAMPTZ NOT NULL,
//	  claimed_at     TIMESTAMPTZ,
//	  ended_at       TIMESTAMPTZ,
//	  updated_at     TIMESTAMPTZ NOT NULL
//	)
//
// plus the partial unique index enforcing one active request per requester:
//
//	CREATE UNIQUE INDEX call_requests_one_active
//	ON call_requests (tenant_id, requester_id)
//	WHERE state IN ('waiting','in_progress');
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callColumns = `
id, tenant_id, requester_id, requester_name, state, claimed_by, room_ref,
created_at, claimed_at, ended_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (CallRequest, error) {
	var c CallRequest
	var claimedAt, endedAt sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.RequesterID,
		&c.RequesterName,
		&c.State,
		&c.ClaimedBy,
		&c.RoomRef,
		&c.CreatedAt,
		&claimedAt,
		&endedAt,
		&c.UpdatedAt,
	); err != nil {
		return CallRequest{}, err
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		c.ClaimedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c CallRequest) error {
	const q = `
INSERT INTO call_requests (
  id, tenant_id, requester_id, requester_name, state, claimed_by, room_ref,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := s.db.ExecContext(ctx, q,
		c.ID,
		c.TenantID,
		c.RequesterID,
		c.RequesterName,
		c.State,
		c.ClaimedBy,
		c.RoomRef,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		// The one-active partial index caught a concurrent create.
		return ErrDuplicateActive
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, callID string) (CallRequest, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_requests
WHERE tenant_id = $1 AND id = $2
`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, tenantID, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRequest{}, ErrNotFound
		}
		return CallRequest{}, err
	}
	return c, nil
}

func (s *PostgresStore) FindActiveByRequester(ctx context.Context, tenantID, requesterID string) (CallRequest, bool, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_requests
WHERE tenant_id = $1 AND requester_id = $2 AND state IN ('waiting','in_progress')
LIMIT 1
`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, tenantID, requesterID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRequest{}, false, nil
		}
		return CallRequest{}, false, err
	}
	return c, true, nil
}

func (s *PostgresStore) ListWaiting(ctx context.Context, tenantID string) ([]CallRequest, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_requests
WHERE tenant_id = $1 AND state = 'waiting'
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRequest, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClaimWaiting(ctx context.Context, tenantID, callID, dispatcherID, roomRef string, at time.Time) (CallRequest, error) {
	// Single-row CAS: only a still-waiting request transitions, so exactly one
	// concurrent claimer wins without any table-level locking.
	const q = `
UPDATE call_requests
SET state = 'in_progress', claimed_by = $3, room_ref = $4, claimed_at = $5, updated_at = $5
WHERE tenant_id = $1 AND id = $2 AND state = 'waiting'
RETURNING ` + callColumns

	var out CallRequest
	var outErr error
	// The losing readback runs in the same transaction as the failed CAS so
	// the record handed back is the one that beat us, not a later state.
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := scanCall(tx.QueryRowContext(ctx, q, tenantID, callID, dispatcherID, roomRef, at))
		if err == nil {
			out = c
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		current, err := scanCall(tx.QueryRowContext(ctx, `
SELECT `+callColumns+`
FROM call_requests
WHERE tenant_id = $1 AND id = $2
`, tenantID, callID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out = current
		if current.State == StateInProgress {
			outErr = ErrAlreadyClaimed
		} else {
			outErr = ErrStateChanged
		}
		return nil
	})
	if err != nil {
		return CallRequest{}, err
	}
	return out, outErr
}

func (s *PostgresStore) Terminate(ctx context.Context, tenantID, callID string, to State, at time.Time) (CallRequest, error) {
	// Finishing is only defined for claimed calls; a waiting request can
	// leave the queue only by being claimed or canceled.
	guard := `state IN ('waiting','in_progress')`
	if to == StateFinished {
		guard = `state = 'in_progress'`
	}
	q := `
UPDATE call_requests
SET state = $3, ended_at = $4, updated_at = $4
WHERE tenant_id = $1 AND id = $2 AND ` + guard + `
RETURNING ` + callColumns

	var out CallRequest
	var outErr error
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := scanCall(tx.QueryRowContext(ctx, q, tenantID, callID, to, at))
		if err == nil {
			out = c
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		current, err := scanCall(tx.QueryRowContext(ctx, `
SELECT `+callColumns+`
FROM call_requests
WHERE tenant_id = $1 AND id = $2
`, tenantID, callID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out = current
		outErr = ErrStateChanged
		return nil
	})
	if err != nil {
		return CallRequest{}, err
	}
	return out, outErr
}

func (s *PostgresStore) ListEnded(ctx context.Context, tenantID string, from, to time.Time) ([]CallRequest, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_requests
WHERE tenant_id = $1 AND state IN ('canceled','finished')
  AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRequest, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// isUniqueViolation detects Postgres error 23505 without binding the store to
// a specific driver error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
