package availability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore persists tenant schedules.
//
// Assumed table:
//
//	availability_schedules (
//	  tenant_id TEXT PRIMARY KEY,
//	  timezone  TEXT NOT NULL,
//	  windows   JSONB NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (Schedule, error) {
	const q = `
SELECT tenant_id, timezone, windows, updated_at
FROM availability_schedules
WHERE tenant_id = $1
`
	var out Schedule
	var rawWindows string
	if err := s.db.QueryRowContext(ctx, q, tenantID).Scan(
		&out.TenantID,
		&out.Timezone,
		&rawWindows,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, err
	}

	windows, err := parseWindows(rawWindows)
	if err != nil {
		// Corrupt rows close the tenant rather than failing the read;
		// the gate treats an empty window set as unavailable.
		return Schedule{TenantID: out.TenantID, Timezone: out.Timezone, UpdatedAt: out.UpdatedAt}, nil
	}
	out.Windows = windows
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(sched.Windows)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO availability_schedules (tenant_id, timezone, windows, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tenant_id)
DO UPDATE SET timezone = EXCLUDED.timezone,
              windows = EXCLUDED.windows,
              updated_at = EXCLUDED.updated_at
`
	_, err = s.db.ExecContext(ctx, q, sched.TenantID, sched.Timezone, string(raw), s.clock().UTC())
	return err
}
