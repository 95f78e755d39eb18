package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends to the audit_events table.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS audit_events (
//	  id             UUID PRIMARY KEY,
//	  org_id         TEXT NOT NULL,
//	  type           TEXT NOT NULL,
//	  actor_user_id  TEXT,
//	  actor_role     TEXT,
//	  ip_address     TEXT,
//	  appointment_id TEXT,
//	  call_id        TEXT,
//	  message        TEXT,
//	  metadata       TEXT,
//	  created_at     TIMESTAMPTZ NOT NULL
//	);
//
// Keep the table INSERT-only; retention is handled by time-based
// partitioning or scheduled deletes, never by application code.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, org_id, type, actor_user_id, actor_role, ip_address, appointment_id, call_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.OrgID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.AppointmentID, e.CallID, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
