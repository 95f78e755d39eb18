package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
)

// PostgresRepo reads the calls and appointments tables directly.
// Summaries tolerate slightly stale reads, so these queries can be
// pointed at a replica.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, orgID string, from, to time.Time) ([]calls.Call, error) {
	const q = `
SELECT id, org_id, external_call_id, caller_phone, COALESCE(caller_name, ''),
       status, duration_seconds, COALESCE(transcript, ''), COALESCE(summary, ''),
       sentiment, COALESCE(recording_url, ''), created_at, updated_at
FROM calls
WHERE org_id = $1 AND created_at >= $2 AND created_at < $3`

	rows, err := r.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reporting: list calls: %w", err)
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(&c.ID, &c.OrgID, &c.ExternalCallID, &c.CallerPhone, &c.CallerName,
			&c.Status, &c.DurationSeconds, &c.Transcript, &c.Summary,
			&c.Sentiment, &c.RecordingURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reporting: scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListAppointments(ctx context.Context, orgID string, from, to time.Time) ([]booking.Appointment, error) {
	const q = `
SELECT id, org_id, COALESCE(call_id, ''), client_name, client_phone, COALESCE(client_email, ''),
       service, start_time, end_time, status, COALESCE(notes, ''), created_at, updated_at
FROM appointments
WHERE org_id = $1 AND created_at >= $2 AND created_at < $3`

	rows, err := r.db.QueryContext(ctx, q, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reporting: list appointments: %w", err)
	}
	defer rows.Close()

	var out []booking.Appointment
	for rows.Next() {
		var a booking.Appointment
		if err := rows.Scan(&a.ID, &a.OrgID, &a.CallID, &a.ClientName, &a.ClientPhone, &a.ClientEmail,
			&a.Service, &a.StartTime, &a.EndTime, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reporting: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
