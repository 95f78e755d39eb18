package booking

import (
	"context"
	"database/sql"
	"errors"

	"receptionist-platform/internal/scheduling"
	"receptionist-platform/pkg/utils"
)

// PostgresStore persists appointments.
//
// Assumed tables:
// - organizations (locked per booking write to serialize writers)
// - appointments
//
// Serialization strategy: every mutating call locks the org row first
// (FOR UPDATE), exactly like a per-org critical section. The overlap
// check and the insert/update then run inside the same transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func lockOrg(ctx context.Context, tx *sql.Tx, orgID string) error {
	const q = `SELECT id FROM organizations WHERE id = $1 FOR UPDATE`
	var id string
	if err := tx.QueryRowContext(ctx, q, orgID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// hasBlockingOverlap runs the conflict check inside the caller's
// transaction. excludeID skips the row being updated.
func hasBlockingOverlap(ctx context.Context, tx *sql.Tx, appt Appointment, excludeID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM appointments
  WHERE org_id = $1
    AND status IN ('PENDING', 'CONFIRMED')
    AND start_time < $2
    AND end_time > $3
    AND id <> $4
)
`
	var exists bool
	if err := tx.QueryRowContext(ctx, q, appt.OrgID, appt.EndTime, appt.StartTime, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) CreateIfFree(ctx context.Context, appt Appointment) error {
	const ins = `
INSERT INTO appointments (
  id, org_id, call_id, client_name, client_phone, client_email, service,
  start_time, end_time, status, notes, created_at, updated_at
) VALUES (
  $1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := lockOrg(ctx, tx, appt.OrgID); err != nil {
			return err
		}
		conflict, err := hasBlockingOverlap(ctx, tx, appt, appt.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
		_, err = tx.ExecContext(ctx, ins,
			appt.ID,
			appt.OrgID,
			appt.CallID,
			appt.ClientName,
			appt.ClientPhone,
			appt.ClientEmail,
			appt.Service,
			appt.StartTime,
			appt.EndTime,
			appt.Status,
			appt.Notes,
			appt.CreatedAt,
			appt.UpdatedAt,
		)
		return err
	})
}

func (s *PostgresStore) UpdateIfFree(ctx context.Context, appt Appointment) error {
	const upd = `
UPDATE appointments
SET start_time = $3, end_time = $4, status = $5, notes = $6, updated_at = $7
WHERE org_id = $1 AND id = $2
`
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := lockOrg(ctx, tx, appt.OrgID); err != nil {
			return err
		}
		if Blocking(appt.Status) {
			conflict, err := hasBlockingOverlap(ctx, tx, appt, appt.ID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrConflict
			}
		}
		res, err := tx.ExecContext(ctx, upd,
			appt.OrgID,
			appt.ID,
			appt.StartTime,
			appt.EndTime,
			appt.Status,
			appt.Notes,
			appt.UpdatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const apptColumns = `
id, org_id, COALESCE(call_id, ''), client_name, client_phone,
COALESCE(client_email, ''), service, start_time, end_time, status,
COALESCE(notes, ''), created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.OrgID,
		&a.CallID,
		&a.ClientName,
		&a.ClientPhone,
		&a.ClientEmail,
		&a.Service,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *PostgresStore) Get(ctx context.Context, orgID, id string) (Appointment, error) {
	q := `SELECT ` + apptColumns + ` FROM appointments WHERE org_id = $1 AND id = $2`
	a, err := scanAppointment(s.db.QueryRowContext(ctx, q, orgID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, orgID string, f ListFilter) ([]Appointment, int, error) {
	q := `SELECT ` + apptColumns + `
FROM appointments
WHERE org_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3::timestamptz IS NULL OR start_time >= $3)
  AND ($4::timestamptz IS NULL OR start_time <= $4)
ORDER BY start_time
LIMIT $5 OFFSET $6
`
	const qCount = `
SELECT COUNT(*)
FROM appointments
WHERE org_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3::timestamptz IS NULL OR start_time >= $3)
  AND ($4::timestamptz IS NULL OR start_time <= $4)
`
	from := sql.NullTime{Time: f.From, Valid: !f.From.IsZero()}
	to := sql.NullTime{Time: f.To, Valid: !f.To.IsZero()}

	rows, err := s.db.QueryContext(ctx, q, orgID, string(f.Status), from, to, f.Limit, (f.Page-1)*f.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Appointment, 0, f.Limit)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, qCount, orgID, string(f.Status), from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) ListBlocking(ctx context.Context, orgID string, window scheduling.Interval) ([]Appointment, error) {
	q := `SELECT ` + apptColumns + `
FROM appointments
WHERE org_id = $1
  AND status IN ('PENDING', 'CONFIRMED')
  AND start_time < $2
  AND end_time > $3
ORDER BY start_time
`
	rows, err := s.db.QueryContext(ctx, q, orgID, window.End, window.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
