package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists calls.
//
// Assumed table: calls, UNIQUE (external_call_id). Both upserts rely on
// that constraint so concurrent webhook deliveries for the same call
// race safely to a single row.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
id, org_id, external_call_id, caller_phone, COALESCE(caller_name, ''),
status, duration_seconds, COALESCE(transcript, ''), COALESCE(summary, ''),
sentiment, COALESCE(recording_url, ''), created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.OrgID,
		&c.ExternalCallID,
		&c.CallerPhone,
		&c.CallerName,
		&c.Status,
		&c.DurationSeconds,
		&c.Transcript,
		&c.Summary,
		&c.Sentiment,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *PostgresRepo) CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error) {
	// ON CONFLICT DO NOTHING + RETURNING yields no row when the key
	// already exists; re-read in that case.
	const ins = `
INSERT INTO calls (
  id, org_id, external_call_id, caller_phone, caller_name,
  status, duration_seconds, transcript, summary, sentiment, recording_url,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (external_call_id) DO NOTHING
RETURNING ` + callColumns

	stored, err := scanCall(r.db.QueryRowContext(ctx, ins,
		c.ID, c.OrgID, c.ExternalCallID, c.CallerPhone, c.CallerName,
		c.Status, c.DurationSeconds, c.Transcript, c.Summary, c.Sentiment, c.RecordingURL,
		c.CreatedAt, c.UpdatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Call{}, false, err
	}

	existing, ok, err := r.GetByExternalID(ctx, c.ExternalCallID)
	if err != nil {
		return Call{}, false, err
	}
	if !ok {
		// Lost a race with a concurrent delete; calls are never deleted,
		// so treat as storage inconsistency.
		return Call{}, false, errors.New("calls: row vanished after conflict")
	}
	return existing, false, nil
}

func (r *PostgresRepo) UpsertEnded(ctx context.Context, c Call) (Call, error) {
	const q = `
INSERT INTO calls (
  id, org_id, external_call_id, caller_phone, caller_name,
  status, duration_seconds, transcript, summary, sentiment, recording_url,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (external_call_id)
DO UPDATE SET status = EXCLUDED.status,
              duration_seconds = EXCLUDED.duration_seconds,
              transcript = EXCLUDED.transcript,
              summary = EXCLUDED.summary,
              sentiment = EXCLUDED.sentiment,
              recording_url = EXCLUDED.recording_url,
              updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns

	return scanCall(r.db.QueryRowContext(ctx, q,
		c.ID, c.OrgID, c.ExternalCallID, c.CallerPhone, c.CallerName,
		c.Status, c.DurationSeconds, c.Transcript, c.Summary, c.Sentiment, c.RecordingURL,
		c.CreatedAt, c.UpdatedAt,
	))
}

func (r *PostgresRepo) GetByExternalID(ctx context.Context, externalCallID string) (Call, bool, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE external_call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, externalCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func (r *PostgresRepo) Get(ctx context.Context, orgID, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE org_id = $1 AND id = $2`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, orgID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, orgID string, f ListFilter) ([]Call, int, error) {
	q := `SELECT ` + callColumns + `
FROM calls
WHERE org_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR sentiment = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at <= $5)
ORDER BY created_at DESC
LIMIT $6 OFFSET $7
`
	const qCount = `
SELECT COUNT(*)
FROM calls
WHERE org_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR sentiment = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at <= $5)
`
	from := sql.NullTime{Time: f.From, Valid: !f.From.IsZero()}
	to := sql.NullTime{Time: f.To, Valid: !f.To.IsZero()}

	rows, err := r.db.QueryContext(ctx, q, orgID, string(f.Status), string(f.Sentiment), from, to, f.Limit, (f.Page-1)*f.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Call, 0, f.Limit)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, qCount, orgID, string(f.Status), string(f.Sentiment), from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
