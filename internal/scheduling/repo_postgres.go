package scheduling

import (
	"context"
	"database/sql"
	"errors"

	"receptionist-platform/pkg/utils"
)

// PostgresRepo persists availability rules and the offering catalog.
//
// Assumed tables:
// - availability_rules, UNIQUE (org_id, day_of_week)
// - offerings
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListRules(ctx context.Context, orgID string) ([]AvailabilityRule, error) {
	const q = `
SELECT org_id, day_of_week, open_time, close_time, is_active, updated_at
FROM availability_rules
WHERE org_id = $1
ORDER BY day_of_week
`
	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityRule
	for rows.Next() {
		var rule AvailabilityRule
		if err := rows.Scan(&rule.OrgID, &rule.DayOfWeek, &rule.OpenTime, &rule.CloseTime, &rule.IsActive, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ReplaceRules(ctx context.Context, orgID string, rules []AvailabilityRule) error {
	const q = `
INSERT INTO availability_rules (org_id, day_of_week, open_time, close_time, is_active, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (org_id, day_of_week)
DO UPDATE SET open_time = EXCLUDED.open_time,
              close_time = EXCLUDED.close_time,
              is_active = EXCLUDED.is_active,
              updated_at = EXCLUDED.updated_at
`
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for _, rule := range rules {
			if _, err := tx.ExecContext(ctx, q,
				orgID,
				rule.DayOfWeek,
				rule.OpenTime,
				rule.CloseTime,
				rule.IsActive,
				rule.UpdatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) ListOfferings(ctx context.Context, orgID string) ([]Offering, error) {
	const q = `
SELECT id, org_id, name, duration_minutes, price_minor, description
FROM offerings
WHERE org_id = $1
ORDER BY name
`
	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offering
	for rows.Next() {
		var off Offering
		if err := rows.Scan(&off.ID, &off.OrgID, &off.Name, &off.DurationMinutes, &off.PriceMinor, &off.Description); err != nil {
			return nil, err
		}
		out = append(out, off)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindOffering(ctx context.Context, orgID, name string) (Offering, bool, error) {
	const q = `
SELECT id, org_id, name, duration_minutes, price_minor, description
FROM offerings
WHERE org_id = $1 AND name ILIKE '%' || $2 || '%'
ORDER BY name
LIMIT 1
`
	var off Offering
	err := r.db.QueryRowContext(ctx, q, orgID, name).Scan(
		&off.ID,
		&off.OrgID,
		&off.Name,
		&off.DurationMinutes,
		&off.PriceMinor,
		&off.Description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offering{}, false, nil
		}
		return Offering{}, false, err
	}
	return off, true, nil
}
