package scheduling

import "time"

// AvailabilityRule is the recurring weekly open-hours rule for one weekday.
//
// Invariants:
// - One rule per (org_id, day_of_week); mutated only via bulk replace.
// - Rules are never deleted, only deactivated.
type AvailabilityRule struct {
	OrgID     string `json:"org_id" db:"org_id"`
	DayOfWeek int    `json:"day_of_week" db:"day_of_week"` // 0=Sunday .. 6=Saturday
	OpenTime  string `json:"start_time" db:"open_time"`    // "HH:MM", local business time
	CloseTime string `json:"end_time" db:"close_time"`     // "HH:MM"
	IsActive  bool   `json:"is_active" db:"is_active"`

	UpdatedAt time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Offering is a bookable service from the org's catalog.
// Duration drives slot generation; price is informational only.
type Offering struct {
	ID              string `json:"id" db:"id"`
	OrgID           string `json:"org_id" db:"org_id"`
	Name            string `json:"name" db:"name"`
	DurationMinutes int    `json:"duration_minutes" db:"duration_minutes"`
	PriceMinor      int64  `json:"price_minor,omitempty" db:"price_minor"`
	Description     string `json:"description,omitempty" db:"description"`
}

// Slot is an ephemeral candidate bookable interval. Never persisted;
// it exists only as a response artifact.
type Slot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Display string    `json:"display"`
}

// Interval is a half-open time interval [Start, End).
// All overlap arithmetic in the platform uses this shape.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DefaultDurationMinutes applies when no service is named or the named
// service is not in the catalog.
const DefaultDurationMinutes = 30

// DefaultOfferingName labels bookings made without a recognized service.
const DefaultOfferingName = "General Appointment"
