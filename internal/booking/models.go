package booking

import (
	"time"

	"receptionist-platform/internal/scheduling"
)

// Appointment is a committed booking for an org.
//
// Invariants:
//   - StartTime < EndTime.
//   - For a given org, no two appointments with blocking status have
//     overlapping [StartTime, EndTime).
//   - Rows are never hard-deleted; cancellation is a status change.
type Appointment struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`

	// CallID is a weak back-reference to the call that booked this
	// appointment, when the booking came through the voice agent.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	ClientName  string `json:"client_name" db:"client_name"`
	ClientPhone string `json:"client_phone" db:"client_phone"`
	ClientEmail string `json:"client_email,omitempty" db:"client_email"`
	Service     string `json:"service" db:"service"`

	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`

	Status AppointmentStatus `json:"status" db:"status"`
	Notes  string            `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Interval returns the appointment's booked window.
func (a Appointment) Interval() scheduling.Interval {
	return scheduling.Interval{Start: a.StartTime, End: a.EndTime}
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

// Blocking reports whether an appointment in this status participates
// in overlap checks. Cancelled and completed appointments never block.
func Blocking(s AppointmentStatus) bool {
	return s == StatusPending || s == StatusConfirmed
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the appointment lifecycle. Cancelled and
// completed are terminal; setting the same status again is a no-op
// allowed for idempotent callers.
func ValidTransition(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusCompleted
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}
