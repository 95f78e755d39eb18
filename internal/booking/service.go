package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist-platform/internal/scheduling"

	"github.com/google/uuid"
)

// Service is the Booking Transaction Manager: the sole writer of
// appointment intervals.
//
// Consistency contract:
//   - "check no blocking overlap" and "insert new appointment" happen as
//     one atomic unit per org inside the Store.
//   - Side effects (SMS, realtime events) belong to callers and run only
//     after Reserve returns successfully.
type Service struct {
	store Store
	rules RuleSource
	clock func() time.Time
}

// RuleSource resolves the active business window for a date. Reserve
// uses it to defensively re-validate direct bookings; the slot
// generation path already guarantees the window.
type RuleSource interface {
	RuleForDate(ctx context.Context, orgID string, date time.Time) (scheduling.AvailabilityRule, bool, error)
}

// Store abstracts appointment persistence.
//
// CreateIfFree and UpdateIfFree must serialize against each other per
// org: two concurrent writers for overlapping intervals must resolve to
// exactly one success and one ErrConflict.
type Store interface {
	CreateIfFree(ctx context.Context, appt Appointment) error
	UpdateIfFree(ctx context.Context, appt Appointment) error

	Get(ctx context.Context, orgID, id string) (Appointment, error)
	List(ctx context.Context, orgID string, f ListFilter) ([]Appointment, int, error)

	// ListBlocking returns appointments with blocking status whose
	// interval overlaps the given window.
	ListBlocking(ctx context.Context, orgID string, window scheduling.Interval) ([]Appointment, error)
}

var (
	ErrValidation = errors.New("booking: invalid request")
	ErrConflict   = errors.New("booking: time slot conflict")
	ErrNotFound   = errors.New("booking: not found")
)

func NewService(store Store, rules RuleSource) *Service {
	return &Service{store: store, rules: rules, clock: time.Now}
}

// ReserveRequest carries one booking attempt.
type ReserveRequest struct {
	OrgID       string
	ClientName  string
	ClientPhone string
	ClientEmail string
	Service     string

	Start time.Time
	End   time.Time

	// CallID is set when the booking originates from a live call.
	CallID string
	Notes  string
}

// Reserve atomically validates and commits a booking. Exactly one of
// two concurrent overlapping Reserve calls for the same org succeeds;
// the other gets ErrConflict and mutates nothing.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (Appointment, error) {
	if err := s.validateReserve(ctx, req); err != nil {
		return Appointment{}, err
	}

	now := s.clock().UTC()
	appt := Appointment{
		ID:          uuid.NewString(),
		OrgID:       req.OrgID,
		CallID:      req.CallID,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		Service:     req.Service,
		StartTime:   req.Start,
		EndTime:     req.End,
		Status:      StatusConfirmed,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if appt.Service == "" {
		appt.Service = scheduling.DefaultOfferingName
	}

	if err := s.store.CreateIfFree(ctx, appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (s *Service) validateReserve(ctx context.Context, req ReserveRequest) error {
	if req.OrgID == "" {
		return fmt.Errorf("%w: org_id required", ErrValidation)
	}
	if strings.TrimSpace(req.ClientName) == "" {
		return fmt.Errorf("%w: client name required", ErrValidation)
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		return fmt.Errorf("%w: start must precede end", ErrValidation)
	}

	// Defensive window check for the direct booking path. The generated
	// slot path already satisfies this by construction.
	rule, open, err := s.rules.RuleForDate(ctx, req.OrgID, req.Start)
	if err != nil {
		return err
	}
	if !open {
		return fmt.Errorf("%w: business is closed on %s", ErrValidation, req.Start.Weekday())
	}
	inWindow, err := scheduling.WithinHours(rule, scheduling.Interval{Start: req.Start, End: req.End})
	if err != nil {
		return err
	}
	if !inWindow {
		return fmt.Errorf("%w: interval outside business hours", ErrValidation)
	}
	return nil
}

// UpdateRequest patches an existing appointment. Zero fields are left
// unchanged. Interval changes re-run the conflict check.
type UpdateRequest struct {
	Status *AppointmentStatus
	Start  *time.Time
	End    *time.Time
	Notes  *string
}

// Update applies a manual dashboard patch under the same atomicity
// contract as Reserve.
func (s *Service) Update(ctx context.Context, orgID, id string, req UpdateRequest) (Appointment, error) {
	if orgID == "" || id == "" {
		return Appointment{}, fmt.Errorf("%w: org_id and id required", ErrValidation)
	}

	appt, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return Appointment{}, err
	}

	if req.Status != nil {
		to := AppointmentStatus(strings.ToUpper(string(*req.Status)))
		if !ValidStatus(to) {
			return Appointment{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		if !ValidTransition(appt.Status, to) {
			return Appointment{}, fmt.Errorf("%w: cannot move %s appointment to %s", ErrValidation, appt.Status, to)
		}
		appt.Status = to
	}
	if req.Start != nil {
		appt.StartTime = *req.Start
	}
	if req.End != nil {
		appt.EndTime = *req.End
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}

	if !appt.StartTime.Before(appt.EndTime) {
		return Appointment{}, fmt.Errorf("%w: start must precede end", ErrValidation)
	}
	appt.UpdatedAt = s.clock().UTC()

	if err := s.store.UpdateIfFree(ctx, appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// ListFilter narrows appointment listings.
type ListFilter struct {
	Status AppointmentStatus
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.Limit <= 0 || out.Limit > 100 {
		out.Limit = 20
	}
	return out
}

// List returns appointments ordered by start time plus the total count.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]Appointment, int, error) {
	if orgID == "" {
		return nil, 0, fmt.Errorf("%w: org_id required", ErrValidation)
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	return s.store.List(ctx, orgID, f.withDefaults())
}

// Get fetches a single appointment scoped to the org.
func (s *Service) Get(ctx context.Context, orgID, id string) (Appointment, error) {
	if orgID == "" || id == "" {
		return Appointment{}, fmt.Errorf("%w: org_id and id required", ErrValidation)
	}
	return s.store.Get(ctx, orgID, id)
}

// BusyIntervals returns the blocking intervals for one calendar day,
// used to filter generated slots.
func (s *Service) BusyIntervals(ctx context.Context, orgID string, date time.Time) ([]scheduling.Interval, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: org_id required", ErrValidation)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	window := scheduling.Interval{Start: day, End: day.AddDate(0, 0, 1)}

	appts, err := s.store.ListBlocking(ctx, orgID, window)
	if err != nil {
		return nil, err
	}
	out := make([]scheduling.Interval, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Interval())
	}
	return out, nil
}
