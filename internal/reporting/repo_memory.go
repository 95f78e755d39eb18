package reporting

import (
	"context"
	"sync"
	"time"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	calls []calls.Call
	appts []booking.Appointment
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) AddCall(c calls.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *MemoryRepo) AddAppointment(a booking.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts = append(r.appts, a)
}

func (r *MemoryRepo) ListCalls(ctx context.Context, orgID string, from, to time.Time) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []calls.Call
	for _, c := range r.calls {
		if c.OrgID == orgID && !c.CreatedAt.Before(from) && c.CreatedAt.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListAppointments(ctx context.Context, orgID string, from, to time.Time) ([]booking.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Appointment
	for _, a := range r.appts {
		if a.OrgID == orgID && !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}
