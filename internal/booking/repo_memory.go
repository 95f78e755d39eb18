package booking

import (
	"context"
	"sort"
	"sync"

	"receptionist-platform/internal/scheduling"
)

// MemoryStore is an in-memory Store for tests and early development.
// A single mutex serializes all writers, which is a stronger guarantee
// than the per-org serialization the contract requires.
type MemoryStore struct {
	mu    sync.Mutex
	byOrg map[string][]Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOrg: map[string][]Appointment{}}
}

func (s *MemoryStore) CreateIfFree(ctx context.Context, appt Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictsLocked(appt) {
		return ErrConflict
	}
	s.byOrg[appt.OrgID] = append(s.byOrg[appt.OrgID], appt)
	return nil
}

func (s *MemoryStore) UpdateIfFree(ctx context.Context, appt Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.byOrg[appt.OrgID]
	idx := -1
	for i, a := range rows {
		if a.ID == appt.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if Blocking(appt.Status) && s.conflictsLocked(appt) {
		return ErrConflict
	}
	rows[idx] = appt
	return nil
}

// conflictsLocked checks appt against every blocking row except itself.
func (s *MemoryStore) conflictsLocked(appt Appointment) bool {
	if !Blocking(appt.Status) {
		return false
	}
	for _, a := range s.byOrg[appt.OrgID] {
		if a.ID == appt.ID || !Blocking(a.Status) {
			continue
		}
		if scheduling.Overlaps(a.Interval(), appt.Interval()) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Get(ctx context.Context, orgID, id string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byOrg[orgID] {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, orgID string, f ListFilter) ([]Appointment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Appointment
	for _, a := range s.byOrg[orgID] {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && a.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.StartTime.After(f.To) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.Before(matched[j].StartTime) })

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return []Appointment{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	out := make([]Appointment, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}

func (s *MemoryStore) ListBlocking(ctx context.Context, orgID string, window scheduling.Interval) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Appointment
	for _, a := range s.byOrg[orgID] {
		if !Blocking(a.Status) {
			continue
		}
		if scheduling.Overlaps(a.Interval(), window) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Count reports the number of stored rows for an org (test helper).
func (s *MemoryStore) Count(orgID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOrg[orgID])
}
