package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is a simple in-memory scheduling repository for tests and
// early development. It enforces org isolation on reads.
type MemoryRepo struct {
	mu sync.Mutex

	rules     map[string]map[int]AvailabilityRule // org -> weekday -> rule
	offerings map[string][]Offering
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		rules:     map[string]map[int]AvailabilityRule{},
		offerings: map[string][]Offering{},
	}
}

func (r *MemoryRepo) ListRules(ctx context.Context, orgID string) ([]AvailabilityRule, error) {
	if orgID == "" {
		return nil, errors.New("org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AvailabilityRule, 0, len(r.rules[orgID]))
	for _, rule := range r.rules[orgID] {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (r *MemoryRepo) ReplaceRules(ctx context.Context, orgID string, rules []AvailabilityRule) error {
	if orgID == "" {
		return errors.New("org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byDay := r.rules[orgID]
	if byDay == nil {
		byDay = map[int]AvailabilityRule{}
		r.rules[orgID] = byDay
	}
	for _, rule := range rules {
		byDay[rule.DayOfWeek] = rule
	}
	return nil
}

func (r *MemoryRepo) ListOfferings(ctx context.Context, orgID string) ([]Offering, error) {
	if orgID == "" {
		return nil, errors.New("org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Offering, len(r.offerings[orgID]))
	copy(out, r.offerings[orgID])
	return out, nil
}

func (r *MemoryRepo) FindOffering(ctx context.Context, orgID, name string) (Offering, bool, error) {
	if orgID == "" {
		return Offering{}, false, errors.New("org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, off := range r.offerings[orgID] {
		if strings.Contains(strings.ToLower(off.Name), needle) {
			return off, true, nil
		}
	}
	return Offering{}, false, nil
}

// AddOffering seeds the catalog (test helper).
func (r *MemoryRepo) AddOffering(off Offering) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offerings[off.OrgID] = append(r.offerings[off.OrgID], off)
}
