package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and early
// development. A map keyed by external_call_id plays the role of the
// storage uniqueness constraint.
type MemoryRepo struct {
	mu         sync.Mutex
	byExternal map[string]*Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byExternal: map[string]*Call{}}
}

func (r *MemoryRepo) CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byExternal[c.ExternalCallID]; ok {
		return *existing, false, nil
	}
	stored := c
	r.byExternal[c.ExternalCallID] = &stored
	return stored, true, nil
}

func (r *MemoryRepo) UpsertEnded(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byExternal[c.ExternalCallID]; ok {
		// Keep identity and creation data; overwrite terminal fields.
		existing.Status = c.Status
		existing.DurationSeconds = c.DurationSeconds
		existing.Transcript = c.Transcript
		existing.Summary = c.Summary
		existing.Sentiment = c.Sentiment
		existing.RecordingURL = c.RecordingURL
		existing.UpdatedAt = c.UpdatedAt
		return *existing, nil
	}
	stored := c
	r.byExternal[c.ExternalCallID] = &stored
	return stored, nil
}

func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalCallID string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byExternal[externalCallID]; ok {
		return *c, true, nil
	}
	return Call{}, false, nil
}

func (r *MemoryRepo) Get(ctx context.Context, orgID, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byExternal {
		if c.OrgID == orgID && c.ID == id {
			return *c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context, orgID string, f ListFilter) ([]Call, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Call
	for _, c := range r.byExternal {
		if c.OrgID != orgID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Sentiment != "" && c.Sentiment != f.Sentiment {
			continue
		}
		if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && c.CreatedAt.After(f.To) {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return []Call{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Count reports the number of stored rows (test helper).
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byExternal)
}
