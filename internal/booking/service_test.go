package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"receptionist-platform/internal/scheduling"
)

// 2025-03-03 is a Monday.
var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	rules := scheduling.NewMemoryRepo()
	sched := scheduling.NewService(rules)
	if _, err := sched.ReplaceWeeklyRules(context.Background(), "org-1", []scheduling.RuleInput{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}); err != nil {
		t.Fatalf("seed rules: %v", err)
	}
	store := NewMemoryStore()
	return NewService(store, sched), store
}

func reserveAt(start time.Time, minutes int) ReserveRequest {
	return ReserveRequest{
		OrgID:       "org-1",
		ClientName:  "Sarah Mitchell",
		ClientPhone: "+15552348901",
		Service:     "Consultation",
		Start:       start,
		End:         start.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestReserve_Succeeds(t *testing.T) {
	svc, store := newTestService(t)

	appt, err := svc.Reserve(context.Background(), reserveAt(monday.Add(10*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if appt.ID == "" || appt.Status != StatusConfirmed {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if store.Count("org-1") != 1 {
		t.Fatalf("expected 1 row, got %d", store.Count("org-1"))
	}
}

func TestReserve_ConflictMutatesNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30)); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	_, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour+15*time.Minute), 30))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if store.Count("org-1") != 1 {
		t.Fatalf("conflict must not create a row, have %d", store.Count("org-1"))
	}
}

func TestReserve_AdjacentIntervalsDoNotConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30)); err != nil {
		t.Fatalf("first: %v", err)
	}
	// [10:30, 11:00) touches [10:00, 10:30) but does not overlap.
	if _, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour+30*time.Minute), 30)); err != nil {
		t.Fatalf("adjacent: %v", err)
	}
}

func TestReserve_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  ReserveRequest
	}{
		{"missing org", ReserveRequest{ClientName: "x", Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)}},
		{"missing name", reserveWithout(func(r *ReserveRequest) { r.ClientName = " " })},
		{"zero times", reserveWithout(func(r *ReserveRequest) { r.Start, r.End = time.Time{}, time.Time{} })},
		{"inverted interval", reserveWithout(func(r *ReserveRequest) { r.Start, r.End = r.End, r.Start })},
		{"before open", reserveWithout(func(r *ReserveRequest) {
			r.Start = monday.Add(8 * time.Hour)
			r.End = r.Start.Add(30 * time.Minute)
		})},
		{"past close", reserveWithout(func(r *ReserveRequest) {
			r.Start = monday.Add(16*time.Hour + 45*time.Minute)
			r.End = r.Start.Add(30 * time.Minute)
		})},
		{"closed day", reserveWithout(func(r *ReserveRequest) {
			sunday := monday.AddDate(0, 0, -1)
			r.Start = sunday.Add(10 * time.Hour)
			r.End = r.Start.Add(30 * time.Minute)
		})},
	}
	for _, tc := range cases {
		if _, err := svc.Reserve(ctx, tc.req); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func reserveWithout(mutate func(*ReserveRequest)) ReserveRequest {
	req := reserveAt(monday.Add(10*time.Hour), 30)
	mutate(&req)
	return req
}

func TestReserve_ConcurrentSameSlotExactlyOneWins(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Reserve(ctx, reserveAt(monday.Add(14*time.Hour), 30))
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one winner, got ok=%d conflicts=%d", ok, conflicts)
	}
	if store.Count("org-1") != 1 {
		t.Fatalf("storage must contain exactly one row, got %d", store.Count("org-1"))
	}
}

func TestUpdate_CancelFreesTheSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cancelled := StatusCancelled
	if _, err := svc.Update(ctx, "org-1", appt.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Same slot books again after cancellation.
	if _, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30)); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestUpdate_RejectsInvalidTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cancelled := StatusCancelled
	if _, err := svc.Update(ctx, "org-1", appt.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	confirmed := StatusConfirmed
	if _, err := svc.Update(ctx, "org-1", appt.ID, UpdateRequest{Status: &confirmed}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation reviving cancelled appointment, got %v", err)
	}
}

func TestUpdate_RescheduleRechecksConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve first: %v", err)
	}
	if _, err := svc.Reserve(ctx, reserveAt(monday.Add(11*time.Hour), 30)); err != nil {
		t.Fatalf("reserve second: %v", err)
	}

	// Move the first onto the second.
	newStart := monday.Add(11 * time.Hour)
	newEnd := newStart.Add(30 * time.Minute)
	if _, err := svc.Update(ctx, "org-1", first.ID, UpdateRequest{Start: &newStart, End: &newEnd}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestList_FiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Reserve(ctx, reserveAt(monday.Add(time.Duration(9+i)*time.Hour), 30)); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}

	page1, total, err := svc.List(ctx, "org-1", ListFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("total=%d len=%d", total, len(page1))
	}
	page3, _, err := svc.List(ctx, "org-1", ListFilter{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("list p3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("expected 1 row on last page, got %d", len(page3))
	}

	none, _, err := svc.List(ctx, "org-1", ListFilter{Status: StatusCancelled})
	if err != nil {
		t.Fatalf("list cancelled: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no cancelled rows")
	}
}

func TestBusyIntervals_OnlyBlockingStatuses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	kept, err := svc.Reserve(ctx, reserveAt(monday.Add(10*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	gone, err := svc.Reserve(ctx, reserveAt(monday.Add(12*time.Hour), 30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cancelled := StatusCancelled
	if _, err := svc.Update(ctx, "org-1", gone.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	busy, err := svc.BusyIntervals(ctx, "org-1", monday)
	if err != nil {
		t.Fatalf("busy: %v", err)
	}
	if len(busy) != 1 || !busy[0].Start.Equal(kept.StartTime) {
		t.Fatalf("expected only the confirmed interval, got %+v", busy)
	}
}
