package voice

import (
	"context"
	"strings"
	"testing"
	"time"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/scheduling"
)

// 2025-03-03 is a Monday.
const mondayDate = "2025-03-03"

var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	dispatcher *Dispatcher
	book       *booking.Service
	store      *booking.MemoryStore
	calls      *calls.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rules := scheduling.NewMemoryRepo()
	sched := scheduling.NewService(rules)
	if _, err := sched.ReplaceWeeklyRules(context.Background(), "org-1", []scheduling.RuleInput{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}); err != nil {
		t.Fatalf("seed rules: %v", err)
	}

	store := booking.NewMemoryStore()
	book := booking.NewService(store, sched)
	callsSvc := calls.NewService(calls.NewMemoryRepo(), nil)

	return fixture{
		dispatcher: NewDispatcher(sched, book, callsSvc),
		book:       book,
		store:      store,
		calls:      callsSvc,
	}
}

func (f fixture) reserve(t *testing.T, start time.Time, minutes int) booking.Appointment {
	t.Helper()
	appt, err := f.book.Reserve(context.Background(), booking.ReserveRequest{
		OrgID:       "org-1",
		ClientName:  "Existing Client",
		ClientPhone: "+15550009999",
		Start:       start,
		End:         start.Add(time.Duration(minutes) * time.Minute),
	})
	if err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	return appt
}

func TestCheckAvailability_ExcludesBookedSlot(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, monday.Add(10*time.Hour), 30)

	res := f.dispatcher.CheckAvailability(context.Background(), "org-1", mondayDate, "")
	if !res.Available {
		t.Fatalf("expected availability, got %+v", res)
	}
	if len(res.Slots) > 5 {
		t.Fatalf("more than 5 slots returned: %d", len(res.Slots))
	}
	for _, s := range res.Slots {
		if s == "10:00 AM" {
			t.Fatalf("booked 10:00 slot offered: %v", res.Slots)
		}
	}
	if res.Slots[0] != "9:00 AM" {
		t.Fatalf("expected 9:00 AM first, got %v", res.Slots)
	}
	if !strings.HasPrefix(res.Message, "Available times on "+mondayDate) {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestCheckAvailability_ClosedDay(t *testing.T) {
	f := newFixture(t)

	// 2025-03-04 is a Tuesday with no rule.
	res := f.dispatcher.CheckAvailability(context.Background(), "org-1", "2025-03-04", "")
	if res.Available {
		t.Fatalf("closed day must not be available")
	}
	if res.Message != "We are closed on this day." {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestCheckAvailability_BadDateDegrades(t *testing.T) {
	f := newFixture(t)

	res := f.dispatcher.CheckAvailability(context.Background(), "org-1", "next tuesday", "")
	if res.Available || res.Message == "" {
		t.Fatalf("expected a spoken fallback, got %+v", res)
	}
}

func TestBookAppointment_Succeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The owning call supplies the phone fallback.
	started, _, err := f.calls.HandleStarted(ctx, calls.StartedEvent{
		OrgID: "org-1", ExternalCallID: "vapi-9", CallerPhone: "+15552348901",
	})
	if err != nil {
		t.Fatalf("started: %v", err)
	}

	res := f.dispatcher.BookAppointment(ctx, "org-1", "vapi-9", ToolParameters{
		ClientName: "Sarah Mitchell",
		Date:       mondayDate,
		Time:       "2:00 PM",
	})
	if !res.Success || res.Error != "" {
		t.Fatalf("expected success, got %+v", res)
	}

	appt, err := f.book.Get(ctx, "org-1", res.AppointmentID)
	if err != nil {
		t.Fatalf("readback: %v", err)
	}
	if !appt.StartTime.Equal(monday.Add(14 * time.Hour)) {
		t.Fatalf("start %v", appt.StartTime)
	}
	if !appt.EndTime.Equal(monday.Add(14*time.Hour + 30*time.Minute)) {
		t.Fatalf("default duration not applied: end %v", appt.EndTime)
	}
	if appt.ClientPhone != "+15552348901" {
		t.Fatalf("phone fallback not applied: %q", appt.ClientPhone)
	}
	if appt.CallID != started.ID {
		t.Fatalf("call back-reference missing: %q", appt.CallID)
	}
	if appt.Service != scheduling.DefaultOfferingName {
		t.Fatalf("default service not applied: %q", appt.Service)
	}
	if !strings.Contains(res.Message, "Sarah Mitchell") {
		t.Fatalf("message %q", res.Message)
	}
}

func TestBookAppointment_ConflictSpokenFallback(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, monday.Add(14*time.Hour), 30)

	res := f.dispatcher.BookAppointment(context.Background(), "org-1", "", ToolParameters{
		ClientName: "Sarah Mitchell",
		Date:       mondayDate,
		Time:       "14:00",
	})
	if res.Success {
		t.Fatalf("conflicting booking must not succeed")
	}
	if !strings.Contains(res.Error, "already taken") {
		t.Fatalf("expected spoken conflict message, got %q", res.Error)
	}
	if f.store.Count("org-1") != 1 {
		t.Fatalf("conflict must not create a row, have %d", f.store.Count("org-1"))
	}
}

func TestBookAppointment_OutsideHours(t *testing.T) {
	f := newFixture(t)

	res := f.dispatcher.BookAppointment(context.Background(), "org-1", "", ToolParameters{
		ClientName: "Sarah Mitchell",
		Date:       mondayDate,
		Time:       "8:00 PM",
	})
	if res.Success || !strings.Contains(res.Error, "business hours") {
		t.Fatalf("expected hours rejection, got %+v", res)
	}
}

func TestParseWhen_Layouts(t *testing.T) {
	want := monday.Add(14 * time.Hour)
	for _, clock := range []string{"14:00", "2:00 PM", "2:00PM", "2 pm"} {
		got, err := parseWhen(mondayDate, clock)
		if err != nil {
			t.Fatalf("%q: %v", clock, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v", clock, got)
		}
	}
	if _, err := parseWhen(mondayDate, "sometime soon"); err == nil {
		t.Fatalf("nonsense time must fail")
	}
}
