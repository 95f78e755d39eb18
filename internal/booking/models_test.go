package booking

import "testing"

func TestBlocking(t *testing.T) {
	if !Blocking(StatusPending) || !Blocking(StatusConfirmed) {
		t.Fatalf("pending and confirmed must block")
	}
	if Blocking(StatusCancelled) || Blocking(StatusCompleted) {
		t.Fatalf("cancelled and completed must not block")
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusPending, false},
		{StatusConfirmed, StatusConfirmed, true}, // idempotent re-apply
	}
	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
