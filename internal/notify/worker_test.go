package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"receptionist-platform/internal/booking"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []Message
}

func (f *fakeSender) Send(ctx context.Context, toPhone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	f.sent = append(f.sent, Message{ToPhone: toPhone, Body: body})
	return nil
}

func (f *fakeSender) delivered() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestWorker(sender Sender) (*Worker, context.CancelFunc) {
	w := NewWorker(sender)
	w.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return w, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never met")
}

func TestWorker_DeliversEnqueuedMessage(t *testing.T) {
	sender := &fakeSender{}
	w, cancel := newTestWorker(sender)
	defer cancel()

	w.Enqueue(context.Background(), Message{ToPhone: "+15550001111", Body: "hello"})
	waitFor(t, func() bool { return len(sender.delivered()) == 1 })

	got := sender.delivered()[0]
	if got.ToPhone != "+15550001111" || got.Body != "hello" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	w, cancel := newTestWorker(sender)
	defer cancel()

	w.Enqueue(context.Background(), Message{ToPhone: "+15550001111", Body: "retry me"})
	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
}

func TestWorker_AbandonsAfterMaxAttempts(t *testing.T) {
	sender := &fakeSender{failures: 10}
	w, cancel := newTestWorker(sender)
	defer cancel()

	w.Enqueue(context.Background(), Message{ToPhone: "+15550001111", Body: "doomed"})

	// Three failed attempts consume three failures; the message must
	// not be delivered afterwards.
	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return sender.failures <= 7
	})
	time.Sleep(20 * time.Millisecond)
	if n := len(sender.delivered()); n != 0 {
		t.Fatalf("abandoned message was delivered %d times", n)
	}
}

func TestWorker_NilSenderEnqueueIsNoop(t *testing.T) {
	w := NewWorker(nil)
	// Must not panic or block.
	w.Enqueue(context.Background(), Message{ToPhone: "+15550001111", Body: "x"})
}

func TestConfirmationBody(t *testing.T) {
	appt := booking.Appointment{
		Service:   "Dental Cleaning",
		StartTime: time.Date(2025, time.March, 3, 14, 0, 0, 0, time.UTC),
	}
	body := ConfirmationBody(appt, "Bright Smiles")
	for _, want := range []string{"Dental Cleaning", "Bright Smiles", "Monday, Mar 3 at 2:00 PM"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %q missing %q", body, want)
		}
	}
}
