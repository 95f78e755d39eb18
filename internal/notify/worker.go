package notify

import (
	"context"
	"fmt"
	"time"

	"receptionist-platform/internal/booking"
	"receptionist-platform/pkg/logger"
)

// Message is one outbound delivery request.
type Message struct {
	ToPhone string
	Body    string
}

// Worker drains a queue of outbound messages on its own goroutine.
// Each message is retried a few times with backoff and then dropped
// with a log line. The queue is bounded; when it is full, Enqueue
// drops the message rather than stalling the caller.
type Worker struct {
	sender   Sender
	queue    chan Message
	attempts int
	backoff  time.Duration
	done     chan struct{}
}

func NewWorker(sender Sender) *Worker {
	return &Worker{
		sender:   sender,
		queue:    make(chan Message, 64),
		attempts: 3,
		backoff:  2 * time.Second,
		done:     make(chan struct{}),
	}
}

// Enqueue schedules a message for delivery. It never blocks.
func (w *Worker) Enqueue(ctx context.Context, msg Message) {
	if w == nil || w.sender == nil {
		return
	}
	select {
	case w.queue <- msg:
	default:
		logger.From(ctx).Warn("notify: queue full, message dropped", "to", msg.ToPhone)
	}
}

// Run processes the queue until ctx is cancelled. Call it on its own
// goroutine; use Wait for shutdown.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.queue:
			w.deliver(ctx, msg)
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) deliver(ctx context.Context, msg Message) {
	log := logger.From(ctx)
	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err := w.sender.Send(ctx, msg.ToPhone, msg.Body); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
			continue
		}
		log.Info("notify: message delivered", "to", msg.ToPhone, "attempt", attempt)
		return
	}
	log.Warn("notify: delivery abandoned", "to", msg.ToPhone, "attempts", w.attempts, "error", lastErr)
}

// ConfirmationBody renders the booking confirmation text.
func ConfirmationBody(appt booking.Appointment, orgName string) string {
	when := appt.StartTime.Format("Monday, Jan 2 at 3:04 PM")
	if orgName == "" {
		return fmt.Sprintf("Your %s on %s is confirmed. Reply to this number if you need to make changes.", appt.Service, when)
	}
	return fmt.Sprintf("Your %s with %s on %s is confirmed. Reply to this number if you need to make changes.", appt.Service, orgName, when)
}
