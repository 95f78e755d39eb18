package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/scheduling"
	"receptionist-platform/pkg/logger"
)

// maxSpokenSlots caps how many openings the assistant reads back to
// the caller.
const maxSpokenSlots = 5

// Dispatcher answers live tool calls. The voice engine blocks the
// conversation on the response, so every path returns quickly and
// degrades to a safe spoken message instead of propagating faults.
type Dispatcher struct {
	sched *scheduling.Service
	book  *booking.Service
	calls *calls.Service
}

func NewDispatcher(sched *scheduling.Service, book *booking.Service, callsSvc *calls.Service) *Dispatcher {
	return &Dispatcher{sched: sched, book: book, calls: callsSvc}
}

// AvailabilityResult is the tool response for check_availability.
type AvailabilityResult struct {
	Available bool     `json:"available"`
	Slots     []string `json:"slots"`
	Message   string   `json:"message"`
}

// BookingResult is the tool response for book_appointment. Either
// Success or Error is set, never both.
type BookingResult struct {
	Success       bool   `json:"success,omitempty"`
	Message       string `json:"message,omitempty"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Dispatch routes one tool invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, externalCallID string, tool ToolPayload) any {
	switch tool.Name {
	case ToolCheckAvailability:
		return d.CheckAvailability(ctx, orgID, tool.Parameters.Date, tool.Parameters.Service)
	case ToolBookAppointment:
		return d.BookAppointment(ctx, orgID, externalCallID, tool.Parameters)
	default:
		return BookingResult{Error: fmt.Sprintf("unknown tool: %s", tool.Name)}
	}
}

// CheckAvailability lists open slots for a date. Read-only.
func (d *Dispatcher) CheckAvailability(ctx context.Context, orgID, date, service string) AvailabilityResult {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), time.UTC)
	if err != nil {
		return AvailabilityResult{Message: "I did not catch the date. Could you repeat it?"}
	}

	rule, open, err := d.sched.RuleForDate(ctx, orgID, day)
	if err != nil {
		logger.From(ctx).Error("availability lookup failed", "org_id", orgID, "error", err)
		return AvailabilityResult{Message: "I am having trouble checking the calendar right now. Please try again in a moment."}
	}
	if !open {
		return AvailabilityResult{Message: "We are closed on this day."}
	}

	_, duration := d.sched.ResolveDuration(ctx, orgID, service)
	candidates, err := scheduling.GenerateSlots(rule, day, duration)
	if err != nil {
		logger.From(ctx).Error("slot generation failed", "org_id", orgID, "error", err)
		return AvailabilityResult{Message: "I am having trouble checking the calendar right now. Please try again in a moment."}
	}

	busy, err := d.book.BusyIntervals(ctx, orgID, day)
	if err != nil {
		logger.From(ctx).Error("busy interval lookup failed", "org_id", orgID, "error", err)
		return AvailabilityResult{Message: "I am having trouble checking the calendar right now. Please try again in a moment."}
	}

	free := scheduling.AvailableSlots(candidates, busy)
	if len(free) == 0 {
		return AvailabilityResult{Message: "No availability on this date. Please try another day.", Slots: []string{}}
	}

	labels := make([]string, 0, maxSpokenSlots)
	for _, s := range free {
		if len(labels) == maxSpokenSlots {
			break
		}
		labels = append(labels, s.Display)
	}
	spoken := labels
	if len(spoken) > 3 {
		spoken = spoken[:3]
	}
	return AvailabilityResult{
		Available: true,
		Slots:     labels,
		Message:   fmt.Sprintf("Available times on %s: %s", date, strings.Join(spoken, ", ")),
	}
}

// BookAppointment reserves a default-length appointment for the
// caller. Conflict comes back as a spoken alternative-offer so the
// assistant can keep the conversation going.
func (d *Dispatcher) BookAppointment(ctx context.Context, orgID, externalCallID string, p ToolParameters) BookingResult {
	name := strings.TrimSpace(p.ClientName)
	if name == "" {
		return BookingResult{Error: "I need the caller's name to book."}
	}

	start, err := parseWhen(p.Date, p.Time)
	if err != nil {
		return BookingResult{Error: "I could not understand the requested date and time."}
	}

	service, duration := d.sched.ResolveDuration(ctx, orgID, p.Service)
	end := start.Add(time.Duration(duration) * time.Minute)

	// The owning call supplies a phone fallback and the back-reference
	// on the appointment. Lookup failure only costs us those extras.
	phone := strings.TrimSpace(p.ClientPhone)
	var callID string
	if externalCallID != "" {
		if call, found, err := d.calls.ByExternalID(ctx, externalCallID); err == nil && found {
			callID = call.ID
			if phone == "" {
				phone = call.CallerPhone
			}
		}
	}
	if phone == "" {
		phone = "unknown"
	}

	appt, err := d.book.Reserve(ctx, booking.ReserveRequest{
		OrgID:       orgID,
		ClientName:  name,
		ClientPhone: phone,
		Service:     service,
		Start:       start,
		End:         end,
		CallID:      callID,
	})
	switch {
	case err == nil:
		return BookingResult{
			Success:       true,
			Message:       fmt.Sprintf("Appointment booked for %s on %s at %s. A confirmation text will be sent shortly.", name, p.Date, scheduling.DisplayTime(start)),
			AppointmentID: appt.ID,
		}
	case errors.Is(err, booking.ErrConflict):
		return BookingResult{Error: fmt.Sprintf("That time is already taken. Shall I check other openings on %s?", p.Date)}
	case errors.Is(err, booking.ErrValidation):
		return BookingResult{Error: "That time is outside our business hours. Would another time work?"}
	default:
		logger.From(ctx).Error("booking failed", "org_id", orgID, "error", err)
		return BookingResult{Error: "I could not complete the booking just now. Please try again in a moment."}
	}
}

// clockLayouts covers the formats the speech pipeline produces for
// the time parameter.
var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM", "15"}

func parseWhen(date, clock string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("voice: parse date %q: %w", date, err)
	}
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("voice: unparseable time %q", clock)
}
