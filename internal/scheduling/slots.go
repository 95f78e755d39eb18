package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GranularityMinutes is the fixed candidate-generation step.
// Slot starts advance by this step regardless of service duration.
const GranularityMinutes = 30

// GenerateSlots expands a weekday rule into the ordered candidate slots
// for one date. An inactive or zero rule yields no slots (business
// closed, not an error). The trailing partial window before close is
// dropped rather than emitted as a short slot.
func GenerateSlots(rule AvailabilityRule, date time.Time, durationMinutes int) ([]Slot, error) {
	if !rule.IsActive {
		return nil, nil
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	openMin, err := parseClock(rule.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("scheduling: bad open time %q: %w", rule.OpenTime, err)
	}
	closeMin, err := parseClock(rule.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("scheduling: bad close time %q: %w", rule.CloseTime, err)
	}
	if closeMin <= openMin {
		return nil, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var slots []Slot
	for t := openMin; t+durationMinutes <= closeMin; t += GranularityMinutes {
		start := day.Add(time.Duration(t) * time.Minute)
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		slots = append(slots, Slot{
			Start:   start,
			End:     end,
			Display: DisplayTime(start),
		})
	}
	return slots, nil
}

// AvailableSlots filters candidates down to those overlapping none of
// the busy intervals. Callers pass only blocking appointments as busy.
func AvailableSlots(candidates []Slot, busy []Interval) []Slot {
	out := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		slot := Interval{Start: s.Start, End: s.End}
		taken := false
		for _, b := range busy {
			if Overlaps(slot, b) {
				taken = true
				break
			}
		}
		if !taken {
			out = append(out, s)
		}
	}
	return out
}

// WithinHours reports whether a half-open interval lies inside the
// rule's open window on the interval's calendar day. Inactive rules
// contain nothing.
func WithinHours(rule AvailabilityRule, ival Interval) (bool, error) {
	if !rule.IsActive {
		return false, nil
	}
	openMin, err := parseClock(rule.OpenTime)
	if err != nil {
		return false, fmt.Errorf("scheduling: bad open time %q: %w", rule.OpenTime, err)
	}
	closeMin, err := parseClock(rule.CloseTime)
	if err != nil {
		return false, fmt.Errorf("scheduling: bad close time %q: %w", rule.CloseTime, err)
	}

	day := time.Date(ival.Start.Year(), ival.Start.Month(), ival.Start.Day(), 0, 0, 0, 0, ival.Start.Location())
	open := day.Add(time.Duration(openMin) * time.Minute)
	close := day.Add(time.Duration(closeMin) * time.Minute)

	return !ival.Start.Before(open) && !ival.End.After(close), nil
}

// DisplayTime renders a slot start the way the voice agent speaks it.
func DisplayTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("want HH:MM")
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("bad hour %q", h)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("bad minute %q", m)
	}
	return hh*60 + mm, nil
}
