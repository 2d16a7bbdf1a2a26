package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Availability is persisted as a multirange-style literal anchored to the
// week of Monday 2001-01-01. The bounds are day-of-week carriers only; the
// calendar dates are never interpreted as real dates. The literal is a
// stable storage contract and must not change shape.
const anchorLayout = "2006-01-02 15:04"

var referenceMonday = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// FullWeek is the stored sentinel meaning "no availability constraint".
const FullWeek = "{[2001-01-01 00:00,2001-01-08 00:00)}"

const minutesPerDay = 24 * 60

// TimeSlot is one weekly availability window. Weekday runs Monday=1 through
// Friday=5. Start and End are "HH:MM" clock times; End may be "24:00".
type TimeSlot struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// UnconstrainedSlot is what the full-week sentinel decodes to. Callers must
// treat it via IsUnconstrained instead of matching the triple themselves.
func UnconstrainedSlot() TimeSlot {
	return TimeSlot{Weekday: 1, Start: "00:00", End: "00:00"}
}

// IsUnconstrained reports whether the slot list is the decoded full-week
// sentinel, i.e. the user has no availability restriction at all.
func IsUnconstrained(slots []TimeSlot) bool {
	return len(slots) == 1 && slots[0] == UnconstrainedSlot()
}

// ParseClock converts "HH:MM" to minutes from midnight. "24:00" is allowed
// as an exclusive upper bound.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes from midnight as "HH:MM"; 1440 becomes "24:00".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func validateSlot(slot TimeSlot) (startMin, endMin int, err error) {
	if slot.Weekday < 1 || slot.Weekday > 5 {
		return 0, 0, fmt.Errorf("weekday %d out of range (Monday=1..Friday=5)", slot.Weekday)
	}
	startMin, err = ParseClock(slot.Start)
	if err != nil {
		return 0, 0, err
	}
	endMin, err = ParseClock(slot.End)
	if err != nil {
		return 0, 0, err
	}
	if startMin >= endMin {
		return 0, 0, fmt.Errorf("slot start %s must be before end %s", slot.Start, slot.End)
	}
	return startMin, endMin, nil
}

// EncodeSlots renders the canonical interval-set literal for the given
// slots. An empty list encodes to the full-week sentinel. An end of "24:00"
// is anchored on the following day, so the stored upper bound always stays
// a valid timestamp.
func EncodeSlots(slots []TimeSlot) (string, error) {
	if len(slots) == 0 || IsUnconstrained(slots) {
		return FullWeek, nil
	}

	ordered := make([]TimeSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Weekday != ordered[j].Weekday {
			return ordered[i].Weekday < ordered[j].Weekday
		}
		return ordered[i].Start < ordered[j].Start
	})

	parts := make([]string, 0, len(ordered))
	for _, slot := range ordered {
		startMin, endMin, err := validateSlot(slot)
		if err != nil {
			return "", err
		}
		start := referenceMonday.AddDate(0, 0, slot.Weekday-1).Add(time.Duration(startMin) * time.Minute)
		end := referenceMonday.AddDate(0, 0, slot.Weekday-1).Add(time.Duration(endMin) * time.Minute)
		parts = append(parts, fmt.Sprintf("[%s,%s)", start.Format(anchorLayout), end.Format(anchorLayout)))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// DecodeSlots parses the canonical interval-set literal back into slots.
// The full-week sentinel decodes to the single degenerate slot returned by
// UnconstrainedSlot; an interval crossing into the following day renders
// its end as "24:00".
func DecodeSlots(raw string) ([]TimeSlot, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, fmt.Errorf("invalid interval set literal %q", raw)
	}
	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if body == "" {
		return nil, fmt.Errorf("empty interval set literal")
	}

	var slots []TimeSlot
	for _, part := range strings.Split(body, "),") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, ")")
		bounds := strings.SplitN(part, ",", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid interval %q", part)
		}
		start, err := time.ParseInLocation(anchorLayout, strings.TrimSpace(bounds[0]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid interval start: %w", err)
		}
		end, err := time.ParseInLocation(anchorLayout, strings.TrimSpace(bounds[1]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid interval end: %w", err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("interval end %s not after start %s", bounds[1], bounds[0])
		}

		startOffset := start.Sub(referenceMonday)
		weekday := int(startOffset.Hours()/24) + 1
		if weekday == 1 && start.Equal(referenceMonday) && end.Equal(referenceMonday.AddDate(0, 0, 7)) {
			// Full-week sentinel.
			return []TimeSlot{UnconstrainedSlot()}, nil
		}
		if weekday < 1 || weekday > 5 {
			return nil, fmt.Errorf("interval start %s outside Monday-Friday of the reference week", bounds[0])
		}

		slot := TimeSlot{
			Weekday: weekday,
			Start:   start.Format("15:04"),
		}
		if end.YearDay() != start.YearDay() {
			slot.End = "24:00"
		} else {
			slot.End = end.Format("15:04")
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
