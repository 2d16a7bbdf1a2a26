package schedule

import "sort"

// Window is a half-open [Start,End) range of minutes from midnight on a
// single weekday (Monday=1..Friday=5).
type Window struct {
	Weekday int
	Start   int
	End     int
}

// Overlaps applies the half-open overlap test; touching endpoints do not
// overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Weekday == other.Weekday && w.Start < other.End && other.Start < w.End
}

// Contains reports whether other lies fully inside w.
func (w Window) Contains(other Window) bool {
	return w.Weekday == other.Weekday && w.Start <= other.Start && other.End <= w.End
}

// WindowSet is a normalized set of windows: sorted by weekday then start,
// with no two windows overlapping and adjacent windows merged.
type WindowSet []Window

// FullWeekWindows covers every teaching weekday end to end.
func FullWeekWindows() WindowSet {
	set := make(WindowSet, 0, 5)
	for day := 1; day <= 5; day++ {
		set = append(set, Window{Weekday: day, Start: 0, End: minutesPerDay})
	}
	return set
}

// WindowsFromSlots converts decoded availability into a window set. The
// unconstrained sentinel expands to the full teaching week.
func WindowsFromSlots(slots []TimeSlot) (WindowSet, error) {
	if len(slots) == 0 || IsUnconstrained(slots) {
		return FullWeekWindows(), nil
	}
	set := make(WindowSet, 0, len(slots))
	for _, slot := range slots {
		startMin, endMin, err := validateSlot(slot)
		if err != nil {
			return nil, err
		}
		set = append(set, Window{Weekday: slot.Weekday, Start: startMin, End: endMin})
	}
	return normalize(set), nil
}

// Slots converts the set back to clock-time slots for API responses.
func (s WindowSet) Slots() []TimeSlot {
	slots := make([]TimeSlot, 0, len(s))
	for _, w := range s {
		slots = append(slots, TimeSlot{Weekday: w.Weekday, Start: FormatClock(w.Start), End: FormatClock(w.End)})
	}
	return slots
}

// Intersect returns the windows present in both sets.
func (s WindowSet) Intersect(other WindowSet) WindowSet {
	var out WindowSet
	for _, a := range s {
		for _, b := range other {
			if !a.Overlaps(b) {
				continue
			}
			w := Window{Weekday: a.Weekday, Start: maxInt(a.Start, b.Start), End: minInt(a.End, b.End)}
			if w.Start < w.End {
				out = append(out, w)
			}
		}
	}
	return normalize(out)
}

// Subtract removes the given window from the set, splitting windows that
// straddle it.
func (s WindowSet) Subtract(blocked Window) WindowSet {
	var out WindowSet
	for _, w := range s {
		if !w.Overlaps(blocked) {
			out = append(out, w)
			continue
		}
		if w.Start < blocked.Start {
			out = append(out, Window{Weekday: w.Weekday, Start: w.Start, End: blocked.Start})
		}
		if blocked.End < w.End {
			out = append(out, Window{Weekday: w.Weekday, Start: blocked.End, End: w.End})
		}
	}
	return normalize(out)
}

// SubtractDay drops every window on the given weekday.
func (s WindowSet) SubtractDay(weekday int) WindowSet {
	var out WindowSet
	for _, w := range s {
		if w.Weekday != weekday {
			out = append(out, w)
		}
	}
	return out
}

// ContainsWindow reports whether some window in the set fully contains w.
func (s WindowSet) ContainsWindow(w Window) bool {
	for _, candidate := range s {
		if candidate.Contains(w) {
			return true
		}
	}
	return false
}

// OnWeekday returns the subset covering the given weekday.
func (s WindowSet) OnWeekday(weekday int) WindowSet {
	var out WindowSet
	for _, w := range s {
		if w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out
}

func normalize(set WindowSet) WindowSet {
	if len(set) == 0 {
		return nil
	}
	sort.Slice(set, func(i, j int) bool {
		if set[i].Weekday != set[j].Weekday {
			return set[i].Weekday < set[j].Weekday
		}
		if set[i].Start != set[j].Start {
			return set[i].Start < set[j].Start
		}
		return set[i].End < set[j].End
	})
	out := WindowSet{set[0]}
	for _, w := range set[1:] {
		last := &out[len(out)-1]
		if w.Weekday == last.Weekday && w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		out = append(out, w)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
