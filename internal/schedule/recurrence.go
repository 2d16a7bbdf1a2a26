package schedule

import "time"

// DateOnly truncates a timestamp to midnight UTC so lesson dates compare
// by calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ISOWeekday maps time.Weekday to Monday=1..Sunday=7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ExpandDates produces the ordered lesson dates of a recurring contract
// inside [windowStart, windowEnd]. The contract occupies the weekday of
// startDate and repeats every intervalWeeks weeks; dates always stay on the
// contract's own cycle, so narrowing the window never shifts the phase of
// the produced dates. A nil endDate leaves the contract open-ended and the
// window bounds the expansion. The function is pure; callers re-invoke it
// in full after any change to the contract's bounds.
func ExpandDates(startDate time.Time, endDate *time.Time, intervalWeeks int, windowStart, windowEnd time.Time) []time.Time {
	if intervalWeeks < 1 {
		intervalWeeks = 1
	}
	stepDays := 7 * intervalWeeks

	start := DateOnly(startDate)
	effStart := start
	if ws := DateOnly(windowStart); ws.After(effStart) {
		effStart = ws
	}
	effEnd := DateOnly(windowEnd)
	if endDate != nil {
		if ce := DateOnly(*endDate); ce.Before(effEnd) {
			effEnd = ce
		}
	}
	if effStart.After(effEnd) {
		return nil
	}

	first := start
	if effStart.After(first) {
		diffDays := int(effStart.Sub(first).Hours() / 24)
		cycles := (diffDays + stepDays - 1) / stepDays
		first = first.AddDate(0, 0, cycles*stepDays)
	}

	var dates []time.Time
	for d := first; !d.After(effEnd); d = d.AddDate(0, 0, stepDays) {
		dates = append(dates, d)
	}
	return dates
}

// DatesIntersect reports whether the two ordered date sequences share at
// least one calendar day.
func DatesIntersect(a, b []time.Time) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Equal(b[j]):
			return true
		case a[i].Before(b[j]):
			i++
		default:
			j++
		}
	}
	return false
}
