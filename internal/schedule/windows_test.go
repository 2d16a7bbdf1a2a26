package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func win(day, start, end int) Window {
	return Window{Weekday: day, Start: start, End: end}
}

func TestWindowOverlapsHalfOpen(t *testing.T) {
	a := win(1, 9*60, 10*60)
	assert.True(t, a.Overlaps(win(1, 9*60+30, 10*60+30)))
	assert.False(t, a.Overlaps(win(1, 10*60, 11*60)), "touching endpoints do not overlap")
	assert.False(t, a.Overlaps(win(2, 9*60, 10*60)), "different weekdays never overlap")
}

func TestWindowsFromSlotsUnconstrained(t *testing.T) {
	set, err := WindowsFromSlots([]TimeSlot{UnconstrainedSlot()})
	require.NoError(t, err)
	assert.Equal(t, FullWeekWindows(), set)

	set, err = WindowsFromSlots(nil)
	require.NoError(t, err)
	assert.Len(t, set, 5)
}

func TestIntersect(t *testing.T) {
	a := WindowSet{win(1, 8*60, 12*60), win(2, 8*60, 12*60)}
	b := WindowSet{win(1, 10*60, 14*60)}

	got := a.Intersect(b)
	assert.Equal(t, WindowSet{win(1, 10*60, 12*60)}, got)
}

func TestSubtractSplitsWindow(t *testing.T) {
	set := WindowSet{win(1, 8*60, 12*60)}

	got := set.Subtract(win(1, 9*60, 10*60))
	assert.Equal(t, WindowSet{win(1, 8*60, 9*60), win(1, 10*60, 12*60)}, got)

	got = set.Subtract(win(1, 7*60, 13*60))
	assert.Empty(t, got)
}

func TestSubtractDay(t *testing.T) {
	set := FullWeekWindows().SubtractDay(3)
	require.Len(t, set, 4)
	for _, w := range set {
		assert.NotEqual(t, 3, w.Weekday)
	}
}

func TestNormalizeMergesAdjacent(t *testing.T) {
	set, err := WindowsFromSlots([]TimeSlot{
		{Weekday: 1, Start: "09:00", End: "10:00"},
		{Weekday: 1, Start: "10:00", End: "11:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, WindowSet{win(1, 9*60, 11*60)}, set)
}

func TestContainsWindow(t *testing.T) {
	set := WindowSet{win(2, 9*60, 12*60)}
	assert.True(t, set.ContainsWindow(win(2, 10*60, 11*60)))
	assert.False(t, set.ContainsWindow(win(2, 11*60, 13*60)))
	assert.False(t, set.ContainsWindow(win(3, 10*60, 11*60)))
}

func TestSlotsRoundTrip(t *testing.T) {
	set := WindowSet{win(4, 9*60+30, 1440)}
	assert.Equal(t, []TimeSlot{{Weekday: 4, Start: "09:30", End: "24:00"}}, set.Slots())
}
