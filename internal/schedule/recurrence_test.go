package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandDatesBiweeklyOpenEnded(t *testing.T) {
	start := date(2024, time.January, 8) // a Monday
	window := start.AddDate(0, 0, 6*7-1)

	dates := ExpandDates(start, nil, 2, start, window)
	require.Len(t, dates, 3)
	assert.Equal(t, start, dates[0])
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, 14*24*time.Hour, dates[i].Sub(dates[i-1]))
	}
}

func TestExpandDatesEmptyWhenStartAfterWindow(t *testing.T) {
	start := date(2024, time.March, 4)
	dates := ExpandDates(start, nil, 1, date(2024, time.January, 1), date(2024, time.February, 1))
	assert.Empty(t, dates)
}

func TestExpandDatesRespectsContractEnd(t *testing.T) {
	start := date(2024, time.January, 2) // a Tuesday
	end := date(2024, time.January, 16)
	dates := ExpandDates(start, &end, 1, date(2024, time.January, 1), date(2024, time.December, 31))
	assert.Equal(t, []time.Time{
		date(2024, time.January, 2),
		date(2024, time.January, 9),
		date(2024, time.January, 16),
	}, dates)
}

func TestExpandDatesKeepsCyclePhase(t *testing.T) {
	start := date(2024, time.January, 8)
	// Window opens one week into a biweekly cycle; the off-cycle Monday
	// 2024-01-15 must not be produced.
	dates := ExpandDates(start, nil, 2, date(2024, time.January, 9), date(2024, time.February, 5))
	assert.Equal(t, []time.Time{
		date(2024, time.January, 22),
		date(2024, time.February, 5),
	}, dates)
}

func TestExpandDatesClampsWindowStart(t *testing.T) {
	start := date(2024, time.January, 1)
	dates := ExpandDates(start, nil, 1, date(2024, time.January, 10), date(2024, time.January, 31))
	require.NotEmpty(t, dates)
	assert.Equal(t, date(2024, time.January, 15), dates[0])
	for _, d := range dates {
		assert.Equal(t, 1, ISOWeekday(d))
	}
}

func TestDatesIntersect(t *testing.T) {
	a := []time.Time{date(2024, time.January, 8), date(2024, time.January, 22)}
	b := []time.Time{date(2024, time.January, 15), date(2024, time.January, 22)}
	assert.True(t, DatesIntersect(a, b))
	assert.False(t, DatesIntersect(a, []time.Time{date(2024, time.January, 15)}))
	assert.False(t, DatesIntersect(nil, b))
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 1, ISOWeekday(date(2024, time.January, 8)))
	assert.Equal(t, 7, ISOWeekday(date(2024, time.January, 7)))
}
