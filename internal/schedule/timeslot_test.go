package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSlotsEmptyYieldsFullWeek(t *testing.T) {
	raw, err := EncodeSlots(nil)
	require.NoError(t, err)
	assert.Equal(t, FullWeek, raw)
}

func TestFullWeekSentinelFixedPoint(t *testing.T) {
	slots, err := DecodeSlots(FullWeek)
	require.NoError(t, err)
	require.Equal(t, []TimeSlot{{Weekday: 1, Start: "00:00", End: "00:00"}}, slots)
	assert.True(t, IsUnconstrained(slots))

	raw, err := EncodeSlots(slots)
	require.NoError(t, err)
	assert.Equal(t, FullWeek, raw)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	slots := []TimeSlot{
		{Weekday: 3, Start: "14:30", End: "16:00"},
		{Weekday: 1, Start: "09:00", End: "10:00"},
		{Weekday: 5, Start: "08:00", End: "24:00"},
	}
	raw, err := EncodeSlots(slots)
	require.NoError(t, err)

	decoded, err := DecodeSlots(raw)
	require.NoError(t, err)
	assert.ElementsMatch(t, slots, decoded)
	assert.False(t, IsUnconstrained(decoded))
}

func TestEncodeSlotsAnchorsToReferenceWeek(t *testing.T) {
	raw, err := EncodeSlots([]TimeSlot{{Weekday: 2, Start: "09:00", End: "10:30"}})
	require.NoError(t, err)
	assert.Equal(t, "{[2001-01-02 09:00,2001-01-02 10:30)}", raw)
}

func TestEncodeSlotsMidnightEndUsesNextDayAnchor(t *testing.T) {
	raw, err := EncodeSlots([]TimeSlot{{Weekday: 5, Start: "20:00", End: "24:00"}})
	require.NoError(t, err)
	assert.Equal(t, "{[2001-01-05 20:00,2001-01-06 00:00)}", raw)

	decoded, err := DecodeSlots(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "24:00", decoded[0].End)
}

func TestEncodeSlotsRejectsInvalidInput(t *testing.T) {
	cases := []TimeSlot{
		{Weekday: 6, Start: "09:00", End: "10:00"},
		{Weekday: 0, Start: "09:00", End: "10:00"},
		{Weekday: 2, Start: "10:00", End: "09:00"},
		{Weekday: 2, Start: "10:00", End: "10:00"},
		{Weekday: 2, Start: "25:00", End: "26:00"},
	}
	for _, slot := range cases {
		_, err := EncodeSlots([]TimeSlot{slot})
		assert.Error(t, err, "slot %+v", slot)
	}
}

func TestDecodeSlotsRejectsMalformedLiteral(t *testing.T) {
	for _, raw := range []string{"", "{}", "not a set", "{[2001-01-01 10:00,2001-01-01 09:00)}"} {
		_, err := DecodeSlots(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, minutes)

	_, err = ParseClock("24:30")
	assert.Error(t, err)

	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "24:00", FormatClock(1440))
}
