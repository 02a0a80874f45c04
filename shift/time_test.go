package shift_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/shift"
)

func TestParseDay(t *testing.T) {
	d, err := shift.ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Thursday, d.Weekday())

	for _, bad := range []string{"", "2024-02-30", "03/14/2024", "2024-3-1"} {
		_, err := shift.ParseDay(bad)
		assert.ErrorIs(t, err, shift.ErrInvalidDate, bad)
	}
}

func TestEachDay(t *testing.T) {
	from := shift.MustParseDay("2024-02-28")
	days := shift.EachDay(from, shift.MustParseDay("2024-03-01"))

	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-29", days[1].String())
	assert.Equal(t, "2024-03-01", days[2].String())

	assert.Len(t, shift.EachDay(from, from), 1)
	assert.Nil(t, shift.EachDay(from, from.AddDays(-1)))
}

func TestDay_IsWeekend(t *testing.T) {
	assert.True(t, shift.MustParseDay("2024-03-16").IsWeekend())
	assert.True(t, shift.MustParseDay("2024-03-17").IsWeekend())
	assert.False(t, shift.MustParseDay("2024-03-18").IsWeekend())
}

func TestParseClock(t *testing.T) {
	c, err := shift.ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Hour())
	assert.Equal(t, 5, c.Minute())
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"", "24:00", "7:60", "noon", "08:00:00"} {
		_, err := shift.ParseClock(bad)
		assert.ErrorIs(t, err, shift.ErrInvalidClock, bad)
	}
}
