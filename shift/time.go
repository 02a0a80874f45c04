package shift

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DAY - Calendar date without time of day
// =============================================================================

const DayLayout = "2006-01-02"

type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar date in t's location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func Today() Day { return DayOf(time.Now()) }

// ParseDay parses an ISO "YYYY-MM-DD" date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Day{Time: t}, nil
}

// MustParseDay panics on malformed input. Intended for tests and constants.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Day) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Day) IsWeekend() bool       { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (d Day) IsZero() bool          { return d.Time.IsZero() }
func (d Day) String() string        { return d.Time.Format(DayLayout) }

// DaysBetween returns the number of calendar days from -> to.
func DaysBetween(from, to Day) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// EachDay returns every day from start to end inclusive.
// An empty slice is returned when end is before start.
func EachDay(start, end Day) []Day {
	if end.Before(start) {
		return nil
	}
	days := make([]Day, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// =============================================================================
// CLOCK - Time of day in minutes since midnight
// =============================================================================

type Clock int

const MinutesPerDay = 24 * 60

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock parses a normalized "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(hour, minute), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }
