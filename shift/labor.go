/*
labor.go - Derived labor hours for a worked shift

PURPOSE:
  Splits the time between check-in and check-out into regular, overtime,
  night and weekend hours. Values are decimal hours rounded to 2 places.

RULES:
  - Check-out at or before check-in means the shift crossed midnight.
  - Regular hours are capped by the scheduled shift length, or by
    DailyRegularHours when no usable schedule window is known.
  - Night hours are the overlap with the night window (default 22:00-06:00).
  - Weekend hours are minutes that fall on a Saturday or Sunday calendar day.
*/
package shift

import (
	"github.com/shopspring/decimal"
)

type LaborRules struct {
	DailyRegularHours decimal.Decimal
	NightStart        Clock
	NightEnd          Clock
}

var DefaultLaborRules = LaborRules{
	DailyRegularHours: decimal.NewFromInt(8),
	NightStart:        NewClock(22, 0),
	NightEnd:          NewClock(6, 0),
}

type LaborMetrics struct {
	Worked   decimal.Decimal `json:"worked"`
	Regular  decimal.Decimal `json:"regular"`
	Overtime decimal.Decimal `json:"overtime"`
	Night    decimal.Decimal `json:"night"`
	Weekend  decimal.Decimal `json:"weekend"`
}

// ComputeLabor derives labor hours for a shift worked on day.
// scheduledStart/scheduledEnd may be empty.
func ComputeLabor(day Day, checkIn, checkOut Clock, scheduledStart, scheduledEnd string, rules LaborRules) LaborMetrics {
	start := int(checkIn)
	end := int(checkOut)
	if end <= start {
		end += MinutesPerDay
	}
	worked := end - start

	regularCap := int(rules.DailyRegularHours.Mul(decimal.NewFromInt(60)).IntPart())
	if length, ok := scheduledLength(scheduledStart, scheduledEnd); ok {
		regularCap = length
	}
	regular := min(worked, regularCap)

	weekend := 0
	if day.IsWeekend() {
		weekend += overlap(start, end, 0, MinutesPerDay)
	}
	if day.AddDays(1).IsWeekend() {
		weekend += overlap(start, end, MinutesPerDay, 2*MinutesPerDay)
	}

	return LaborMetrics{
		Worked:   hours(worked),
		Regular:  hours(regular),
		Overtime: hours(worked - regular),
		Night:    hours(nightMinutes(start, end, rules)),
		Weekend:  hours(weekend),
	}
}

func scheduledLength(start, end string) (int, bool) {
	if start == "" || end == "" {
		return 0, false
	}
	s, err := ParseClock(start)
	if err != nil {
		return 0, false
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, false
	}
	length := int(e) - int(s)
	if length <= 0 {
		length += MinutesPerDay
	}
	return length, true
}

// nightMinutes sums overlap of [start,end) with the night window on the
// previous, current and next calendar day.
func nightMinutes(start, end int, rules LaborRules) int {
	ns, ne := int(rules.NightStart), int(rules.NightEnd)
	total := 0
	for k := -1; k <= 1; k++ {
		base := k * MinutesPerDay
		if ns > ne {
			total += overlap(start, end, base+ns, base+MinutesPerDay+ne)
		} else {
			total += overlap(start, end, base+ns, base+ne)
		}
	}
	return total
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}
