/*
normalize.go - Date and time-of-day normalization

PURPOSE:
  Time-clock exports encode dates and times in many ways. These functions
  turn one raw cell into a canonical ISO date ("YYYY-MM-DD") or 24-hour
  time ("HH:MM"). They are pure and never panic; failures come back as
  *ParseError wrapping ErrUnparsableDate / ErrUnparsableTime.

DATES (first match wins):
  1. Purely numeric            -> spreadsheet serial (1900 date system)
  2. DatePatterns, in order    -> yyyy-MM-dd, MM/dd/yyyy, dd/MM/yyyy,
                                  MM-dd-yyyy, dd-MM-yyyy, M/d/yyyy, d/M/yyyy
  3. weekdayLayouts, then dateparse -> generic calendar formats
                                  ("March 14 2024", "2024-3-14", "14-Mar-2024")
  Month-first is tried before day-first, so "03/04/2024" is March 4.

TIMES:
  1. Decimal fraction "0.375"  -> spreadsheet time-of-day fraction
     (a bare "0" is a native midnight)
  2. "8:05 AM", "08:05 PM"     -> 12-hour to 24-hour
  3. "8:05", "08:05:33"        -> zero-padded, seconds dropped
  4. "900", "1730"             -> HHMM after left-padding to 4 digits
*/
package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
)

// DatePatterns is the ordered tie-break list for textual dates.
var DatePatterns = []string{
	"2006-01-02", // yyyy-MM-dd
	"01/02/2006", // MM/dd/yyyy
	"02/01/2006", // dd/MM/yyyy
	"01-02-2006", // MM-dd-yyyy
	"02-01-2006", // dd-MM-yyyy
	"1/2/2006",   // M/d/yyyy
	"2/1/2006",   // d/M/yyyy
}

// weekdayLayouts match report dates that lead with the weekday name.
var weekdayLayouts = []string{
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon Jan 2 2006",
}

// maxSerialDate is 9999-12-31 in the 1900 date system.
const maxSerialDate = 2958465

// fractionEpsilon absorbs binary rounding in stored fractions (17:10 is
// 0.71527777... and would otherwise floor to 17:09).
const fractionEpsilon = 1e-6

var (
	numericPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	fractionPattern = regexp.MustCompile(`^(\d*\.\d+|0+)$`)
	meridiemPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?\s*([AaPp])\.?[Mm]\.?$`)
	clockPattern    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	compactPattern  = regexp.MustCompile(`^\d{3,4}$`)
)

// =============================================================================
// DATES
// =============================================================================

// ProcessDate normalizes a raw cell into "YYYY-MM-DD".
func ProcessDate(c Cell) (string, error) {
	raw, ok := c.Value()
	if !ok {
		return "", &ParseError{Field: "date", Err: ErrUnparsableDate}
	}

	if numericPattern.MatchString(raw) {
		return serialToDate(raw)
	}

	for _, layout := range DatePatterns {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	for _, layout := range weekdayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	if t, ok := parseCalendar(raw); ok {
		return t.Format("2006-01-02"), nil
	}

	return "", &ParseError{Field: "date", Value: raw, Err: ErrUnparsableDate}
}

// parseCalendar is the catch-all stage. dateparse can panic on malformed
// input, which counts as unparsable.
func parseCalendar(raw string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	t, err := dateparse.ParseIn(raw, time.UTC)
	return t, err == nil
}

// NormalizeDate is ProcessDate for plain strings.
func NormalizeDate(raw string) (string, error) { return ProcessDate(Text(raw)) }

func serialToDate(raw string) (string, error) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 1 || serial > maxSerialDate {
		return "", &ParseError{Field: "date", Value: raw, Err: ErrUnparsableDate}
	}
	t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
	if err != nil {
		return "", &ParseError{Field: "date", Value: raw, Err: ErrUnparsableDate}
	}
	return t.Format("2006-01-02"), nil
}

// =============================================================================
// TIMES
// =============================================================================

// ProcessTime normalizes a raw cell into 24-hour "HH:MM".
func ProcessTime(c Cell) (string, error) {
	raw, ok := c.Value()
	if !ok {
		return "", &ParseError{Field: "time", Err: ErrUnparsableTime}
	}
	fail := func() (string, error) {
		return "", &ParseError{Field: "time", Value: raw, Err: ErrUnparsableTime}
	}

	if fractionPattern.MatchString(raw) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fail()
		}
		frac := v - math.Floor(v)
		total := int(math.Floor(frac*24*60 + fractionEpsilon))
		return formatClock(total/60%24, total%60), nil
	}

	if m := meridiemPattern.FindStringSubmatch(raw); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 1 || hour > 12 || minute > 59 {
			return fail()
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case !pm && hour == 12:
			hour = 0
		case pm && hour != 12:
			hour += 12
		}
		return formatClock(hour, minute), nil
	}

	if m := clockPattern.FindStringSubmatch(raw); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return fail()
		}
		if m[3] != "" {
			if sec, _ := strconv.Atoi(m[3]); sec > 59 {
				return fail()
			}
		}
		return formatClock(hour, minute), nil
	}

	if compactPattern.MatchString(raw) {
		padded := strings.Repeat("0", 4-len(raw)) + raw
		hour, _ := strconv.Atoi(padded[:2])
		minute, _ := strconv.Atoi(padded[2:])
		if hour > 23 || minute > 59 {
			return fail()
		}
		return formatClock(hour, minute), nil
	}

	return fail()
}

// NormalizeTime is ProcessTime for plain strings.
func NormalizeTime(raw string) (string, error) { return ProcessTime(Text(raw)) }

func formatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
