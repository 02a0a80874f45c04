/*
status.go - Schedule status decision

PURPOSE:
  ComputeStatus is the pure core of reconciliation: given one schedule and
  the attendance rows read for its employee and day, it decides what the
  schedule's status should be and why. It never touches the store.

DECISION TABLE (first relevant record wins):
  no relevant record        -> no-show
  check-in and check-out    -> completed
  check-in only             -> checked-in
  check-out only            -> pending   (data anomaly)
  neither                   -> pending

  "confirmed" is a planning status and is never produced here.

RELEVANCE:
  A record is relevant when it is linked to the schedule by ScheduleID, or
  when it matches the schedule's employee and day (covers rows imported
  before the schedule existed).
*/
package reconcile

import (
	"github.com/warp/attendance-engine/shift"
)

// Reasons attached to each decision.
const (
	ReasonNoAttendance = "No attendance recorded for scheduled shift"
	ReasonCompleted    = "Employee checked in and out successfully"
	ReasonCheckedIn    = "Employee checked in but has not checked out yet"
	ReasonOutWithoutIn = "Employee checked out without checking in (data anomaly)"
	ReasonNoTimes      = "Attendance record exists but no check-in/out times"
)

// AttendanceSummary describes the attendance a decision was based on.
type AttendanceSummary struct {
	RecordCount int                 `json:"recordCount"`
	CheckIn     *string             `json:"checkIn,omitempty"`
	CheckOut    *string             `json:"checkOut,omitempty"`
	Labor       *shift.LaborMetrics `json:"labor,omitempty"`
}

// Decision is the computed status for one schedule.
type Decision struct {
	Status  shift.Status
	Reason  string
	Summary AttendanceSummary
}

// ComputeStatus decides the status of s from records using the default labor rules.
func ComputeStatus(s shift.Schedule, records []shift.AttendanceRecord) Decision {
	return computeStatus(s, records, shift.DefaultLaborRules)
}

func computeStatus(s shift.Schedule, records []shift.AttendanceRecord, rules shift.LaborRules) Decision {
	relevant := relevantRecords(s, records)
	if len(relevant) == 0 {
		return Decision{Status: shift.StatusNoShow, Reason: ReasonNoAttendance}
	}

	primary := relevant[0]
	summary := AttendanceSummary{
		RecordCount: len(relevant),
		CheckIn:     primary.CheckInTime,
		CheckOut:    primary.CheckOutTime,
	}

	switch {
	case primary.HasCheckIn() && primary.HasCheckOut():
		summary.Labor = laborFor(s, primary, rules)
		return Decision{Status: shift.StatusCompleted, Reason: ReasonCompleted, Summary: summary}
	case primary.HasCheckIn():
		return Decision{Status: shift.StatusCheckedIn, Reason: ReasonCheckedIn, Summary: summary}
	case primary.HasCheckOut():
		return Decision{Status: shift.StatusPending, Reason: ReasonOutWithoutIn, Summary: summary}
	default:
		return Decision{Status: shift.StatusPending, Reason: ReasonNoTimes, Summary: summary}
	}
}

func relevantRecords(s shift.Schedule, records []shift.AttendanceRecord) []shift.AttendanceRecord {
	var out []shift.AttendanceRecord
	for _, r := range records {
		linked := r.ScheduleID != nil && *r.ScheduleID == s.ID
		if linked || (r.EmployeeID == s.EmployeeID && r.Date.Equal(s.Date)) {
			out = append(out, r)
		}
	}
	return out
}

// laborFor returns nil when either time is not a valid clock value.
func laborFor(s shift.Schedule, r shift.AttendanceRecord, rules shift.LaborRules) *shift.LaborMetrics {
	in, err := shift.ParseClock(*r.CheckInTime)
	if err != nil {
		return nil
	}
	out, err := shift.ParseClock(*r.CheckOutTime)
	if err != nil {
		return nil
	}
	m := shift.ComputeLabor(s.Date, in, out, s.StartTime, s.EndTime, rules)
	return &m
}
