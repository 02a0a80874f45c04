/*
Package shift holds the scheduling domain shared by ingestion, reconciliation
and persistence.

PURPOSE:
  A Schedule is a planned shift for one employee on one day. An
  AttendanceRecord is what the time clock observed for that employee and day.
  Reconciliation compares the two and moves the schedule through its
  lifecycle statuses.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: Schedule lifecycle (pending, confirmed, checked-in, completed, no-show)
  - Schedule: Planned shift, owned by the store
  - AttendanceRecord: Observed check-in/check-out, optionally linked to a schedule
  - StatusUpdate: The only write reconciliation asks the store to perform
  - ImportRun: Audit record of one upload

SEE ALSO:
  - time.go: Day and Clock value types
  - store.go: Read/write contracts consumed by reconcile and attendance
  - labor.go: Derived labor hours
*/
package shift

import "time"

// =============================================================================
// STATUS - Schedule lifecycle
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked-in"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// =============================================================================
// SCHEDULE / ATTENDANCE
// =============================================================================

// Schedule is a planned shift assignment.
type Schedule struct {
	ID         string
	EmployeeID string
	Date       Day
	StartTime  string // HH:MM
	EndTime    string // HH:MM
	Status     Status
	Department string

	StatusUpdatedAt *time.Time
	AutoComputed    bool
}

// AttendanceRecord is an observed check-in and/or check-out.
// Times are normalized "HH:MM" strings; nil means not observed.
type AttendanceRecord struct {
	ID           string
	EmployeeID   string
	Date         Day
	CheckInTime  *string
	CheckOutTime *string
	ScheduleID   *string
	Department   string
	Source       string // "import", "clock", "manual"
}

// HasCheckIn reports whether a non-empty check-in time is present.
func (r AttendanceRecord) HasCheckIn() bool { return r.CheckInTime != nil && *r.CheckInTime != "" }

// HasCheckOut reports whether a non-empty check-out time is present.
func (r AttendanceRecord) HasCheckOut() bool { return r.CheckOutTime != nil && *r.CheckOutTime != "" }

// StatusUpdate instructs the store to move a schedule to a new status.
type StatusUpdate struct {
	ScheduleID   string
	Status       Status
	UpdatedAt    time.Time
	AutoComputed bool
}

// Employee is the minimal identity the engine needs.
type Employee struct {
	ID         string
	Name       string
	Department string
	CreatedAt  time.Time
}

// ImportRun records one attendance upload.
type ImportRun struct {
	ID          string
	FileName    string
	FileType    string
	TotalRows   int
	Parsed      int
	Skipped     int
	Imported    int
	StartedAt   time.Time
	CompletedAt time.Time
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
