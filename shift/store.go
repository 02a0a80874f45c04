/*
store.go - Persistence contracts for schedules and attendance

PURPOSE:
  Defines the boundary between reconciliation/ingestion logic and the
  database. The engine never issues SQL; it reads through ScheduleReader and
  writes through StatusWriter.

KEY INTERFACES:
  ScheduleReader:  Schedules + attendance for one employee/day, employees on a day
  StatusWriter:    Apply one schedule status transition
  Store:           ScheduleReader + StatusWriter (what reconcile.Engine needs)
  AttendanceStore: Upsert attendance rows produced by ingestion or the clock
  ScheduleStore:   Schedule CRUD used by the API
  EmployeeStore:   Employee identity used by import
  ImportRunStore:  Upload audit trail

WRITE CONTRACT:
  UpdateScheduleStatus is only called for actual transitions and carries a
  status-updated timestamp and the auto-computed flag. Stores apply it as
  last-write-wins; reconciliation idempotence makes retries safe.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - shift/store/memory.go: In-memory for testing
*/
package shift

import "context"

// ScheduleReader is the read side consumed by reconciliation.
type ScheduleReader interface {
	// SchedulesFor returns the employee's schedules on day, in creation order.
	SchedulesFor(ctx context.Context, employeeID string, day Day) ([]Schedule, error)

	// AttendanceFor returns the employee's attendance rows on day, in insertion order.
	AttendanceFor(ctx context.Context, employeeID string, day Day) ([]AttendanceRecord, error)

	// EmployeesScheduledOn returns the distinct employees with any schedule on day.
	EmployeesScheduledOn(ctx context.Context, day Day) ([]string, error)
}

// StatusWriter is the write side produced by reconciliation.
type StatusWriter interface {
	UpdateScheduleStatus(ctx context.Context, update StatusUpdate) error
}

// Store is everything reconcile.Engine needs.
type Store interface {
	ScheduleReader
	StatusWriter
}

// AttendanceStore persists attendance rows.
type AttendanceStore interface {
	// UpsertAttendance merges rec into the row keyed by (EmployeeID, Date).
	// Non-nil times and schedule links overwrite, nil values keep what is stored.
	// Returns the stored row.
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)
}

// ScheduleStore persists schedules.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListSchedules(ctx context.Context, from, to Day) ([]Schedule, error)
}

// EmployeeStore persists employees.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
}

// ImportRunStore records uploads.
type ImportRunStore interface {
	SaveImportRun(ctx context.Context, run ImportRun) error
	// ListImportRuns returns the most recent runs first; limit <= 0 means all.
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)
}
