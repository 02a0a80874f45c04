/*
Package sqlite provides a SQLite-backed implementation of the shift storage interfaces.

PURPOSE:
  Persists employees, schedules, attendance rows and the audit trail of
  imports and reconciliation runs. In production the same patterns apply to
  PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  shift.Store:          Schedule reads + status writes (reconcile.Engine)
  shift.AttendanceStore: Attendance upserts
  shift.ScheduleStore:   Schedule CRUD
  shift.EmployeeStore:   Employees
  shift.ImportRunStore:  Upload audit

KEY TABLES:
  employees:           Identity, auto-created by imports
  schedules:           Planned shifts and their lifecycle status
  attendance:          One row per (employee_id, date), merged on upsert
  import_runs:         One row per upload
  reconciliation_runs: Manual and scheduled reconciliation audit

DATES:
  Calendar days are stored as "YYYY-MM-DD" text so equality and range
  queries work on the column directly. Timestamps are RFC3339 UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The pool is capped at one connection
  so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := reconcile.NewEngine(store)

SEE ALSO:
  - shift/store.go: Interface definitions
  - shift/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/shift"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT,
		created_at TEXT NOT NULL
	);

	-- Schedules (planned shifts)
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		department TEXT,
		status_updated_at TEXT,
		auto_computed BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Hot path: reconciliation reads by employee + day
	CREATE INDEX IF NOT EXISTS idx_schedules_employee_date
		ON schedules(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_schedules_date
		ON schedules(date);

	-- Attendance (one row per employee per day)
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in_time TEXT,
		check_out_time TEXT,
		schedule_id TEXT,
		department TEXT,
		source TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_schedule
		ON attendance(schedule_id) WHERE schedule_id IS NOT NULL;

	-- Import runs (upload audit)
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		total_rows INTEGER NOT NULL DEFAULT 0,
		parsed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		imported INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	-- Reconciliation runs (manual and scheduled)
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL,
		date_from TEXT NOT NULL,
		date_to TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_processed INTEGER DEFAULT 0,
		status_changes INTEGER DEFAULT 0,
		errors_json TEXT,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_status
		ON reconciliation_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE STORE (shift.ScheduleStore, shift.Store)
// =============================================================================

const scheduleColumns = `id, employee_id, date, start_time, end_time, status, department,
	status_updated_at, auto_computed`

// SaveSchedule inserts or replaces a schedule. Creation order is preserved.
func (s *Store) SaveSchedule(ctx context.Context, sch shift.Schedule) error {
	if !sch.Status.Valid() {
		return fmt.Errorf("%w: %q", shift.ErrInvalidStatus, sch.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schedules (id, employee_id, date, start_time, end_time, status, department,
			status_updated_at, auto_computed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			department = excluded.department,
			status_updated_at = excluded.status_updated_at,
			auto_computed = excluded.auto_computed
	`

	_, err := s.db.ExecContext(ctx, query,
		sch.ID, sch.EmployeeID, sch.Date.String(), sch.StartTime, sch.EndTime,
		string(sch.Status), nullString(sch.Department),
		nullTime(sch.StatusUpdatedAt), sch.AutoComputed,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// GetSchedule returns the schedule or nil when it does not exist.
func (s *Store) GetSchedule(ctx context.Context, id string) (*shift.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules, err := s.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	if err != nil || len(schedules) == 0 {
		return nil, err
	}
	return &schedules[0], nil
}

// ListSchedules returns schedules with from <= date <= to.
func (s *Store) ListSchedules(ctx context.Context, from, to shift.Day) ([]shift.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE date >= ? AND date <= ? ORDER BY date, rowid",
		from.String(), to.String())
}

// SchedulesFor returns the employee's schedules on day in creation order.
func (s *Store) SchedulesFor(ctx context.Context, employeeID string, day shift.Day) ([]shift.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE employee_id = ? AND date = ? ORDER BY rowid",
		employeeID, day.String())
}

// EmployeesScheduledOn returns distinct employees with a schedule on day.
func (s *Store) EmployeesScheduledOn(ctx context.Context, day shift.Day) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT employee_id FROM schedules WHERE date = ? ORDER BY employee_id",
		day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateScheduleStatus applies one transition. Last write wins.
func (s *Store) UpdateScheduleStatus(ctx context.Context, u shift.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE schedules SET status = ?, status_updated_at = ?, auto_computed = ? WHERE id = ?",
		string(u.Status), u.UpdatedAt.UTC().Format(time.RFC3339Nano), u.AutoComputed, u.ScheduleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &shift.NotFoundError{Kind: "schedule", ID: u.ScheduleID}
	}
	return nil
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]shift.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []shift.Schedule
	for rows.Next() {
		var sch shift.Schedule
		var date, status string
		var department, updatedAt sql.NullString
		if err := rows.Scan(&sch.ID, &sch.EmployeeID, &date, &sch.StartTime, &sch.EndTime,
			&status, &department, &updatedAt, &sch.AutoComputed); err != nil {
			return nil, err
		}
		sch.Date, err = shift.ParseDay(date)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sch.ID, err)
		}
		sch.Status = shift.Status(status)
		sch.Department = department.String
		sch.StatusUpdatedAt = parseNullTime(updatedAt)
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

// =============================================================================
// ATTENDANCE STORE (shift.AttendanceStore)
// =============================================================================

const attendanceColumns = `id, employee_id, date, check_in_time, check_out_time, schedule_id,
	department, source`

// UpsertAttendance merges rec into the (employee_id, date) row.
// Non-nil times and schedule links overwrite; nil keeps the stored value.
func (s *Store) UpsertAttendance(ctx context.Context, rec shift.AttendanceRecord) (shift.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO attendance (id, employee_id, date, check_in_time, check_out_time, schedule_id,
			department, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			check_in_time = COALESCE(excluded.check_in_time, attendance.check_in_time),
			check_out_time = COALESCE(excluded.check_out_time, attendance.check_out_time),
			schedule_id = COALESCE(excluded.schedule_id, attendance.schedule_id),
			department = COALESCE(excluded.department, attendance.department),
			source = COALESCE(excluded.source, attendance.source),
			updated_at = excluded.updated_at
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return shift.AttendanceRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.EmployeeID, rec.Date.String(),
		rec.CheckInTime, rec.CheckOutTime, rec.ScheduleID,
		nullString(rec.Department), nullString(rec.Source),
		now, now,
	)
	if err != nil {
		return shift.AttendanceRecord{}, fmt.Errorf("failed to upsert attendance: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE employee_id = ? AND date = ?",
		rec.EmployeeID, rec.Date.String())
	if err != nil {
		return shift.AttendanceRecord{}, err
	}
	stored, err := scanAttendance(rows)
	if err != nil {
		return shift.AttendanceRecord{}, err
	}
	if len(stored) != 1 {
		return shift.AttendanceRecord{}, fmt.Errorf("attendance %s/%s: expected one row after upsert, got %d",
			rec.EmployeeID, rec.Date, len(stored))
	}

	if err := tx.Commit(); err != nil {
		return shift.AttendanceRecord{}, err
	}
	return stored[0], nil
}

// AttendanceFor returns the employee's attendance on day.
func (s *Store) AttendanceFor(ctx context.Context, employeeID string, day shift.Day) ([]shift.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE employee_id = ? AND date = ? ORDER BY rowid",
		employeeID, day.String())
	if err != nil {
		return nil, err
	}
	return scanAttendance(rows)
}

// ListAttendance returns the employee's attendance with from <= date <= to.
func (s *Store) ListAttendance(ctx context.Context, employeeID string, from, to shift.Day) ([]shift.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE employee_id = ? AND date >= ? AND date <= ? ORDER BY date",
		employeeID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	return scanAttendance(rows)
}

// scanAttendance reads and closes rows.
func scanAttendance(rows *sql.Rows) ([]shift.AttendanceRecord, error) {
	defer rows.Close()

	var records []shift.AttendanceRecord
	for rows.Next() {
		var r shift.AttendanceRecord
		var date string
		var checkIn, checkOut, scheduleID, department, source sql.NullString
		if err := rows.Scan(&r.ID, &r.EmployeeID, &date, &checkIn, &checkOut, &scheduleID,
			&department, &source); err != nil {
			return nil, err
		}
		day, err := shift.ParseDay(date)
		if err != nil {
			return nil, fmt.Errorf("attendance %s: %w", r.ID, err)
		}
		r.Date = day
		r.CheckInTime = stringPtr(checkIn)
		r.CheckOutTime = stringPtr(checkOut)
		r.ScheduleID = stringPtr(scheduleID)
		r.Department = department.String
		r.Source = source.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// EMPLOYEE STORE (shift.EmployeeStore)
// =============================================================================

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp shift.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO employees (id, name, department, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.Department),
		createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee by ID, or nil.
func (s *Store) GetEmployee(ctx context.Context, id string) (*shift.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp shift.Employee
	var department sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, department, created_at FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &department, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emp.Department = department.String
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]shift.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, department, created_at FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []shift.Employee
	for rows.Next() {
		var emp shift.Employee
		var department sql.NullString
		var createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &department, &createdAt); err != nil {
			return nil, err
		}
		emp.Department = department.String
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// IMPORT RUNS (shift.ImportRunStore)
// =============================================================================

// SaveImportRun records an upload.
func (s *Store) SaveImportRun(ctx context.Context, r shift.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, file_name, file_type, total_rows, parsed, skipped, imported,
			started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.FileName, r.FileType, r.TotalRows, r.Parsed, r.Skipped, r.Imported,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListImportRuns returns the most recent runs first; limit <= 0 means all.
func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]shift.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, file_type, total_rows, parsed, skipped, imported, started_at, completed_at
		FROM import_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []shift.ImportRun
	for rows.Next() {
		var r shift.ImportRun
		var startedAt, completedAt string
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileType, &r.TotalRows, &r.Parsed, &r.Skipped,
			&r.Imported, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// Run triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerImport    = "import"
)

// ReconciliationRun is the audit record of one batch reconciliation.
type ReconciliationRun struct {
	ID             string
	Trigger        string
	DateFrom       shift.Day
	DateTo         shift.Day
	Status         string // running, completed, failed
	TotalProcessed int
	StatusChanges  int
	Errors         []string
	Error          string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// SaveReconciliationRun inserts or updates a reconciliation run.
func (s *Store) SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reconciliation_runs (id, run_trigger, date_from, date_to, status,
			total_processed, status_changes, errors_json, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total_processed = excluded.total_processed,
			status_changes = excluded.status_changes,
			errors_json = excluded.errors_json,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.Trigger, r.DateFrom.String(), r.DateTo.String(), r.Status,
		r.TotalProcessed, r.StatusChanges, string(errorsJSON), nullString(r.Error),
		nullTime(r.StartedAt), nullTime(r.CompletedAt), r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetReconciliationRuns returns runs, newest first, optionally filtered by status.
func (s *Store) GetReconciliationRuns(ctx context.Context, status string) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, run_trigger, date_from, date_to, status, total_processed, status_changes,
			errors_json, error, started_at, completed_at, created_at
		FROM reconciliation_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		var r ReconciliationRun
		var dateFrom, dateTo, createdAt string
		var errorsJSON, runErr, startedAt, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &r.Trigger, &dateFrom, &dateTo, &r.Status, &r.TotalProcessed, &r.StatusChanges,
			&errorsJSON, &runErr, &startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}

		r.DateFrom, _ = shift.ParseDay(dateFrom)
		r.DateTo, _ = shift.ParseDay(dateTo)
		r.Error = runErr.String
		r.StartedAt = parseNullTime(startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if errorsJSON.Valid {
			if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
				return nil, fmt.Errorf("run %s errors: %w", r.ID, err)
			}
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance", "schedules", "employees", "import_runs", "reconciliation_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
