/*
Package attendance turns parsed uploads and clock events into stored
attendance rows.

PURPOSE:
  ingest.Parse produces ParsedRecords without touching storage. Importer
  persists them: one attendance row per employee and day, linked to that
  day's first schedule, with unknown employees created on the fly.
  Recorder handles single check-in/check-out events and reconciles the
  affected schedule immediately.

MERGE RULE:
  Rows are upserted by (employee, date). A later row for the same key fills
  whichever time it carries and keeps the other. Clock exports often split
  IN and OUT punches across rows, so this is the normal case.

SEE ALSO:
  - ingest/ingest.go: Parse
  - reconcile/engine.go: ReconcileDate, ReconcileEvent
*/
package attendance

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/shift"
)

// Sources written to AttendanceRecord.Source.
const (
	SourceImport = "import"
	SourceClock  = "clock"
)

// Store is what the importer and recorder need.
type Store interface {
	shift.ScheduleReader
	shift.AttendanceStore
	shift.EmployeeStore
}

// ImportSummary reports what an import stored.
type ImportSummary struct {
	RunID            string   `json:"runId,omitempty"`
	Imported         int      `json:"imported"`
	Linked           int      `json:"linked"`
	EmployeesCreated int      `json:"employeesCreated"`
	Dates            []string `json:"dates"`
	Warnings         []string `json:"warnings"`
}

// Importer persists parse results.
type Importer struct {
	Store Store
	Runs  shift.ImportRunStore // optional
	Now   func() time.Time
}

// NewImporter creates an importer. runs may be nil.
func NewImporter(store Store, runs shift.ImportRunStore) *Importer {
	return &Importer{Store: store, Runs: runs, Now: time.Now}
}

func (im *Importer) now() time.Time {
	if im.Now == nil {
		return time.Now()
	}
	return im.Now()
}

// Import stores every record of result. source names the uploaded file.
// A store failure aborts the import; rows stored before it remain.
func (im *Importer) Import(ctx context.Context, result *ingest.ParseResult, source string) (ImportSummary, error) {
	startedAt := im.now()
	summary := ImportSummary{Dates: []string{}, Warnings: []string{}}

	for _, w := range result.Warnings {
		log.Printf("[Import] %s: skipped %s", source, w)
		summary.Warnings = append(summary.Warnings, w.String())
	}

	known := make(map[string]bool)
	dates := make(map[string]bool)
	for _, rec := range result.Records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		day, err := shift.ParseDay(rec.Date)
		if err != nil {
			return summary, fmt.Errorf("row %d: %w", rec.OriginalRow, err)
		}

		if !known[rec.EmployeeID] {
			created, err := im.ensureEmployee(ctx, rec)
			if err != nil {
				return summary, fmt.Errorf("row %d: %w", rec.OriginalRow, err)
			}
			if created {
				summary.EmployeesCreated++
			}
			known[rec.EmployeeID] = true
		}

		linked, err := im.store(ctx, rec, day)
		if err != nil {
			return summary, fmt.Errorf("row %d: %w", rec.OriginalRow, err)
		}
		summary.Imported++
		if linked {
			summary.Linked++
		}
		dates[rec.Date] = true
	}

	for d := range dates {
		summary.Dates = append(summary.Dates, d)
	}
	sort.Strings(summary.Dates)

	if im.Runs != nil {
		run := shift.ImportRun{
			ID:          uuid.NewString(),
			FileName:    source,
			FileType:    string(result.Metadata.FileType),
			TotalRows:   result.TotalRows,
			Parsed:      len(result.Records),
			Skipped:     len(result.Warnings),
			Imported:    summary.Imported,
			StartedAt:   startedAt,
			CompletedAt: im.now(),
		}
		if err := im.Runs.SaveImportRun(ctx, run); err != nil {
			return summary, fmt.Errorf("save import run: %w", err)
		}
		summary.RunID = run.ID
	}

	log.Printf("[Import] %s: %d stored, %d linked, %d new employees, %d warnings",
		source, summary.Imported, summary.Linked, summary.EmployeesCreated, len(summary.Warnings))
	return summary, nil
}

func (im *Importer) ensureEmployee(ctx context.Context, rec ingest.ParsedRecord) (bool, error) {
	existing, err := im.Store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	name := rec.EmployeeName
	if name == "" {
		name = rec.EmployeeID
	}
	e := shift.Employee{ID: rec.EmployeeID, Name: name, CreatedAt: im.now()}
	if rec.Department != nil {
		e.Department = *rec.Department
	}
	if err := im.Store.SaveEmployee(ctx, e); err != nil {
		return false, err
	}
	return true, nil
}

// store upserts rec and reports whether it was linked to a schedule.
func (im *Importer) store(ctx context.Context, rec ingest.ParsedRecord, day shift.Day) (bool, error) {
	scheduleID, err := firstScheduleID(ctx, im.Store, rec.EmployeeID, day)
	if err != nil {
		return false, err
	}

	row := shift.AttendanceRecord{
		EmployeeID:   rec.EmployeeID,
		Date:         day,
		CheckInTime:  rec.TimeIn,
		CheckOutTime: rec.TimeOut,
		ScheduleID:   scheduleID,
		Source:       SourceImport,
	}
	if rec.Department != nil {
		row.Department = *rec.Department
	}
	if _, err := im.Store.UpsertAttendance(ctx, row); err != nil {
		return false, err
	}
	return scheduleID != nil, nil
}

// firstScheduleID returns the id of the employee's first schedule on day, or nil.
func firstScheduleID(ctx context.Context, r shift.ScheduleReader, employeeID string, day shift.Day) (*string, error) {
	schedules, err := r.SchedulesFor(ctx, employeeID, day)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, nil
	}
	id := schedules[0].ID
	return &id, nil
}
