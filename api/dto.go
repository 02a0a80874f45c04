/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the store records from the external API contract. Parse results and
  reconciliation summaries are returned as the domain packages define them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employees:      EmployeeDTO, CreateEmployeeRequest
  Schedules:      ScheduleDTO, CreateScheduleRequest
  Attendance:     AttendanceDTO, CheckRequest, CheckResponse
  Imports:        ImportResponse, ImportRunDTO
  Reconciliation: ReconcileDateRequest, ReconcileRangeRequest,
                  ReconcileEmployeeRequest, ReconciliationRunDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

func toEmployeeDTO(e shift.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: e.ID, Name: e.Name, Department: e.Department}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ScheduleDTO represents a schedule in API responses.
type ScheduleDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employeeId"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Status          string `json:"status"`
	Department      string `json:"department,omitempty"`
	StatusUpdatedAt string `json:"statusUpdatedAt,omitempty"`
	AutoComputed    bool   `json:"autoComputed"`
}

// CreateScheduleRequest creates or replaces a schedule. ID and Status are optional.
type CreateScheduleRequest struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Status     string `json:"status"`
	Department string `json:"department"`
}

func toScheduleDTO(s shift.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:           s.ID,
		EmployeeID:   s.EmployeeID,
		Date:         s.Date.String(),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Status:       string(s.Status),
		Department:   s.Department,
		AutoComputed: s.AutoComputed,
	}
	if s.StatusUpdatedAt != nil {
		dto.StatusUpdatedAt = s.StatusUpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceDTO represents a stored attendance row.
type AttendanceDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employeeId"`
	Date         string  `json:"date"`
	CheckInTime  *string `json:"checkInTime"`
	CheckOutTime *string `json:"checkOutTime"`
	ScheduleID   *string `json:"scheduleId,omitempty"`
	Department   string  `json:"department,omitempty"`
	Source       string  `json:"source,omitempty"`
}

func toAttendanceDTO(r shift.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		Date:         r.Date.String(),
		CheckInTime:  r.CheckInTime,
		CheckOutTime: r.CheckOutTime,
		ScheduleID:   r.ScheduleID,
		Department:   r.Department,
		Source:       r.Source,
	}
}

// CheckRequest records a check-in or check-out. Date defaults to today and
// Time to the current minute.
type CheckRequest struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// CheckResponse is the stored row plus the status changes it caused.
type CheckResponse struct {
	Attendance AttendanceDTO      `json:"attendance"`
	Changes    []reconcile.Result `json:"changes"`
}

// =============================================================================
// IMPORTS
// =============================================================================

// ImportResponse reports one upload: what was parsed, what was skipped,
// what was stored and, when requested, what reconciliation changed.
type ImportResponse struct {
	FileName       string                   `json:"fileName"`
	TotalRows      int                      `json:"totalRows"`
	ParsedCount    int                      `json:"parsedCount"`
	Headers        []string                 `json:"headers"`
	Records        []ingest.ParsedRecord    `json:"records"`
	Warnings       []ingest.RowWarning      `json:"warnings"`
	Metadata       ingest.Metadata          `json:"metadata"`
	Import         attendance.ImportSummary `json:"import"`
	Reconciliation *reconcile.Summary       `json:"reconciliation,omitempty"`
}

// ImportRunDTO represents an import run in API responses.
type ImportRunDTO struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	TotalRows   int    `json:"totalRows"`
	Parsed      int    `json:"parsed"`
	Skipped     int    `json:"skipped"`
	Imported    int    `json:"imported"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
}

func toImportRunDTO(r shift.ImportRun) ImportRunDTO {
	return ImportRunDTO{
		ID:          r.ID,
		FileName:    r.FileName,
		FileType:    r.FileType,
		TotalRows:   r.TotalRows,
		Parsed:      r.Parsed,
		Skipped:     r.Skipped,
		Imported:    r.Imported,
		StartedAt:   r.StartedAt.Format(time.RFC3339),
		CompletedAt: r.CompletedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileDateRequest reconciles one day. Empty EmployeeIDs means everyone scheduled.
type ReconcileDateRequest struct {
	Date        string   `json:"date"`
	EmployeeIDs []string `json:"employeeIds"`
}

// ReconcileRangeRequest reconciles every day in [From, To].
type ReconcileRangeRequest struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	EmployeeIDs []string `json:"employeeIds"`
}

// ReconcileEmployeeRequest reconciles one employee on one day.
type ReconcileEmployeeRequest struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
}

// ReconciliationRunDTO represents a reconciliation run in API responses.
type ReconciliationRunDTO struct {
	ID             string   `json:"id"`
	Trigger        string   `json:"trigger"`
	DateFrom       string   `json:"dateFrom"`
	DateTo         string   `json:"dateTo"`
	Status         string   `json:"status"`
	TotalProcessed int      `json:"totalProcessed"`
	StatusChanges  int      `json:"statusChanges"`
	Errors         []string `json:"errors,omitempty"`
	Error          string   `json:"error,omitempty"`
	CompletedAt    string   `json:"completedAt,omitempty"`
}

func toRunDTO(run sqlite.ReconciliationRun) ReconciliationRunDTO {
	dto := ReconciliationRunDTO{
		ID:             run.ID,
		Trigger:        run.Trigger,
		DateFrom:       run.DateFrom.String(),
		DateTo:         run.DateTo.String(),
		Status:         run.Status,
		TotalProcessed: run.TotalProcessed,
		StatusChanges:  run.StatusChanges,
		Errors:         run.Errors,
		Error:          run.Error,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
