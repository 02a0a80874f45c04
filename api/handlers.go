/*
handlers.go - HTTP API handlers for attendance ingestion and reconciliation

PURPOSE:
  Exposes ingestion, attendance recording and reconciliation via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  ingest, attendance and reconcile packages.

ENDPOINTS:
  Imports:
    POST   /api/imports                     Upload a clock export (multipart)
    GET    /api/imports                     Import history

  Employees:
    GET    /api/employees                   List employees
    POST   /api/employees                   Create employee
    GET    /api/employees/{id}              Get employee
    GET    /api/employees/{id}/attendance   Attendance rows (?date= or ?from=&to=)

  Schedules:
    GET    /api/schedules                   List (?from=&to=, default today)
    POST   /api/schedules                   Create or replace
    GET    /api/schedules/{id}              Get schedule

  Attendance:
    POST   /api/attendance/check-in         Record check-in, reconcile at once
    POST   /api/attendance/check-out        Record check-out, reconcile at once

  Reconciliation:
    POST   /api/reconciliation/date         One day
    POST   /api/reconciliation/range        Date range
    POST   /api/reconciliation/employee     One employee, one day
    GET    /api/reconciliation/runs         Run history (?status=)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Engine: Reconciliation
  - Importer / Recorder: Attendance writes
  - Profiles: Named column mappings for uploads

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unsupported file, unmapped column, bad layout, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background reconciliation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
	"github.com/warp/attendance-engine/store/sqlite"
)

// DefaultMaxUploadBytes bounds multipart uploads.
const DefaultMaxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *reconcile.Engine
	Importer *attendance.Importer
	Recorder *attendance.Recorder
	Profiles *ingest.MappingProfiles // optional

	MaxUploadBytes int64
	Now            func() time.Time
}

// NewHandler wires a handler around store. profiles may be nil.
func NewHandler(store *sqlite.Store, engine *reconcile.Engine, profiles *ingest.MappingProfiles) *Handler {
	return &Handler{
		Store:          store,
		Engine:         engine,
		Importer:       attendance.NewImporter(store, store),
		Recorder:       attendance.NewRecorder(store, engine),
		Profiles:       profiles,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Now:            time.Now,
	}
}

func (h *Handler) today() shift.Day {
	if h.Now == nil {
		return shift.Today()
	}
	return shift.DayOf(h.Now())
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// UploadAttendance parses an uploaded clock export and stores its records.
// POST /api/imports
//
// Multipart fields: file (required), mapping (JSON ColumnMapping) or
// profile (named mapping). ?reconcile=true reconciles every touched date.
func (h *Handler) UploadAttendance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	mapping, err := h.mappingFor(r.FormValue("mapping"), r.FormValue("profile"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid column mapping", err)
		return
	}

	result, err := ingest.Parse(data, header.Filename, mapping)
	if err != nil {
		writeError(w, statusFor(err), "Failed to parse attendance file", err)
		return
	}

	ctx := r.Context()
	summary, err := h.Importer.Import(ctx, result, header.Filename)
	if err != nil {
		writeError(w, statusFor(err), "Failed to store attendance", err)
		return
	}

	resp := ImportResponse{
		FileName:    header.Filename,
		TotalRows:   result.TotalRows,
		ParsedCount: len(result.Records),
		Headers:     result.Headers,
		Records:     result.Records,
		Warnings:    result.Warnings,
		Metadata:    result.Metadata,
		Import:      summary,
	}

	if reconcileAfter, _ := strconv.ParseBool(r.URL.Query().Get("reconcile")); reconcileAfter && len(summary.Dates) > 0 {
		total := h.ReconcileDates(ctx, sqlite.TriggerImport, summary.Dates)
		resp.Reconciliation = &total
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ReconcileDates reconciles each listed date as its own recorded run and
// folds the outcomes into one summary. A date that fails to load becomes
// an error entry instead of stopping the rest.
func (h *Handler) ReconcileDates(ctx context.Context, trigger string, dates []string) reconcile.Summary {
	total := reconcile.Summary{Results: []reconcile.Result{}, Errors: []string{}}
	for _, d := range dates {
		day, err := shift.ParseDay(d)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("date %s: %v", d, err))
			continue
		}
		daily, err := h.ReconcileAndRecord(ctx, trigger, day, day, nil)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("date %s: %v", d, err))
			continue
		}
		total.TotalProcessed += daily.TotalProcessed
		total.StatusChanges += daily.StatusChanges
		total.Results = append(total.Results, daily.Results...)
		total.Errors = append(total.Errors, daily.Errors...)
	}
	return total
}

// mappingFor resolves the upload's column mapping: explicit JSON first,
// then a named profile, then the profiles default, then DefaultMapping.
func (h *Handler) mappingFor(mappingJSON, profile string) (ingest.ColumnMapping, error) {
	if strings.TrimSpace(mappingJSON) != "" {
		var m ingest.ColumnMapping
		if err := json.Unmarshal([]byte(mappingJSON), &m); err != nil {
			return ingest.ColumnMapping{}, err
		}
		return m, nil
	}
	if h.Profiles == nil {
		if profile != "" {
			return ingest.ColumnMapping{}, &ingest.ConfigError{
				Reason: fmt.Sprintf("mapping profile %q (no profiles loaded)", profile),
				Err:    ingest.ErrUnknownProfile,
			}
		}
		return ingest.DefaultMapping, nil
	}
	return h.Profiles.Profile(profile)
}

// ListImports returns import history.
// GET /api/imports?limit=
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.Store.ListImportRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list imports", err)
		return
	}

	dtos := make([]ImportRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toImportRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": dtos})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := shift.Employee{ID: req.ID, Name: req.Name, Department: req.Department, CreatedAt: h.Now()}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetAttendance returns an employee's attendance rows.
// GET /api/employees/{id}/attendance?date=YYYY-MM-DD
// GET /api/employees/{id}/attendance?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	var from, to shift.Day
	var err error
	if date := q.Get("date"); date != "" {
		from, err = shift.ParseDay(date)
		to = from
	} else {
		from, to, err = h.dayRange(q.Get("from"), q.Get("to"))
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	records, err := h.Store.ListAttendance(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get attendance", err)
		return
	}

	dtos := make([]AttendanceDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toAttendanceDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"employeeId": id, "attendance": dtos})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns schedules in a date range (default: today).
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dayRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	schedules, err := h.Store.ListSchedules(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schedules", err)
		return
	}

	dtos := make([]ScheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		dtos = append(dtos, toScheduleDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedule returns a single schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get schedule", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "Schedule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(*s))
}

// CreateSchedule creates or replaces a schedule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := req.toSchedule()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule", err)
		return
	}

	if err := h.Store.SaveSchedule(r.Context(), s); err != nil {
		writeError(w, statusFor(err), "Failed to save schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(s))
}

func (req CreateScheduleRequest) toSchedule() (shift.Schedule, error) {
	if strings.TrimSpace(req.EmployeeID) == "" {
		return shift.Schedule{}, errors.New("employeeId is required")
	}
	day, err := shift.ParseDay(req.Date)
	if err != nil {
		return shift.Schedule{}, err
	}
	for _, t := range []string{req.StartTime, req.EndTime} {
		if t == "" {
			continue
		}
		if _, err := shift.ParseClock(t); err != nil {
			return shift.Schedule{}, err
		}
	}

	status := shift.Status(req.Status)
	if status == "" {
		status = shift.StatusPending
	}
	if !status.Valid() {
		return shift.Schedule{}, fmt.Errorf("%w: %q", shift.ErrInvalidStatus, req.Status)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return shift.Schedule{
		ID:         id,
		EmployeeID: req.EmployeeID,
		Date:       day,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Status:     status,
		Department: req.Department,
	}, nil
}

// =============================================================================
// ATTENDANCE EVENT HANDLERS
// =============================================================================

// CheckIn records a check-in.
// POST /api/attendance/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(w, r, h.Recorder.CheckIn)
}

// CheckOut records a check-out.
// POST /api/attendance/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(w, r, h.Recorder.CheckOut)
}

type recordFunc func(ctx context.Context, employeeID string, day shift.Day, at string) (*attendance.CheckResult, error)

func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request, record recordFunc) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employeeId is required", nil)
		return
	}

	day := h.today()
	if req.Date != "" {
		var err error
		if day, err = shift.ParseDay(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
	}
	at := req.Time
	if at == "" {
		at = h.Now().Format("15:04")
	}

	res, err := record(r.Context(), req.EmployeeID, day, at)
	if err != nil {
		writeError(w, statusFor(err), "Failed to record attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Attendance: toAttendanceDTO(res.Attendance), Changes: res.Changes})
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// ReconcileDate reconciles one day.
// POST /api/reconciliation/date
func (h *Handler) ReconcileDate(w http.ResponseWriter, r *http.Request) {
	var req ReconcileDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := shift.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	summary, err := h.ReconcileAndRecord(r.Context(), sqlite.TriggerManual, day, day, req.EmployeeIDs)
	if err != nil {
		writeError(w, statusFor(err), "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ReconcileRange reconciles every day in a range.
// POST /api/reconciliation/range
func (h *Handler) ReconcileRange(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := shift.ParseDay(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := shift.ParseDay(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	summary, err := h.ReconcileAndRecord(r.Context(), sqlite.TriggerManual, from, to, req.EmployeeIDs)
	if err != nil {
		writeError(w, statusFor(err), "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ReconcileEmployee reconciles one employee on one day.
// POST /api/reconciliation/employee
func (h *Handler) ReconcileEmployee(w http.ResponseWriter, r *http.Request) {
	var req ReconcileEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employeeId is required", nil)
		return
	}
	day, err := shift.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	results, err := h.Engine.ReconcileEmployeeDate(r.Context(), req.EmployeeID, day)
	if err != nil {
		writeError(w, statusFor(err), "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"employeeId": req.EmployeeID,
		"date":       day.String(),
		"results":    results,
	})
}

// ListReconciliationRuns returns reconciliation run history.
// GET /api/reconciliation/runs
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.GetReconciliationRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]ReconciliationRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// ReconcileAndRecord reconciles [from, to] and records the run.
// The run is saved as "running" first and updated when the batch ends.
func (h *Handler) ReconcileAndRecord(ctx context.Context, trigger string, from, to shift.Day, employeeIDs []string) (reconcile.Summary, error) {
	startTime := h.Now()
	run := sqlite.ReconciliationRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		DateFrom:  from,
		DateTo:    to,
		Status:    "running",
		StartedAt: &startTime,
		CreatedAt: startTime,
	}
	if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
		return reconcile.Summary{}, fmt.Errorf("failed to save run record: %w", err)
	}

	summary, err := h.Engine.ReconcileRange(ctx, from, to, employeeIDs...)

	completedTime := h.Now()
	run.CompletedAt = &completedTime
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	} else {
		run.Status = "completed"
		run.TotalProcessed = summary.TotalProcessed
		run.StatusChanges = summary.StatusChanges
		run.Errors = summary.Errors
	}
	if saveErr := h.Store.SaveReconciliationRun(ctx, run); saveErr != nil {
		log.Printf("[Reconcile] Failed to update run %s: %v", run.ID, saveErr)
	}
	return summary, err
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// dayRange parses optional from/to; a missing bound defaults to today, or
// to the other bound when only one is given.
func (h *Handler) dayRange(fromStr, toStr string) (shift.Day, shift.Day, error) {
	from, to := h.today(), h.today()
	var err error
	if fromStr != "" {
		if from, err = shift.ParseDay(fromStr); err != nil {
			return from, to, err
		}
		to = from
	}
	if toStr != "" {
		if to, err = shift.ParseDay(toStr); err != nil {
			return from, to, err
		}
		if fromStr == "" {
			from = to
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("%w: %s is before %s", shift.ErrInvalidRange, to, from)
	}
	return from, to, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case ingest.IsFatal(err), shift.IsClientError(err):
		return http.StatusBadRequest
	case shift.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
