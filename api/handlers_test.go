/*
handlers_test.go - HTTP tests for the API

Tests for:
- Upload -> import -> reconcile flow
- Upload error mapping (400 for unsupported files and unmapped columns)
- Check-in / check-out events
- Manual reconciliation endpoints and run history
- Scheduler tick
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
	"github.com/warp/attendance-engine/store/sqlite"
)

var clockNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

type testServer struct {
	store   *sqlite.Store
	handler *Handler
	router  http.Handler
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := reconcile.NewEngine(store)
	engine.Now = func() time.Time { return clockNow }

	h := NewHandler(store, engine, nil)
	h.Now = func() time.Time { return clockNow }
	h.Importer.Now = h.Now

	return &testServer{store: store, handler: h, router: NewRouter(h)}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, path, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) schedule(t *testing.T, id, employeeID, date string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/schedules", CreateScheduleRequest{
		ID: id, EmployeeID: employeeID, Date: date, StartTime: "08:00", EndTime: "17:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

const clockCSV = "Employee ID,Name,Date,Time In,Time Out\n" +
	"E1,Jane Doe,03/14/2024,08:05 AM,05:10 PM\n" +
	"E2,Sam Poe,03/14/2024,09:00,\n" +
	"E3,Bad Row,not-a-date,09:00,\n"

func TestUploadAttendance_ImportsAndReconciles(t *testing.T) {
	// GIVEN: three scheduled employees, E4 never shows up
	ts := setupServer(t)
	ts.schedule(t, "S1", "E1", "2024-03-14")
	ts.schedule(t, "S2", "E2", "2024-03-14")
	ts.schedule(t, "S4", "E4", "2024-03-14")

	// WHEN: the clock export is uploaded with reconciliation
	rec := ts.upload(t, "/api/imports?reconcile=true", "clock.csv", []byte(clockCSV), nil)

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ImportResponse](t, rec)
	assert.Equal(t, 3, resp.TotalRows)
	assert.Equal(t, 2, resp.ParsedCount)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, 4, resp.Warnings[0].Row)
	assert.Equal(t, "17:10", *resp.Records[0].TimeOut)
	assert.Equal(t, 2, resp.Import.Imported)
	assert.Equal(t, 2, resp.Import.Linked)
	assert.Equal(t, []string{"2024-03-14"}, resp.Import.Dates)

	require.NotNil(t, resp.Reconciliation)
	assert.Equal(t, 3, resp.Reconciliation.TotalProcessed)
	assert.Equal(t, 3, resp.Reconciliation.StatusChanges)

	statuses := map[string]shift.Status{}
	for _, r := range resp.Reconciliation.Results {
		statuses[r.EmployeeID] = r.NewStatus
	}
	assert.Equal(t, map[string]shift.Status{
		"E1": shift.StatusCompleted,
		"E2": shift.StatusCheckedIn,
		"E4": shift.StatusNoShow,
	}, statuses)

	// AND: the run history shows the import and the reconciliation
	imports := decode[map[string][]ImportRunDTO](t, ts.do(t, http.MethodGet, "/api/imports", nil))
	require.Len(t, imports["imports"], 1)
	assert.Equal(t, 1, imports["imports"][0].Skipped)

	runs := decode[map[string][]ReconciliationRunDTO](t, ts.do(t, http.MethodGet, "/api/reconciliation/runs", nil))
	require.Len(t, runs["runs"], 1)
	assert.Equal(t, sqlite.TriggerImport, runs["runs"][0].Trigger)
	assert.Equal(t, "completed", runs["runs"][0].Status)
}

func TestUploadAttendance_CustomMapping(t *testing.T) {
	ts := setupServer(t)
	data := []byte("Badge,Day,Clock In\nB7,2024-03-14,7:45\n")
	mapping, err := json.Marshal(ingest.ColumnMapping{EmployeeID: "badge", Date: "day", TimeIn: "clock in"})
	require.NoError(t, err)

	rec := ts.upload(t, "/api/imports", "kiosk.csv", data, map[string]string{"mapping": string(mapping)})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ImportResponse](t, rec)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "B7", resp.Records[0].EmployeeID)
	assert.Equal(t, "07:45", *resp.Records[0].TimeIn)
	assert.Nil(t, resp.Reconciliation)
}

func TestUploadAttendance_Profile(t *testing.T) {
	ts := setupServer(t)
	profiles, err := ingest.ParseMappingProfiles([]byte(`
profiles:
  kiosk:
    employeeId: Badge
    date: Day
    timeIn: In
`))
	require.NoError(t, err)
	ts.handler.Profiles = profiles

	rec := ts.upload(t, "/api/imports", "kiosk.csv", []byte("Badge,Day,In\nB7,2024-03-14,08:00\n"),
		map[string]string{"profile": "kiosk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.upload(t, "/api/imports", "kiosk.csv", []byte("Badge,Day,In\nB7,2024-03-14,08:00\n"),
		map[string]string{"profile": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAttendance_FatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"unsupported extension", "clock.pdf", "Employee ID,Date\nE1,2024-03-14\n"},
		{"required column missing", "clock.csv", "Worker,Day\nE1,2024-03-14\n"},
		{"header only", "clock.csv", "Employee ID,Name,Date,Time In,Time Out\n"},
		{"corrupt workbook", "clock.xlsx", "not a zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupServer(t)

			rec := ts.upload(t, "/api/imports", tt.filename, []byte(tt.data), nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			errResp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "Failed to parse attendance file", errResp.Error)
			assert.NotEmpty(t, errResp.Details)
		})
	}
}

func TestUploadAttendance_MissingFile(t *testing.T) {
	ts := setupServer(t)
	rec := ts.do(t, http.MethodPost, "/api/imports", map[string]string{"file": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckInCheckOut(t *testing.T) {
	// GIVEN: a known employee with a confirmed shift
	ts := setupServer(t)
	rec := ts.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: "E1", Name: "Jane Doe"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/schedules", CreateScheduleRequest{
		ID: "S1", EmployeeID: "E1", Date: "2024-03-14", StartTime: "08:00", EndTime: "17:00", Status: "confirmed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: they check in (date and time default to now)
	rec = ts.do(t, http.MethodPost, "/api/attendance/check-in", CheckRequest{EmployeeID: "E1"})

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	in := decode[CheckResponse](t, rec)
	assert.Equal(t, "12:00", *in.Attendance.CheckInTime)
	require.Len(t, in.Changes, 1)
	assert.Equal(t, shift.StatusCheckedIn, in.Changes[0].NewStatus)

	// WHEN: they check out
	rec = ts.do(t, http.MethodPost, "/api/attendance/check-out", CheckRequest{EmployeeID: "E1", Date: "2024-03-14", Time: "20:30"})

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[CheckResponse](t, rec)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, shift.StatusCompleted, out.Changes[0].NewStatus)

	sched := decode[ScheduleDTO](t, ts.do(t, http.MethodGet, "/api/schedules/S1", nil))
	assert.Equal(t, "completed", sched.Status)
	assert.True(t, sched.AutoComputed)

	att := decode[struct {
		Attendance []AttendanceDTO `json:"attendance"`
	}](t, ts.do(t, http.MethodGet, "/api/employees/E1/attendance?date=2024-03-14", nil))
	require.Len(t, att.Attendance, 1)
	assert.Equal(t, "20:30", *att.Attendance[0].CheckOutTime)
}

func TestCheckIn_Errors(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/attendance/check-in", CheckRequest{EmployeeID: "ghost", Time: "08:00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/attendance/check-in", CheckRequest{EmployeeID: "ghost", Time: "8 o'clock"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/attendance/check-in", CheckRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedules_Validation(t *testing.T) {
	ts := setupServer(t)

	for _, req := range []CreateScheduleRequest{
		{EmployeeID: "E1", Date: "14/03/2024"},
		{EmployeeID: "E1", Date: "2024-03-14", StartTime: "25:00"},
		{EmployeeID: "E1", Date: "2024-03-14", Status: "late"},
		{Date: "2024-03-14"},
	} {
		rec := ts.do(t, http.MethodPost, "/api/schedules", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%+v", req)
	}

	rec := ts.do(t, http.MethodGet, "/api/schedules/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.schedule(t, "S1", "E1", "2024-03-14")
	ts.schedule(t, "S2", "E1", "2024-03-20")
	listed := decode[[]ScheduleDTO](t, ts.do(t, http.MethodGet, "/api/schedules", nil))
	require.Len(t, listed, 1, "defaults to today")
	assert.Equal(t, "pending", listed[0].Status)

	listed = decode[[]ScheduleDTO](t, ts.do(t, http.MethodGet, "/api/schedules?from=2024-03-01&to=2024-03-31", nil))
	assert.Len(t, listed, 2)

	rec = ts.do(t, http.MethodGet, "/api/schedules?from=2024-03-31&to=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconciliationEndpoints(t *testing.T) {
	ts := setupServer(t)
	ts.schedule(t, "S1", "E1", "2024-03-13")
	ts.schedule(t, "S2", "E2", "2024-03-14")

	// Single employee
	rec := ts.do(t, http.MethodPost, "/api/reconciliation/employee", ReconcileEmployeeRequest{EmployeeID: "E1", Date: "2024-03-13"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	one := decode[struct {
		Results []reconcile.Result `json:"results"`
	}](t, rec)
	require.Len(t, one.Results, 1)
	assert.Equal(t, shift.StatusNoShow, one.Results[0].NewStatus)
	assert.Equal(t, reconcile.ReasonNoAttendance, one.Results[0].Reason)

	// Range: E1 is already no-show, only E2 changes
	rec = ts.do(t, http.MethodPost, "/api/reconciliation/range", ReconcileRangeRequest{From: "2024-03-13", To: "2024-03-14"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[reconcile.Summary](t, rec)
	assert.Equal(t, 2, summary.TotalProcessed)
	assert.Equal(t, 1, summary.StatusChanges)

	// Date: idempotent
	rec = ts.do(t, http.MethodPost, "/api/reconciliation/date", ReconcileDateRequest{Date: "2024-03-14"})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[reconcile.Summary](t, rec)
	assert.Zero(t, again.StatusChanges)
	assert.Empty(t, again.Results)

	// Reversed range
	rec = ts.do(t, http.MethodPost, "/api/reconciliation/range", ReconcileRangeRequest{From: "2024-03-14", To: "2024-03-13"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs := decode[map[string][]ReconciliationRunDTO](t, ts.do(t, http.MethodGet, "/api/reconciliation/runs?status=failed", nil))
	require.Len(t, runs["runs"], 1)
	assert.Contains(t, runs["runs"][0].Error, "invalid range")
}

func TestScheduler_RunNowReconcilesYesterdayAndToday(t *testing.T) {
	// GIVEN: shifts yesterday, today and tomorrow
	ts := setupServer(t)
	ts.schedule(t, "S-y", "E1", "2024-03-13")
	ts.schedule(t, "S-t", "E1", "2024-03-14")
	ts.schedule(t, "S-n", "E1", "2024-03-15")

	scheduler := NewReconciliationScheduler(ts.handler)

	// WHEN
	summary := scheduler.RunNow()

	// THEN: tomorrow is untouched
	assert.Equal(t, 2, summary.StatusChanges)
	tomorrow, err := ts.store.GetSchedule(context.Background(), "S-n")
	require.NoError(t, err)
	assert.Equal(t, shift.StatusPending, tomorrow.Status)

	runs, err := ts.store.GetReconciliationRuns(context.Background(), "completed")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.TriggerScheduled, runs[0].Trigger)
	assert.Equal(t, "2024-03-13", runs[0].DateFrom.String())
}

func TestScheduler_StartStop(t *testing.T) {
	ts := setupServer(t)
	scheduler := NewReconciliationScheduler(ts.handler)
	scheduler.CheckInterval = time.Hour

	scheduler.Start()
	scheduler.Stop()

	disabled := NewReconciliationScheduler(ts.handler)
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()

	assert.WithinDuration(t, time.Now().Add(time.Hour), scheduler.GetNextRunTime(), time.Minute)
}
