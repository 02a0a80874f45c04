package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
	"github.com/warp/attendance-engine/store/sqlite"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const clockCSV = "Employee ID,Name,Date,Time In,Time Out\n" +
	"E1,Jane,2024-03-14,08:00,17:00\n" +
	",,2024-03-15,09:00,\n"

func TestParseCommand_PrintsRecords(t *testing.T) {
	// GIVEN
	path := writeFile(t, "clock.csv", clockCSV)

	// WHEN
	out, err := run(t, "parse", path)

	// THEN: identity carried onto the second row
	require.NoError(t, err)
	var result ingest.ParseResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Records, 2)
	assert.Equal(t, "E1", result.Records[1].EmployeeID)
	assert.Equal(t, "2024-03-15", result.Records[1].Date)
	assert.Equal(t, ingest.FileCSV, result.Metadata.FileType)
}

func TestParseCommand_InlineMapping(t *testing.T) {
	// GIVEN: device headers the built-in mapping does not know
	path := writeFile(t, "device.csv", "AC-No.,Day,In\n7,2024-03-14,07:55\n")

	// WHEN
	out, err := run(t, "parse", path, "--mapping", `{"employeeId":"AC-No.","date":"Day","timeIn":"In"}`)

	// THEN
	require.NoError(t, err)
	var result ingest.ParseResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "7", result.Records[0].EmployeeID)
}

func TestParseCommand_ProfileFromFile(t *testing.T) {
	// GIVEN
	profiles := writeFile(t, "mappings.yaml", `
default: device
profiles:
  device:
    employeeId: "AC-No."
    date: "Day"
    timeIn: "In"
`)
	path := writeFile(t, "device.csv", "AC-No.,Day,In\n7,2024-03-14,07:55\n")

	// WHEN
	out, err := run(t, "--profiles", profiles, "parse", path)

	// THEN
	require.NoError(t, err)
	assert.Contains(t, out, `"employeeId":"7"`)
}

func TestParseCommand_Errors(t *testing.T) {
	missingDate := writeFile(t, "bad.csv", "Employee ID,Name\nE1,Jane\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file argument", []string{"parse"}, "accepts 1 arg"},
		{"missing file", []string{"parse", filepath.Join(t.TempDir(), "nope.csv")}, "read"},
		{"profile without profiles file", []string{"parse", missingDate, "--profile", "x"}, "requires --profiles"},
		{"bad inline mapping", []string{"parse", missingDate, "--mapping", "{"}, "invalid --mapping"},
		{"unmapped date column", []string{"parse", missingDate}, "Date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportCommand_StoresAndReconciles(t *testing.T) {
	// GIVEN: a schedule waiting for attendance
	dbPath := filepath.Join(t.TempDir(), "attendance.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveSchedule(context.Background(), shift.Schedule{
		ID: "S1", EmployeeID: "E1", Date: shift.MustParseDay("2024-03-14"),
		StartTime: "08:00", EndTime: "17:00", Status: shift.StatusPending,
	}))
	require.NoError(t, store.Close())
	path := writeFile(t, "clock.csv", clockCSV)

	// WHEN
	out, err := run(t, "import", path, "--db", dbPath, "--reconcile")

	// THEN
	require.NoError(t, err)
	var got importOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Import.Imported)
	assert.Equal(t, []string{"2024-03-14", "2024-03-15"}, got.Import.Dates)
	require.NotNil(t, got.Reconciliation)
	require.Len(t, got.Reconciliation.Results, 1)
	assert.Equal(t, shift.StatusCompleted, got.Reconciliation.Results[0].NewStatus)

	store, err = sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()
	sch, err := store.GetSchedule(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCompleted, sch.Status)
}

func TestReconcileCommand_RecordsRun(t *testing.T) {
	// GIVEN: attendance stored, schedule not yet reconciled
	dbPath := filepath.Join(t.TempDir(), "attendance.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	day := shift.MustParseDay("2024-03-14")
	require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{
		ID: "S1", EmployeeID: "E1", Date: day, Status: shift.StatusPending,
	}))
	in := "08:00"
	_, err = store.UpsertAttendance(ctx, shift.AttendanceRecord{
		ID: "A1", EmployeeID: "E1", Date: day, CheckInTime: &in, Source: "import",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// WHEN
	out, err := run(t, "reconcile", "--db", dbPath, "--date", "2024-03-14", "--workers", "2")

	// THEN
	require.NoError(t, err)
	var summary reconcile.Summary
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&summary))
	assert.Equal(t, 1, summary.TotalProcessed)
	assert.Equal(t, 1, summary.StatusChanges)

	store, err = sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.GetReconciliationRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.TriggerManual, runs[0].Trigger)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestReconcileCommand_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no days", []string{"reconcile"}, "date"},
		{"from without to", []string{"reconcile", "--from", "2024-03-01"}, "to"},
		{"reversed range", []string{"reconcile", "--from", "2024-03-02", "--to", "2024-03-01"}, "before"},
		{"bad date", []string{"reconcile", "--date", "14/03/2024"}, "invalid --date"},
		{"zero workers", []string{"reconcile", "--date", "2024-03-14", "--workers", "0"}, "--workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--db", filepath.Join(t.TempDir(), "x.db"))...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
