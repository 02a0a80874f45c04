package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
)

var march14 = shift.MustParseDay("2024-03-14")

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_ScheduleRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// GIVEN: two schedules saved out of id order
	require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{
		ID: "S2", EmployeeID: "E1", Date: march14, StartTime: "13:00", EndTime: "17:00",
		Status: shift.StatusPending, Department: "Ops",
	}))
	require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{
		ID: "S1", EmployeeID: "E1", Date: march14, StartTime: "08:00", EndTime: "12:00",
		Status: shift.StatusConfirmed,
	}))

	// WHEN
	schedules, err := store.SchedulesFor(ctx, "E1", march14)

	// THEN: creation order, fields intact
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "S2", schedules[0].ID)
	assert.Equal(t, "Ops", schedules[0].Department)
	assert.Equal(t, "13:00", schedules[0].StartTime)
	assert.True(t, march14.Equal(schedules[0].Date))
	assert.Equal(t, shift.StatusConfirmed, schedules[1].Status)
	assert.Nil(t, schedules[1].StatusUpdatedAt)

	missing, err := store.GetSchedule(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = store.SaveSchedule(ctx, shift.Schedule{ID: "S3", EmployeeID: "E1", Date: march14, Status: "late"})
	assert.ErrorIs(t, err, shift.ErrInvalidStatus)
}

func TestStore_ListSchedulesAndEmployeesScheduledOn(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i, emp := range []string{"E3", "E1", "E3"} {
		require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{
			ID: "S" + string(rune('a'+i)), EmployeeID: emp, Date: march14, Status: shift.StatusPending,
		}))
	}
	require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{
		ID: "later", EmployeeID: "E2", Date: march14.AddDays(3), Status: shift.StatusPending,
	}))

	ids, err := store.EmployeesScheduledOn(ctx, march14)
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E3"}, ids)

	listed, err := store.ListSchedules(ctx, march14, march14.AddDays(2))
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	listed, err = store.ListSchedules(ctx, march14, march14.AddDays(3))
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestStore_UpdateScheduleStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{ID: "S1", EmployeeID: "E1", Date: march14, Status: shift.StatusPending}))

	at := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateScheduleStatus(ctx, shift.StatusUpdate{
		ScheduleID: "S1", Status: shift.StatusCompleted, UpdatedAt: at, AutoComputed: true,
	}))

	s, err := store.GetSchedule(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, shift.StatusCompleted, s.Status)
	assert.True(t, s.AutoComputed)
	require.NotNil(t, s.StatusUpdatedAt)
	assert.True(t, at.Equal(*s.StatusUpdatedAt))

	err = store.UpdateScheduleStatus(ctx, shift.StatusUpdate{ScheduleID: "ghost", Status: shift.StatusNoShow})
	assert.True(t, shift.IsNotFound(err))
}

func TestStore_UpsertAttendanceMerges(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// GIVEN: a check-in
	first, err := store.UpsertAttendance(ctx, shift.AttendanceRecord{
		EmployeeID: "E1", Date: march14, CheckInTime: shift.StrPtr("08:00"), Source: "import",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Nil(t, first.CheckOutTime)
	assert.Nil(t, first.ScheduleID)

	// WHEN: the check-out and a schedule link arrive separately
	merged, err := store.UpsertAttendance(ctx, shift.AttendanceRecord{
		EmployeeID: "E1", Date: march14, CheckOutTime: shift.StrPtr("17:00"), ScheduleID: shift.StrPtr("S1"),
	})

	// THEN: one row carrying both
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, "08:00", *merged.CheckInTime)
	assert.Equal(t, "17:00", *merged.CheckOutTime)
	assert.Equal(t, "S1", *merged.ScheduleID)
	assert.Equal(t, "import", merged.Source)

	rows, err := store.AttendanceFor(ctx, "E1", march14)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, merged, rows[0])

	ranged, err := store.ListAttendance(ctx, "E1", march14.AddDays(-7), march14)
	require.NoError(t, err)
	assert.Len(t, ranged, 1)
}

func TestStore_Employees(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, shift.Employee{ID: "E2", Name: "Sam Poe"}))
	require.NoError(t, store.SaveEmployee(ctx, shift.Employee{ID: "E1", Name: "Jane Doe", Department: "Ops"}))

	e, err := store.GetEmployee(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Ops", e.Department)
	assert.False(t, e.CreatedAt.IsZero())

	missing, err := store.GetEmployee(ctx, "E9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Jane Doe", all[0].Name)
}

func TestStore_Runs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveImportRun(ctx, shift.ImportRun{ID: "I1", FileName: "a.csv", FileType: "csv", StartedAt: base, CompletedAt: base}))
	require.NoError(t, store.SaveImportRun(ctx, shift.ImportRun{ID: "I2", FileName: "b.xlsx", FileType: "xlsx", Parsed: 3, StartedAt: base.Add(time.Hour), CompletedAt: base.Add(time.Hour)}))

	imports, err := store.ListImportRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "I2", imports[0].ID)
	assert.Equal(t, 3, imports[0].Parsed)

	// Reconciliation run updated in place
	run := ReconciliationRun{
		ID: "R1", Trigger: TriggerManual, DateFrom: march14, DateTo: march14,
		Status: "running", StartedAt: &base, CreatedAt: base,
	}
	require.NoError(t, store.SaveReconciliationRun(ctx, run))
	done := base.Add(time.Minute)
	run.Status = "completed"
	run.TotalProcessed = 3
	run.StatusChanges = 2
	run.Errors = []string{"employee B: connection reset"}
	run.CompletedAt = &done
	require.NoError(t, store.SaveReconciliationRun(ctx, run))

	runs, err := store.GetReconciliationRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].StatusChanges)
	assert.Equal(t, []string{"employee B: connection reset"}, runs[0].Errors)
	assert.Equal(t, "2024-03-14", runs[0].DateFrom.String())
	require.NotNil(t, runs[0].CompletedAt)

	failed, err := store.GetReconciliationRuns(ctx, "failed")
	require.NoError(t, err)
	assert.Empty(t, failed)

	require.NoError(t, store.Reset(ctx))
	runs, err = store.GetReconciliationRuns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_DrivesEngine(t *testing.T) {
	// GIVEN: the sqlite store behind a parallel engine
	store := setupStore(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, store.SaveSchedule(ctx, shift.Schedule{ID: "S" + id, EmployeeID: id, Date: march14, Status: shift.StatusPending}))
	}
	_, err := store.UpsertAttendance(ctx, shift.AttendanceRecord{
		EmployeeID: "A", Date: march14, CheckInTime: shift.StrPtr("08:00"), CheckOutTime: shift.StrPtr("16:00"),
	})
	require.NoError(t, err)

	engine := reconcile.NewEngine(store)
	engine.Workers = 3

	// WHEN
	summary, err := engine.ReconcileDate(ctx, march14)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalProcessed)
	assert.Equal(t, 3, summary.StatusChanges)
	assert.Empty(t, summary.Errors)

	again, err := engine.ReconcileDate(ctx, march14)
	require.NoError(t, err)
	assert.Zero(t, again.StatusChanges)
}
