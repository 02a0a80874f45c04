package attendance

import (
	"context"

	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
)

// CheckResult is the stored row after an event plus the status changes it
// caused, one per schedule of the day that moved.
type CheckResult struct {
	Attendance shift.AttendanceRecord `json:"-"`
	Changes    []reconcile.Result     `json:"changes"`
}

// Recorder stores clock events and reconciles the day's schedules at once.
// The row links to the first schedule; split shifts share the same row.
type Recorder struct {
	Store  Store
	Engine *reconcile.Engine
}

func NewRecorder(store Store, engine *reconcile.Engine) *Recorder {
	return &Recorder{Store: store, Engine: engine}
}

// CheckIn records a check-in at "HH:MM" on day.
func (r *Recorder) CheckIn(ctx context.Context, employeeID string, day shift.Day, at string) (*CheckResult, error) {
	return r.record(ctx, employeeID, day, at, true)
}

// CheckOut records a check-out at "HH:MM" on day.
func (r *Recorder) CheckOut(ctx context.Context, employeeID string, day shift.Day, at string) (*CheckResult, error) {
	return r.record(ctx, employeeID, day, at, false)
}

func (r *Recorder) record(ctx context.Context, employeeID string, day shift.Day, at string, checkIn bool) (*CheckResult, error) {
	clock, err := shift.ParseClock(at)
	if err != nil {
		return nil, err
	}
	e, err := r.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &shift.NotFoundError{Kind: "employee", ID: employeeID}
	}

	schedules, err := r.Store.SchedulesFor(ctx, employeeID, day)
	if err != nil {
		return nil, err
	}

	normalized := clock.String()
	row := shift.AttendanceRecord{
		EmployeeID: employeeID,
		Date:       day,
		Department: e.Department,
		Source:     SourceClock,
	}
	if checkIn {
		row.CheckInTime = &normalized
	} else {
		row.CheckOutTime = &normalized
	}
	if len(schedules) > 0 {
		id := schedules[0].ID
		row.ScheduleID = &id
	}

	stored, err := r.Store.UpsertAttendance(ctx, row)
	if err != nil {
		return nil, err
	}

	out := &CheckResult{Attendance: stored, Changes: []reconcile.Result{}}
	if r.Engine == nil {
		return out, nil
	}

	ev := reconcile.CheckEvent{CheckIn: stored.CheckInTime, CheckOut: stored.CheckOutTime}
	for _, s := range schedules {
		change, err := r.Engine.ReconcileEvent(ctx, s, ev)
		if err != nil {
			return out, err
		}
		if change != nil {
			out.Changes = append(out.Changes, *change)
		}
	}
	return out, nil
}
