/*
engine.go - Reconciliation batch operations

PURPOSE:
  Engine is the store-effecting shell around ComputeStatus. It loads
  schedules and attendance, decides, and writes a StatusUpdate only when the
  status actually changes. Running it twice over unchanged data is a no-op.

OPERATIONS:
  ReconcileEmployeeDate: one employee, one day
  ReconcileDate:         every (or the given) employee scheduled on a day
  ReconcileRange:        ReconcileDate for each day, sequentially
  ReconcileEvent:        one schedule right after a check-in/out, no re-read

ERROR ISOLATION:
  A failing (or panicking) employee becomes "employee <id>: <err>" in
  Summary.Errors. Transitions already written for that employee stay in
  Summary.Results. A failing day inside a range becomes "date <day>: <err>".
  Neither stops the rest of the batch.

SEE ALSO:
  - status.go: ComputeStatus
  - pool.go: Per-employee worker pool
*/
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/attendance-engine/shift"
)

// Result is one applied status transition.
type Result struct {
	ScheduleID        string            `json:"scheduleId"`
	EmployeeID        string            `json:"employeeId"`
	Date              string            `json:"date"`
	PreviousStatus    shift.Status      `json:"previousStatus"`
	NewStatus         shift.Status      `json:"newStatus"`
	Reason            string            `json:"reason"`
	AttendanceSummary AttendanceSummary `json:"attendanceSummary"`
}

// Summary aggregates one batch invocation.
type Summary struct {
	TotalProcessed int      `json:"totalProcessed"`
	StatusChanges  int      `json:"statusChanges"`
	Results        []Result `json:"results"`
	Errors         []string `json:"errors"`
}

func newSummary() Summary {
	return Summary{Results: []Result{}, Errors: []string{}}
}

// merge appends other into s.
func (s *Summary) merge(other Summary) {
	s.TotalProcessed += other.TotalProcessed
	s.StatusChanges += other.StatusChanges
	s.Results = append(s.Results, other.Results...)
	s.Errors = append(s.Errors, other.Errors...)
}

// CheckEvent carries the times just written by a check-in or check-out.
type CheckEvent struct {
	CheckIn  *string
	CheckOut *string
}

// Engine reconciles schedules against attendance.
type Engine struct {
	Store   shift.Store
	Workers int // employees reconciled concurrently; <=1 is sequential
	Rules   shift.LaborRules
	Now     func() time.Time
}

// NewEngine creates a sequential engine with default labor rules.
func NewEngine(store shift.Store) *Engine {
	return &Engine{
		Store:   store,
		Workers: 1,
		Rules:   shift.DefaultLaborRules,
		Now:     time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// ReconcileEmployeeDate reconciles every schedule of employeeID on day and
// returns the transitions it applied. On error the transitions written
// before the failure are returned with it.
func (e *Engine) ReconcileEmployeeDate(ctx context.Context, employeeID string, day shift.Day) ([]Result, error) {
	results := []Result{}
	err := e.reconcileEmployeeDate(ctx, employeeID, day, func(r Result) { results = append(results, r) })
	return results, err
}

func (e *Engine) reconcileEmployeeDate(ctx context.Context, employeeID string, day shift.Day, emit func(Result)) error {
	schedules, err := e.Store.SchedulesFor(ctx, employeeID, day)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil
	}

	records, err := e.Store.AttendanceFor(ctx, employeeID, day)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}

	for _, s := range schedules {
		res, err := e.apply(ctx, s, computeStatus(s, records, e.Rules))
		if err != nil {
			return err
		}
		if res != nil {
			emit(*res)
		}
	}
	return nil
}

// ReconcileDate reconciles employeeIDs on day. With no IDs, every employee
// with a schedule on day is reconciled. The returned error is set only when
// the employee set itself cannot be loaded.
func (e *Engine) ReconcileDate(ctx context.Context, day shift.Day, employeeIDs ...string) (Summary, error) {
	if len(employeeIDs) == 0 {
		ids, err := e.Store.EmployeesScheduledOn(ctx, day)
		if err != nil {
			return newSummary(), fmt.Errorf("load scheduled employees: %w", err)
		}
		employeeIDs = ids
	}

	summary := e.forEachEmployee(ctx, employeeIDs, func(ctx context.Context, id string, emit func(Result)) error {
		return e.reconcileEmployeeDate(ctx, id, day, emit)
	})

	if summary.StatusChanges > 0 || len(summary.Errors) > 0 {
		log.Printf("[Reconcile] %s: %d employees, %d changes, %d errors",
			day, summary.TotalProcessed, summary.StatusChanges, len(summary.Errors))
	}
	return summary, nil
}

// ReconcileRange runs ReconcileDate for each day in [from, to].
func (e *Engine) ReconcileRange(ctx context.Context, from, to shift.Day, employeeIDs ...string) (Summary, error) {
	if to.Before(from) {
		return newSummary(), fmt.Errorf("%w: %s is before %s", shift.ErrInvalidRange, to, from)
	}

	total := newSummary()
	for _, day := range shift.EachDay(from, to) {
		if err := ctx.Err(); err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("date %s: %v", day, err))
			break
		}
		daily, err := e.ReconcileDate(ctx, day, employeeIDs...)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("date %s: %v", day, err))
			continue
		}
		total.merge(daily)
	}
	return total, nil
}

// ReconcileEvent reconciles s against the times of a just-recorded event
// instead of re-reading attendance. It returns nil when the status is unchanged.
func (e *Engine) ReconcileEvent(ctx context.Context, s shift.Schedule, ev CheckEvent) (*Result, error) {
	scheduleID := s.ID
	record := shift.AttendanceRecord{
		EmployeeID:   s.EmployeeID,
		Date:         s.Date,
		CheckInTime:  ev.CheckIn,
		CheckOutTime: ev.CheckOut,
		ScheduleID:   &scheduleID,
	}
	return e.apply(ctx, s, computeStatus(s, []shift.AttendanceRecord{record}, e.Rules))
}

// apply writes d when it changes the status of s.
func (e *Engine) apply(ctx context.Context, s shift.Schedule, d Decision) (*Result, error) {
	if d.Status == s.Status {
		return nil, nil
	}

	update := shift.StatusUpdate{
		ScheduleID:   s.ID,
		Status:       d.Status,
		UpdatedAt:    e.now(),
		AutoComputed: true,
	}
	if err := e.Store.UpdateScheduleStatus(ctx, update); err != nil {
		return nil, fmt.Errorf("update schedule %s: %w", s.ID, err)
	}

	return &Result{
		ScheduleID:        s.ID,
		EmployeeID:        s.EmployeeID,
		Date:              s.Date.String(),
		PreviousStatus:    s.Status,
		NewStatus:         d.Status,
		Reason:            d.Reason,
		AttendanceSummary: d.Summary,
	}, nil
}
