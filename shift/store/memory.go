// Package store provides in-memory shift store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/shift"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	schedules  map[string]shift.Schedule
	order      []string // schedule IDs in insertion order
	attendance map[key]shift.AttendanceRecord
	employees  map[string]shift.Employee
	updates    []shift.StatusUpdate
	imports    []shift.ImportRun
}

type key struct {
	EmployeeID string
	Date       string
}

func NewMemory() *Memory {
	return &Memory{
		schedules:  make(map[string]shift.Schedule),
		attendance: make(map[key]shift.AttendanceRecord),
		employees:  make(map[string]shift.Employee),
	}
}

// SaveSchedule inserts or replaces a schedule.
func (m *Memory) SaveSchedule(_ context.Context, s shift.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[s.ID]; !exists {
		m.order = append(m.order, s.ID)
	}
	m.schedules[s.ID] = s
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, id string) (*shift.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListSchedules(_ context.Context, from, to shift.Day) ([]shift.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []shift.Schedule
	for _, id := range m.order {
		s := m.schedules[id]
		if !s.Date.Before(from) && !s.Date.After(to) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *Memory) SchedulesFor(_ context.Context, employeeID string, day shift.Day) ([]shift.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []shift.Schedule
	for _, id := range m.order {
		s := m.schedules[id]
		if s.EmployeeID == employeeID && s.Date.Equal(day) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *Memory) AttendanceFor(_ context.Context, employeeID string, day shift.Day) ([]shift.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.attendance[key{EmployeeID: employeeID, Date: day.String()}]; ok {
		return []shift.AttendanceRecord{rec}, nil
	}
	return nil, nil
}

func (m *Memory) EmployeesScheduledOn(_ context.Context, day shift.Day) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, id := range m.order {
		s := m.schedules[id]
		if s.Date.Equal(day) && !seen[s.EmployeeID] {
			seen[s.EmployeeID] = true
			ids = append(ids, s.EmployeeID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// UpdateScheduleStatus applies a status transition. Last write wins.
func (m *Memory) UpdateScheduleStatus(_ context.Context, u shift.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[u.ScheduleID]
	if !ok {
		return &shift.NotFoundError{Kind: "schedule", ID: u.ScheduleID}
	}
	at := u.UpdatedAt
	s.Status = u.Status
	s.StatusUpdatedAt = &at
	s.AutoComputed = u.AutoComputed
	m.schedules[u.ScheduleID] = s
	m.updates = append(m.updates, u)
	return nil
}

// Updates returns every status write applied so far.
func (m *Memory) Updates() []shift.StatusUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]shift.StatusUpdate(nil), m.updates...)
}

func (m *Memory) UpsertAttendance(_ context.Context, rec shift.AttendanceRecord) (shift.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{EmployeeID: rec.EmployeeID, Date: rec.Date.String()}
	existing, ok := m.attendance[k]
	if !ok {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		m.attendance[k] = rec
		return rec, nil
	}

	if rec.CheckInTime != nil {
		existing.CheckInTime = rec.CheckInTime
	}
	if rec.CheckOutTime != nil {
		existing.CheckOutTime = rec.CheckOutTime
	}
	if rec.ScheduleID != nil {
		existing.ScheduleID = rec.ScheduleID
	}
	if rec.Department != "" {
		existing.Department = rec.Department
	}
	if rec.Source != "" {
		existing.Source = rec.Source
	}
	m.attendance[k] = existing
	return existing, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e shift.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*shift.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) SaveImportRun(_ context.Context, run shift.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, run)
	return nil
}

func (m *Memory) ListImportRuns(_ context.Context, limit int) ([]shift.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]shift.ImportRun, 0, len(m.imports))
	for i := len(m.imports) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, m.imports[i])
	}
	return runs, nil
}
