/*
errors.go - Error types for the scheduling domain

ERROR CATEGORIES:
  1. Lookup errors - Missing schedules or employees
  2. Value errors - Malformed dates and clock times
  3. Store errors - Capability missing on a store implementation

USAGE:
  if errors.Is(err, shift.ErrScheduleNotFound) {
      // 404
  }
*/
package shift

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScheduleNotFound is returned when a referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidClock is returned for times that are not HH:MM.
	ErrInvalidClock = errors.New("invalid time of day")

	// ErrInvalidStatus is returned for unknown schedule statuses.
	ErrInvalidStatus = errors.New("invalid schedule status")

	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "schedule", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "employee" {
		return ErrEmployeeNotFound
	}
	return ErrScheduleNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) || errors.Is(err, ErrEmployeeNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidClock) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidRange)
}
