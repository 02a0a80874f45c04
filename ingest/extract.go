/*
extract.go - Record Extractor

PURPOSE:
  Walks the data rows of a RawTable and produces normalized ParsedRecords.

IDENTITY CARRY-OVER:
  Many clock exports print the employee once above a block of dated rows:

    E7  John Roe  2024-03-11  08:00  17:00
                  2024-03-12  08:02  17:01
                  2024-03-13  07:58  16:59

  The extractor is a fold over rows. Each step takes the carried identity
  and one row and returns the next carried identity plus at most one record
  or one warning. Identity is carried only when a row states both id and
  name (or just id when no name column is mapped).

SKIPS:
  - Silent: blank rows, rows with no resolvable employee or date, rows with
    neither time in nor time out. These are not attendance events.
  - Warned: rows whose date or time fails to normalize. Only that row is
    dropped; the batch continues.
*/
package ingest

import "fmt"

// ParsedRecord is one normalized attendance event from an upload.
type ParsedRecord struct {
	EmployeeID   string  `json:"employeeId"`
	EmployeeName string  `json:"employeeName"`
	Date         string  `json:"date"`
	TimeIn       *string `json:"timeIn,omitempty"`
	TimeOut      *string `json:"timeOut,omitempty"`
	Department   *string `json:"department,omitempty"`
	OriginalRow  int     `json:"originalRow"`
}

// RowWarning explains why a data row was dropped.
type RowWarning struct {
	Row    int    `json:"row"` // 1-based file row
	Reason string `json:"reason"`
}

func (w RowWarning) String() string { return fmt.Sprintf("row %d: %s", w.Row, w.Reason) }

// extractState is the identity carried between rows.
type extractState struct {
	employeeID   string
	employeeName string
}

// Extract runs the extractor over every data row of table.
func Extract(table *RawTable, idx ColumnIndex) ([]ParsedRecord, []RowWarning) {
	var (
		state    extractState
		records  []ParsedRecord
		warnings []RowWarning
	)
	for i, row := range table.Rows {
		var rec *ParsedRecord
		var warn *RowWarning
		state, rec, warn = step(state, row, table.SourceRow(i), idx)
		if rec != nil {
			records = append(records, *rec)
		}
		if warn != nil {
			warnings = append(warnings, *warn)
		}
	}
	return records, warnings
}

// step processes one row. It is pure: the returned state replaces the input.
func step(state extractState, row []string, rowNum int, idx ColumnIndex) (extractState, *ParsedRecord, *RowWarning) {
	if allBlank(row) {
		return state, nil, nil
	}

	employeeID, hasID := cellAt(row, idx.EmployeeID).Value()
	name, hasName := cellAt(row, idx.Name).Value()
	dateCell := cellAt(row, idx.Date)
	timeInCell := cellAt(row, idx.TimeIn)
	timeOutCell := cellAt(row, idx.TimeOut)
	department, hasDepartment := cellAt(row, idx.Department).Value()

	if hasID && (hasName || idx.Name < 0) {
		state = extractState{employeeID: employeeID, employeeName: name}
	}

	finalID := employeeID
	finalName := name
	if !hasID {
		finalID = state.employeeID
	}
	if !hasName && finalID == state.employeeID {
		finalName = state.employeeName
	}

	if finalID == "" || dateCell.IsEmpty() {
		return state, nil, nil
	}
	if timeInCell.IsEmpty() && timeOutCell.IsEmpty() {
		return state, nil, nil
	}

	date, err := ProcessDate(dateCell)
	if err != nil {
		return state, nil, &RowWarning{Row: rowNum, Reason: err.Error()}
	}

	rec := &ParsedRecord{
		EmployeeID:   finalID,
		EmployeeName: finalName,
		Date:         date,
		OriginalRow:  rowNum,
	}
	if !timeInCell.IsEmpty() {
		t, err := ProcessTime(timeInCell)
		if err != nil {
			return state, nil, &RowWarning{Row: rowNum, Reason: "time in: " + err.Error()}
		}
		rec.TimeIn = &t
	}
	if !timeOutCell.IsEmpty() {
		t, err := ProcessTime(timeOutCell)
		if err != nil {
			return state, nil, &RowWarning{Row: rowNum, Reason: "time out: " + err.Error()}
		}
		rec.TimeOut = &t
	}
	if hasDepartment {
		rec.Department = &department
	}
	return state, rec, nil
}
