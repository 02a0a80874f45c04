package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIndex = ColumnIndex{EmployeeID: 0, Name: 1, Date: 2, TimeIn: 3, TimeOut: 4, Department: -1}

func TestStep_IsPureFold(t *testing.T) {
	// GIVEN: an empty carried identity
	state := extractState{}

	// WHEN: a row names the employee
	state, rec, warn := step(state, []string{"E7", "John Roe", "2024-03-11", "08:00", ""}, 2, testIndex)

	// THEN: the identity is carried into the next state
	require.Nil(t, warn)
	require.NotNil(t, rec)
	assert.Equal(t, extractState{employeeID: "E7", employeeName: "John Roe"}, state)

	// AND: an anonymous row inherits it without changing the state
	next, rec, warn := step(state, []string{"", "", "2024-03-12", "", "17:00"}, 3, testIndex)
	require.Nil(t, warn)
	require.NotNil(t, rec)
	assert.Equal(t, state, next)
	assert.Equal(t, "E7", rec.EmployeeID)
	assert.Equal(t, "John Roe", rec.EmployeeName)
	assert.Nil(t, rec.TimeIn)
	assert.Equal(t, "17:00", *rec.TimeOut)
}

func TestStep_IDWithoutNameDoesNotBorrowAnotherName(t *testing.T) {
	state := extractState{employeeID: "E7", employeeName: "John Roe"}

	next, rec, _ := step(state, []string{"E9", "", "2024-03-12", "08:00", ""}, 5, testIndex)

	require.NotNil(t, rec)
	assert.Equal(t, "E9", rec.EmployeeID)
	assert.Empty(t, rec.EmployeeName)
	assert.Equal(t, state, next, "identity changes only when id and name are both present")
}

func TestStep_CarriesOnIDAloneWhenNameUnmapped(t *testing.T) {
	idx := testIndex
	idx.Name = -1

	state, _, _ := step(extractState{}, []string{"E3", "", "2024-03-11", "08:00"}, 2, idx)
	_, rec, _ := step(state, []string{"", "", "2024-03-12", "08:00"}, 3, idx)

	require.NotNil(t, rec)
	assert.Equal(t, "E3", rec.EmployeeID)
}

func TestStep_SilentSkips(t *testing.T) {
	tests := []struct {
		name  string
		state extractState
		row   []string
	}{
		{"blank row", extractState{employeeID: "E1"}, []string{"", " ", ""}},
		{"no identity anywhere", extractState{}, []string{"", "", "2024-03-11", "08:00", ""}},
		{"no date", extractState{employeeID: "E1"}, []string{"E1", "A", "", "08:00", ""}},
		{"no times", extractState{employeeID: "E1"}, []string{"E1", "A", "2024-03-11", "", ""}},
		{"short row", extractState{}, []string{"E1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, warn := step(tt.state, tt.row, 9, testIndex)
			assert.Nil(t, rec)
			assert.Nil(t, warn)
		})
	}
}

func TestStep_NormalizationFailureWarnsWithRowNumber(t *testing.T) {
	_, rec, warn := step(extractState{}, []string{"E1", "A", "2024-03-11", "08:00", "later"}, 17, testIndex)

	assert.Nil(t, rec)
	require.NotNil(t, warn)
	assert.Equal(t, 17, warn.Row)
	assert.Contains(t, warn.String(), "row 17: time out")
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{"first row", [][]string{{"Employee", "Date"}, {"E1", "2024-03-11"}}, 0},
		{"after titles", [][]string{{"Report"}, {"North Branch"}, {"Emp", "DATE"}}, 2},
		{"beyond search depth", [][]string{{"a"}, {"b"}, {"c"}, {"e"}, {"f"}, {"Employee"}}, 0},
		{"no keywords", [][]string{{"a"}, {"b"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindHeaderRow(tt.rows))
		})
	}
}

func TestResolveColumns(t *testing.T) {
	headers := []string{"Employee ID", "Name", "Date", "Time In", "Time Out"}

	idx, err := ResolveColumns(headers, ColumnMapping{EmployeeID: "employee id", Date: " DATE "})
	require.NoError(t, err)
	assert.Equal(t, ColumnIndex{EmployeeID: 0, Name: -1, Date: 2, TimeIn: -1, TimeOut: -1, Department: -1}, idx)

	_, err = ResolveColumns(headers, ColumnMapping{Date: "Date"})
	assert.ErrorIs(t, err, ErrMissingColumn)

	// Substrings do not match.
	_, err = ResolveColumns(headers, ColumnMapping{EmployeeID: "Employee", Date: "Date"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}
