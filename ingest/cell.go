package ingest

import "strings"

// Cell is a raw spreadsheet/CSV value: either Text or Empty.
// Whitespace-only input is Empty.
type Cell struct {
	text    string
	present bool
}

// Text wraps a raw value, trimming surrounding whitespace.
func Text(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty()
	}
	return Cell{text: s, present: true}
}

func Empty() Cell { return Cell{} }

func (c Cell) IsEmpty() bool { return !c.present }

// Value returns the trimmed text and whether the cell had any.
func (c Cell) Value() (string, bool) { return c.text, c.present }

func (c Cell) String() string { return c.text }

// cellAt returns the cell at idx, Empty when idx is -1 or past the row end.
func cellAt(row []string, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return Empty()
	}
	return Text(row[idx])
}
