/*
Package ingest turns time-clock export files into normalized attendance records.

PIPELINE:
  bytes + filename -> Detect (format + header row)
                   -> ResolveColumns (logical field -> column index)
                   -> Extract (identity carry-over, value normalization)
                   -> ParseResult

  Spreadsheet exports fix their own columns (see detect.go); the caller's
  ColumnMapping is then only consulted for an optional department column
  the layout lacks.

USAGE:
  result, err := ingest.Parse(data, "clock.csv", ingest.DefaultMapping)
  if err != nil {
      return err // *ConfigError or *FormatError
  }
  for _, w := range result.Warnings {
      log.Printf("[Import] skipped %s", w)
  }

SEE ALSO:
  - attendance/importer.go: Persists ParseResult as attendance rows
*/
package ingest

import "time"

// Metadata describes the processed file.
type Metadata struct {
	FileType         FileType `json:"fileType"`
	Encoding         string   `json:"encoding,omitempty"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
	StartDate        string   `json:"startDate,omitempty"`
	EndDate          string   `json:"endDate,omitempty"`
}

// ParseResult is the output of one ingestion.
type ParseResult struct {
	Records   []ParsedRecord `json:"records"`
	TotalRows int            `json:"totalRows"`
	Headers   []string       `json:"headers"`
	Warnings  []RowWarning   `json:"warnings"`
	Metadata  Metadata       `json:"metadata"`
}

// Parse runs the whole ingestion pipeline over one uploaded file.
func Parse(data []byte, filename string, mapping ColumnMapping) (*ParseResult, error) {
	started := time.Now()

	table, err := Detect(data, filename)
	if err != nil {
		return nil, err
	}

	idx, err := columnsFor(table, mapping)
	if err != nil {
		return nil, err
	}

	records, warnings := Extract(table, idx)
	if records == nil {
		records = []ParsedRecord{}
	}
	if warnings == nil {
		warnings = []RowWarning{}
	}

	return &ParseResult{
		Records:   records,
		TotalRows: countNonBlank(table.Rows),
		Headers:   table.Headers,
		Warnings:  warnings,
		Metadata: Metadata{
			FileType:         table.FileType,
			Encoding:         table.Encoding,
			ProcessingTimeMs: time.Since(started).Milliseconds(),
			StartDate:        table.StartDate,
			EndDate:          table.EndDate,
		},
	}, nil
}

func columnsFor(table *RawTable, mapping ColumnMapping) (ColumnIndex, error) {
	if table.Layout == nil {
		return ResolveColumns(table.Headers, mapping)
	}
	idx := *table.Layout
	if idx.Department < 0 {
		idx.Department = headerIndex(table.Headers, mapping.Department)
	}
	return idx, nil
}
