/*
detect.go - Format Detector

PURPOSE:
  Chooses a tokenizer from the file extension and locates the real header
  row, producing a RawTable for the Column Mapper and Record Extractor.

DELIMITED TEXT (.csv, .tsv):
  Decoded to UTF-8, split with encoding/csv using ',' or '\t'. The first of
  at most HeaderSearchDepth rows with a cell containing any HeaderKeywords
  token becomes the header row; rows above it are titles and are dropped.
  When no row matches, row 0 is the header.

SPREADSHEETS (.xlsx, .xls):
  First sheet only. Exports follow a fixed layout:
    B3 / D3   reporting start / end date
    row 5     header row ("Employee No.", "Employee Name", "Date", "Day",
              "IN" ... "OUT" punch pairs)
    row 6+    data
  The layout resolves its own columns: timeIn is the first IN column and
  timeOut the last OUT column. Missing tokens are a FormatError.
  Both readers hand back raw numeric cells, so native dates and times
  arrive as serials and day fractions.
*/
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type FileType string

const (
	FileCSV  FileType = "csv"
	FileTSV  FileType = "tsv"
	FileXLSX FileType = "xlsx"
	FileXLS  FileType = "xls"
)

// IsSpreadsheet reports whether the type is a workbook format.
func (f FileType) IsSpreadsheet() bool { return f == FileXLSX || f == FileXLS }

// HeaderKeywords mark a delimited-text row as the header row.
var HeaderKeywords = []string{"employee", "name", "id", "date", "time"}

// HeaderSearchDepth is how many leading rows are scanned for the header.
const HeaderSearchDepth = 5

// Fixed spreadsheet layout (1-indexed rows, A1 cell names).
const (
	SpreadsheetHeaderRow = 5
	SpreadsheetDataRow   = 6
	ReportStartCell      = "B3"
	ReportEndCell        = "D3"
)

// Required spreadsheet header tokens.
const (
	headerEmployeeNo   = "Employee No."
	headerEmployeeName = "Employee Name"
	headerDate         = "Date"
	headerDay          = "Day"
	headerIn           = "IN"
	headerOut          = "OUT"
	headerDepartment   = "Department"
)

// RawTable is a decoded grid with its located header row.
type RawTable struct {
	FileType  FileType
	Encoding  string
	Headers   []string
	Rows      [][]string // data rows below the header
	HeaderRow int        // 0-based index of the header row in the file

	// Spreadsheet metadata, ISO dates when present.
	StartDate string
	EndDate   string

	// Layout is set when the format fixes its own columns.
	Layout *ColumnIndex
}

// SourceRow returns the 1-based file row number of data row i.
func (t *RawTable) SourceRow(i int) int { return t.HeaderRow + 2 + i }

// FileTypeOf maps a filename extension to a FileType.
func FileTypeOf(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FileCSV, nil
	case ".tsv":
		return FileTSV, nil
	case ".xlsx":
		return FileXLSX, nil
	case ".xls":
		return FileXLS, nil
	}
	return "", &ConfigError{
		Reason: fmt.Sprintf("unsupported file extension %q (want .csv, .tsv, .xlsx or .xls)", filepath.Ext(filename)),
		Err:    ErrUnsupportedFormat,
	}
}

// Detect decodes data according to filename's extension and locates the header row.
func Detect(data []byte, filename string) (*RawTable, error) {
	fileType, err := FileTypeOf(filename)
	if err != nil {
		return nil, err
	}

	var table *RawTable
	switch fileType {
	case FileCSV:
		table, err = detectDelimited(data, ',', fileType)
	case FileTSV:
		table, err = detectDelimited(data, '\t', fileType)
	case FileXLSX:
		table, err = detectXLSX(data)
	case FileXLS:
		table, err = detectXLS(data)
	}
	if err != nil {
		return nil, err
	}

	if len(table.Headers) == 0 || allBlank(table.Headers) {
		return nil, &FormatError{FileType: fileType, Reason: "header row is empty", Err: ErrMissingHeader}
	}
	if countNonBlank(table.Rows) == 0 {
		return nil, &FormatError{FileType: fileType, Reason: "file has no data rows below the header", Err: ErrNoData}
	}
	return table, nil
}

// =============================================================================
// DELIMITED TEXT
// =============================================================================

func detectDelimited(data []byte, delimiter rune, fileType FileType) (*RawTable, error) {
	decoded, encoding, err := decodeText(data)
	if err != nil {
		return nil, &FormatError{FileType: fileType, Reason: fmt.Sprintf("decode text: %v", err), Err: ErrUnreadable}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FormatError{FileType: fileType, Reason: fmt.Sprintf("read row %d: %v", len(rows)+1, err), Err: ErrUnreadable}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &FormatError{FileType: fileType, Reason: "file is empty", Err: ErrMissingHeader}
	}

	headerRow := FindHeaderRow(rows)
	return &RawTable{
		FileType:  fileType,
		Encoding:  encoding,
		Headers:   cleanHeaders(rows[headerRow]),
		Rows:      rows[headerRow+1:],
		HeaderRow: headerRow,
	}, nil
}

// FindHeaderRow returns the index of the first of the leading
// HeaderSearchDepth rows that contains a header keyword, or 0.
func FindHeaderRow(rows [][]string) int {
	for i := 0; i < len(rows) && i < HeaderSearchDepth; i++ {
		if isHeaderRow(rows[i]) {
			return i
		}
	}
	return 0
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		lower := strings.ToLower(cell)
		for _, kw := range HeaderKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// SPREADSHEETS
// =============================================================================

func detectXLSX(data []byte) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{FileType: FileXLSX, Reason: fmt.Sprintf("open workbook: %v", err), Err: ErrUnreadable}
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &FormatError{FileType: FileXLSX, Reason: "no worksheet found", Err: ErrUnreadable}
	}

	// Raw values keep dates and times as serial numbers for ProcessDate/ProcessTime.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{FileType: FileXLSX, Reason: fmt.Sprintf("read sheet %q: %v", sheet, err), Err: ErrUnreadable}
	}
	return fromFixedLayout(rows, FileXLSX)
}

func detectXLS(data []byte) (table *RawTable, err error) {
	// The legacy BIFF reader panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, &FormatError{FileType: FileXLS, Reason: fmt.Sprintf("corrupt workbook: %v", r), Err: ErrUnreadable}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &FormatError{FileType: FileXLS, Reason: fmt.Sprintf("open workbook: %v", err), Err: ErrUnreadable}
	}
	if wb.NumSheets() == 0 {
		return nil, &FormatError{FileType: FileXLS, Reason: "no worksheet found", Err: ErrUnreadable}
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &FormatError{FileType: FileXLS, Reason: "no worksheet found", Err: ErrUnreadable}
	}
	rawXLSNumbers(wb)

	rows := make([][]string, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows[i] = cells
	}
	return fromFixedLayout(rows, FileXLS)
}

// rawXLSNumbers drops the number format from every cell style so numeric
// cells read back as their stored value, the same raw serials excelize
// returns. The BIFF reader renders built-in date formats as "2006.01" and
// custom ones as RFC3339, which loses the day or the clock time.
func rawXLSNumbers(wb *xls.WorkBook) {
	for _, xf := range wb.Xfs {
		switch x := xf.(type) {
		case *xls.Xf8:
			x.Format = 0
		case *xls.Xf5:
			x.Format = 0
		}
	}
}

// xlsRow returns row i, or nil when the sheet has no record for it.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// fromFixedLayout applies the spreadsheet export convention to a grid.
func fromFixedLayout(rows [][]string, fileType FileType) (*RawTable, error) {
	headerIdx := SpreadsheetHeaderRow - 1
	if len(rows) <= headerIdx {
		return nil, &FormatError{
			FileType: fileType,
			Reason:   fmt.Sprintf("expected header row at row %d, sheet has %d rows", SpreadsheetHeaderRow, len(rows)),
			Err:      ErrMissingHeader,
		}
	}

	headers := cleanHeaders(rows[headerIdx])
	layout, err := resolveFixedLayout(headers)
	if err != nil {
		return nil, &FormatError{FileType: fileType, Reason: err.Error(), Err: ErrLayoutMismatch}
	}

	table := &RawTable{
		FileType:  fileType,
		Encoding:  "binary",
		Headers:   headers,
		Rows:      rows[SpreadsheetDataRow-1:],
		HeaderRow: headerIdx,
		Layout:    &layout,
	}
	table.StartDate = metadataDate(rows, ReportStartCell)
	table.EndDate = metadataDate(rows, ReportEndCell)
	return table, nil
}

func resolveFixedLayout(headers []string) (ColumnIndex, error) {
	idx := ColumnIndex{
		EmployeeID: headerIndex(headers, headerEmployeeNo),
		Name:       headerIndex(headers, headerEmployeeName),
		Date:       headerIndex(headers, headerDate),
		TimeIn:     headerIndex(headers, headerIn),
		TimeOut:    lastHeaderIndex(headers, headerOut),
		Department: headerIndex(headers, headerDepartment),
	}

	var missing []string
	if idx.EmployeeID < 0 {
		missing = append(missing, headerEmployeeNo)
	}
	if idx.Name < 0 {
		missing = append(missing, headerEmployeeName)
	}
	if idx.Date < 0 {
		missing = append(missing, headerDate)
	}
	if headerIndex(headers, headerDay) < 0 {
		missing = append(missing, headerDay)
	}
	if idx.TimeIn < 0 {
		missing = append(missing, headerIn)
	}
	if idx.TimeOut < 0 {
		missing = append(missing, headerOut)
	}
	if len(missing) > 0 {
		return ColumnIndex{}, fmt.Errorf("header row %d is missing %s", SpreadsheetHeaderRow, strings.Join(missing, ", "))
	}
	return idx, nil
}

// metadataDate reads an A1-addressed cell from the grid and normalizes it.
// Unreadable metadata is not fatal.
func metadataDate(rows [][]string, cell string) string {
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil || row > len(rows) {
		return ""
	}
	date, err := ProcessDate(cellAt(rows[row-1], col-1))
	if err != nil {
		return ""
	}
	return date
}

// =============================================================================
// HELPERS
// =============================================================================

func cleanHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func countNonBlank(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if !allBlank(row) {
			n++
		}
	}
	return n
}
