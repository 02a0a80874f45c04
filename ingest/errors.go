/*
errors.go - Error types for attendance file ingestion

ERROR CATEGORIES:
  1. Fatal configuration errors (ConfigError) - unsupported extension,
     required column not resolvable, unknown mapping profile
  2. Fatal format errors (FormatError) - missing header row, no data rows,
     fixed spreadsheet layout not recognised, unreadable workbook
  3. Value errors (ParseError) - a single cell failed to normalize. These
     never abort a batch; the extractor turns them into row warnings.

USAGE:
  result, err := ingest.Parse(data, name, mapping)
  if ingest.IsFatal(err) {
      // 400 to the uploader
  }
*/
package ingest

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnparsableDate = errors.New("unparsable date")
	ErrUnparsableTime = errors.New("unparsable time")

	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingColumn     = errors.New("required column not mapped")
	ErrUnknownProfile    = errors.New("unknown mapping profile")

	ErrMissingHeader  = errors.New("header row not found")
	ErrNoData         = errors.New("no data rows")
	ErrLayoutMismatch = errors.New("spreadsheet layout not recognised")
	ErrUnreadable     = errors.New("file could not be read")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ParseError reports a cell value that could not be normalized.
type ParseError struct {
	Field string // "date", "timeIn", "timeOut"
	Value string
	Err   error // ErrUnparsableDate or ErrUnparsableTime
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Field, e.Err, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError is a fatal error caused by caller configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ingestion config: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FormatError is a fatal error caused by the file contents.
type FormatError struct {
	FileType FileType
	Reason   string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s format: %s", e.FileType, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal reports whether err aborts a whole ingestion.
func IsFatal(err error) bool {
	var cfg *ConfigError
	var format *FormatError
	return errors.As(err, &cfg) || errors.As(err, &format)
}
