package gtfs

import (
	"fmt"
	"strings"

	"github.com/jamespfennell/gtfsgo/constants"
)

// MissingRequiredTableError is returned when a required GTFS table is absent or has no data rows.
type MissingRequiredTableError struct {
	File constants.StaticFile
}

func (e MissingRequiredTableError) Error() string {
	return fmt.Sprintf("no %q file in GTFS static feed", e.File)
}

// MissingRequiredColumnsError is returned when the header row of a table lacks columns every row needs.
type MissingRequiredColumnsError struct {
	File    constants.StaticFile
	Columns []string
}

func (e MissingRequiredColumnsError) Error() string {
	return fmt.Sprintf("%s is missing required columns %s", e.File, strings.Join(e.Columns, ", "))
}

// MalformedValueError is returned when a cell that must be numeric or a date cannot be parsed.
type MalformedValueError struct {
	File   constants.StaticFile
	Row    int
	Column string
	Value  string
}

func (e MalformedValueError) Error() string {
	return fmt.Sprintf("%s row %d: malformed value %q in column %s", e.File, e.Row, e.Value, e.Column)
}

// InvalidDateError is returned when a date (YYYYMMDD) or time (hhmmss) argument is malformed.
type InvalidDateError struct {
	Value  string
	Reason string
}

func (e InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date or time %q: %s", e.Value, e.Reason)
}
