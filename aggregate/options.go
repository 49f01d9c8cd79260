package aggregate

import (
	"strconv"
	"strings"

	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/unify"
)

type Options struct {
	Unify unify.Options

	// Date restricts the aggregation to trips operating on a YYYYMMDD date. Empty disables the filter.
	Date string

	// BeginTime and EndTime restrict the aggregation to stop times departing in [BeginTime, EndTime).
	// Both are hhmmss strings; the hour may exceed 23. Either both or neither must be set.
	BeginTime string
	EndTime   string
}

// DefaultOptions returns options with unification on and no filters.
func DefaultOptions() Options {
	return Options{Unify: unify.DefaultOptions()}
}

// Validate checks the date and time arguments. The returned error is a gtfs.InvalidDateError.
func (o Options) Validate() error {
	if o.Date != "" {
		if _, err := gtfs.ParseDate(o.Date); err != nil {
			return err
		}
	}
	if (o.BeginTime == "") != (o.EndTime == "") {
		value := o.BeginTime + o.EndTime
		return gtfs.InvalidDateError{Value: value, Reason: "begin and end time must be set together"}
	}
	if o.BeginTime == "" {
		return nil
	}
	if _, err := ParseTime(o.BeginTime); err != nil {
		return err
	}
	if _, err := ParseTime(o.EndTime); err != nil {
		return err
	}
	return nil
}

func (o Options) hasTimeFilter() bool {
	return o.BeginTime != "" && o.EndTime != ""
}

// ParseTime parses an hhmmss time, with or without colons, into the integer hhmmss.
func ParseTime(hhmmss string) (int, error) {
	s := strings.ReplaceAll(hhmmss, ":", "")
	if len(s) != 6 {
		return 0, gtfs.InvalidDateError{Value: hhmmss, Reason: "expected 6 digits hhmmss"}
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, gtfs.InvalidDateError{Value: hhmmss, Reason: "expected 6 digits hhmmss"}
		}
	}
	minutes, _ := strconv.Atoi(s[2:4])
	seconds, _ := strconv.Atoi(s[4:6])
	if minutes >= 60 || seconds >= 60 {
		return 0, gtfs.InvalidDateError{Value: hhmmss, Reason: "minutes and seconds must be less than 60"}
	}
	i, _ := strconv.Atoi(s)
	return i, nil
}
