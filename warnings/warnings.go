// Package warnings contains the non-fatal conditions encountered while reading and aggregating a feed.
package warnings

import (
	"fmt"

	"github.com/jamespfennell/gtfsgo/constants"
)

type StaticWarning interface {
	File() constants.StaticFile
	Error() string
}

// UnknownFileSkipped is raised for a .txt file that is not a GTFS static table.
type UnknownFileSkipped struct {
	FileName string
}

func (w UnknownFileSkipped) File() constants.StaticFile {
	return constants.StaticFile(w.FileName)
}

func (w UnknownFileSkipped) Error() string {
	return fmt.Sprintf("%s is not a GTFS table, skipping", w.FileName)
}

// EmptyFileSkipped is raised for a table that has a header but no data rows. The table is treated as absent.
type EmptyFileSkipped struct {
	FileName constants.StaticFile
}

func (w EmptyFileSkipped) File() constants.StaticFile {
	return w.FileName
}

func (w EmptyFileSkipped) Error() string {
	return fmt.Sprintf("%s is empty, skipping", w.FileName)
}

type RowMissingColumns struct {
	FileName    constants.StaticFile
	RowNumber   int
	MissingKeys []string
}

func (w RowMissingColumns) File() constants.StaticFile {
	return w.FileName
}

func (w RowMissingColumns) Error() string {
	return fmt.Sprintf("skipping row %d of %s because of missing columns %s", w.RowNumber, w.FileName, w.MissingKeys)
}

type DanglingParentStation struct {
	StopID        string
	ParentStation string
}

func (w DanglingParentStation) File() constants.StaticFile {
	return constants.StopsFile
}

func (w DanglingParentStation) Error() string {
	return fmt.Sprintf("stop %q references unknown parent station %q, treating it as having no parent", w.StopID, w.ParentStation)
}

type UnresolvedAgency struct {
	RouteID  string
	AgencyID string
}

func (w UnresolvedAgency) File() constants.StaticFile {
	return constants.RoutesFile
}

func (w UnresolvedAgency) Error() string {
	if w.AgencyID == "" {
		return fmt.Sprintf("route %q has no agency ID and the feed has no unique agency", w.RouteID)
	}
	return fmt.Sprintf("route %q references unknown agency %q", w.RouteID, w.AgencyID)
}

// UnknownShape is raised when a trip references a shape that has no points in shapes.txt.
type UnknownShape struct {
	TripID  string
	ShapeID string
}

func (w UnknownShape) File() constants.StaticFile {
	return constants.TripsFile
}

func (w UnknownShape) Error() string {
	return fmt.Sprintf("trip %q references shape %q which is not in shapes.txt", w.TripID, w.ShapeID)
}

// UnknownStop is raised when a stop time references a stop that is not in stops.txt.
type UnknownStop struct {
	TripID string
	StopID string
}

func (w UnknownStop) File() constants.StaticFile {
	return constants.StopTimesFile
}

func (w UnknownStop) Error() string {
	return fmt.Sprintf("trip %q visits unknown stop %q, dropping the stop time", w.TripID, w.StopID)
}
