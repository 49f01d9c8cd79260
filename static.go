// Package gtfs contains a loader for GTFS static feeds and the service calendar built on top of it.
package gtfs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jamespfennell/gtfsgo/constants"
	"github.com/jamespfennell/gtfsgo/csv"
	"github.com/jamespfennell/gtfsgo/warnings"
)

// Static contains the parsed content for a single GTFS static feed.
type Static struct {
	Agencies  []Agency
	Routes    []Route
	Stops     []Stop
	Trips     []Trip
	StopTimes []StopTime
	Services  []Service

	// Shapes is nil if shapes.txt is absent or empty.
	Shapes []Shape

	Warnings []warnings.StaticWarning
}

// Agency corresponds to a single row in the agency.txt file.
type Agency struct {
	Id       string
	Name     string
	Url      string
	Timezone string
}

type Route struct {
	Id        string
	Agency    *Agency
	ShortName string
	LongName  string
	Type      RouteType
}

// Name returns the long name followed by the short name.
func (r *Route) Name() string {
	return r.LongName + r.ShortName
}

type Stop struct {
	Id        string
	Name      string
	Longitude float64
	Latitude  float64
	Parent    *Stop
}

type Trip struct {
	ID        string
	RouteID   string
	ServiceID string
	// ShapeID is empty if the trip has no shape.
	ShapeID string
}

type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
	// DepartureTime is the raw hh:mm:ss value, empty if the cell is empty.
	DepartureTime string
	// Row is the data row of stop_times.txt the stop time was read from, starting at 1.
	Row int
}

type Shape struct {
	ID     string
	Points []ShapePoint
}

type ShapePoint struct {
	Latitude  float64
	Longitude float64
	Sequence  int
}

// ParseStatic parses the content of a GTFS static zip archive.
func ParseStatic(content []byte) (*Static, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	sources := map[string]func() (io.ReadCloser, error){}
	for _, file := range reader.File {
		file := file
		if file.FileInfo().IsDir() || strings.HasPrefix(file.Name, "__MACOSX") {
			continue
		}
		name := path.Base(file.Name)
		if _, ok := sources[name]; ok {
			continue
		}
		sources[name] = file.Open
	}
	return parse(sources)
}

// ParseStaticDir parses the GTFS tables found anywhere below the directory.
func ParseStaticDir(dir string) (*Static, error) {
	sources := map[string]func() (io.ReadCloser, error){}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		name := d.Name()
		if _, ok := sources[name]; ok {
			return nil
		}
		sources[name] = func() (io.ReadCloser, error) {
			return os.Open(p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read GTFS directory %s: %w", dir, err)
	}
	return parse(sources)
}

type parser struct {
	result   *Static
	tables   map[constants.StaticFile]*csv.File
	services *serviceBuilder
}

func parse(sources map[string]func() (io.ReadCloser, error)) (*Static, error) {
	p := &parser{
		result:   &Static{},
		tables:   map[constants.StaticFile]*csv.File{},
		services: newServiceBuilder(),
	}
	defer p.close()
	var names []string
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fileName := constants.StaticFile(name)
		if !constants.IsKnown(fileName) {
			p.warn(warnings.UnknownFileSkipped{FileName: name})
			continue
		}
		content, err := sources[name]()
		if err != nil {
			return nil, err
		}
		file, err := csv.New(fileName, content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", fileName, err)
		}
		if file.Empty() {
			file.Close()
			p.warn(warnings.EmptyFileSkipped{FileName: fileName})
			continue
		}
		p.tables[fileName] = file
	}
	for _, fileName := range constants.Required {
		if p.tables[fileName] == nil {
			return nil, MissingRequiredTableError{File: fileName}
		}
	}
	for _, table := range []struct {
		fileName constants.StaticFile
		action   func(file *csv.File) error
	}{
		{constants.AgencyFile, p.parseAgencies},
		{constants.RoutesFile, p.parseRoutes},
		{constants.StopsFile, p.parseStops},
		{constants.TripsFile, p.parseTrips},
		{constants.StopTimesFile, p.parseStopTimes},
		{constants.CalendarFile, p.parseCalendar},
		{constants.CalendarDatesFile, p.parseCalendarDates},
		{constants.ShapesFile, p.parseShapes},
	} {
		file := p.tables[table.fileName]
		if file == nil {
			continue
		}
		if err := table.action(file); err != nil {
			return nil, err
		}
		delete(p.tables, table.fileName)
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", table.fileName, err)
		}
	}
	p.result.Services = p.services.build()
	return p.result, nil
}

func (p *parser) close() {
	for _, file := range p.tables {
		file.Close()
	}
}

func (p *parser) warn(w warnings.StaticWarning) {
	log.Printf("%s", w)
	p.result.Warnings = append(p.result.Warnings, w)
}

// skipRow reports whether the current row is missing required cells, warning about it if so.
func (p *parser) skipRow(file *csv.File) bool {
	missingKeys := file.MissingRowKeys()
	if len(missingKeys) == 0 {
		return false
	}
	p.warn(warnings.RowMissingColumns{
		FileName:    file.Name(),
		RowNumber:   file.RowNumber(),
		MissingKeys: append([]string(nil), missingKeys...),
	})
	return true
}

func (p *parser) parseAgencies(file *csv.File) error {
	idColumn := file.OptionalColumn("agency_id")
	nameColumn := file.RequiredColumn("agency_name")
	urlColumn := file.OptionalColumn("agency_url")
	timezoneColumn := file.OptionalColumn("agency_timezone")
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		agency := Agency{
			Id:       idColumn.Read(),
			Name:     nameColumn.Read(),
			Url:      urlColumn.Read(),
			Timezone: timezoneColumn.Read(),
		}
		if p.skipRow(file) {
			continue
		}
		p.result.Agencies = append(p.result.Agencies, agency)
	}
	return nil
}

func (p *parser) parseRoutes(file *csv.File) error {
	idColumn := file.RequiredColumn("route_id")
	agencyIDColumn := file.OptionalColumn("agency_id")
	shortNameColumn := file.OptionalColumn("route_short_name")
	longNameColumn := file.OptionalColumn("route_long_name")
	typeColumn := file.OptionalColumn("route_type")
	agencies := p.result.Agencies
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		route := Route{
			Id:        idColumn.Read(),
			ShortName: shortNameColumn.Read(),
			LongName:  longNameColumn.Read(),
			Type:      parseRouteType(strings.TrimSpace(typeColumn.Read())),
		}
		if p.skipRow(file) {
			continue
		}
		if route.ShortName == "" && route.LongName == "" {
			p.warn(warnings.RowMissingColumns{
				FileName:    file.Name(),
				RowNumber:   file.RowNumber(),
				MissingKeys: []string{shortNameColumn.Name(), longNameColumn.Name()},
			})
			continue
		}
		agencyID := agencyIDColumn.Read()
		if agencyID != "" {
			for i := range agencies {
				if agencies[i].Id == agencyID {
					route.Agency = &agencies[i]
					break
				}
			}
		} else if len(agencies) == 1 {
			// In GTFS static if there is a single agency, a route's agency ID field can be omitted in
			// which case the route's agency is the unique agency in the feed.
			route.Agency = &agencies[0]
		}
		if route.Agency == nil {
			p.warn(warnings.UnresolvedAgency{RouteID: route.Id, AgencyID: agencyID})
		}
		p.result.Routes = append(p.result.Routes, route)
	}
	return nil
}

func (p *parser) parseStops(file *csv.File) error {
	idColumn := file.RequiredColumn("stop_id")
	nameColumn := file.OptionalColumn("stop_name")
	lonColumn := file.RequiredColumn("stop_lon")
	latColumn := file.RequiredColumn("stop_lat")
	parentColumn := file.OptionalColumn("parent_station")
	var stops []Stop
	stopIDToIndex := map[string]int{}
	stopIDToParent := map[string]string{}
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		stop := Stop{
			Id:   idColumn.Read(),
			Name: nameColumn.Read(),
		}
		var err error
		if stop.Longitude, err = readFloat(file, lonColumn); err != nil {
			return err
		}
		if stop.Latitude, err = readFloat(file, latColumn); err != nil {
			return err
		}
		if p.skipRow(file) {
			continue
		}
		if parent := strings.TrimSpace(parentColumn.Read()); parent != "" && parent != "nan" {
			stopIDToParent[stop.Id] = parent
		}
		stopIDToIndex[stop.Id] = len(stops)
		stops = append(stops, stop)
	}
	var stopIDs []string
	for stopID := range stopIDToParent {
		stopIDs = append(stopIDs, stopID)
	}
	sort.Strings(stopIDs)
	for _, stopID := range stopIDs {
		parentStopID := stopIDToParent[stopID]
		parentStopIndex, ok := stopIDToIndex[parentStopID]
		if !ok {
			p.warn(warnings.DanglingParentStation{StopID: stopID, ParentStation: parentStopID})
			continue
		}
		stops[stopIDToIndex[stopID]].Parent = &stops[parentStopIndex]
	}
	p.result.Stops = stops
	return nil
}

func (p *parser) parseTrips(file *csv.File) error {
	idColumn := file.RequiredColumn("trip_id")
	routeIDColumn := file.RequiredColumn("route_id")
	serviceIDColumn := file.RequiredColumn("service_id")
	shapeIDColumn := file.OptionalColumn("shape_id")
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		trip := Trip{
			ID:        idColumn.Read(),
			RouteID:   routeIDColumn.Read(),
			ServiceID: serviceIDColumn.Read(),
			ShapeID:   strings.TrimSpace(shapeIDColumn.Read()),
		}
		if p.skipRow(file) {
			continue
		}
		p.result.Trips = append(p.result.Trips, trip)
	}
	return nil
}

func (p *parser) parseStopTimes(file *csv.File) error {
	tripIDColumn := file.RequiredColumn("trip_id")
	stopIDColumn := file.RequiredColumn("stop_id")
	stopSequenceColumn := file.RequiredColumn("stop_sequence")
	departureTimeColumn := file.OptionalColumn("departure_time")
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		stopTime := StopTime{
			TripID:        tripIDColumn.Read(),
			StopID:        stopIDColumn.Read(),
			DepartureTime: strings.TrimSpace(departureTimeColumn.Read()),
			Row:           file.RowNumber(),
		}
		var err error
		if stopTime.StopSequence, err = readInt(file, stopSequenceColumn); err != nil {
			return err
		}
		if p.skipRow(file) {
			continue
		}
		p.result.StopTimes = append(p.result.StopTimes, stopTime)
	}
	return nil
}

func (p *parser) parseShapes(file *csv.File) error {
	idColumn := file.RequiredColumn("shape_id")
	latColumn := file.RequiredColumn("shape_pt_lat")
	lonColumn := file.RequiredColumn("shape_pt_lon")
	sequenceColumn := file.RequiredColumn("shape_pt_sequence")
	shapeIDToIndex := map[string]int{}
	shapes := []Shape{}
	if err := checkColumns(file); err != nil {
		return err
	}
	for file.NextRow() {
		shapeID := idColumn.Read()
		var point ShapePoint
		var err error
		if point.Latitude, err = readFloat(file, latColumn); err != nil {
			return err
		}
		if point.Longitude, err = readFloat(file, lonColumn); err != nil {
			return err
		}
		if point.Sequence, err = readInt(file, sequenceColumn); err != nil {
			return err
		}
		if p.skipRow(file) {
			continue
		}
		i, ok := shapeIDToIndex[shapeID]
		if !ok {
			i = len(shapes)
			shapeIDToIndex[shapeID] = i
			shapes = append(shapes, Shape{ID: shapeID})
		}
		shapes[i].Points = append(shapes[i].Points, point)
	}
	for i := range shapes {
		points := shapes[i].Points
		sort.SliceStable(points, func(a, b int) bool {
			return points[a].Sequence < points[b].Sequence
		})
	}
	p.result.Shapes = shapes
	return nil
}

// readFloat reads a numeric cell. An empty cell is recorded as a missing key by the column.
func readFloat(file *csv.File, column csv.RequiredColumn) (float64, error) {
	raw := strings.TrimSpace(column.Read())
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, malformed(file, column.Name(), raw)
	}
	return f, nil
}

func readInt(file *csv.File, column csv.RequiredColumn) (int, error) {
	raw := strings.TrimSpace(column.Read())
	if raw == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, malformed(file, column.Name(), raw)
	}
	return i, nil
}

func readDate(file *csv.File, column csv.RequiredColumn) (time.Time, error) {
	raw := strings.TrimSpace(column.Read())
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, malformed(file, column.Name(), raw)
	}
	return t, nil
}

// checkColumns fails if a required column declared on the file is absent from its header.
func checkColumns(file *csv.File) error {
	if missing := file.MissingRequiredColumns(); missing != nil {
		return MissingRequiredColumnsError{
			File:    file.Name(),
			Columns: append([]string(nil), missing...),
		}
	}
	return nil
}

func malformed(file *csv.File, column, value string) error {
	return MalformedValueError{
		File:   file.Name(),
		Row:    file.RowNumber(),
		Column: column,
		Value:  value,
	}
}
