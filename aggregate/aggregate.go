// Package aggregate unifies similar stops and counts how often trips travel between consecutive unified stops.
package aggregate

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/constants"
	"github.com/jamespfennell/gtfsgo/unify"
	"github.com/jamespfennell/gtfsgo/warnings"
	geojson "github.com/paulmach/go.geojson"
)

// Aggregator holds the stop groups and the filtered stop times of one feed.
type Aggregator struct {
	static   *gtfs.Static
	options  Options
	unifier  *unify.Unifier
	trips    map[string]*gtfs.Trip
	routes   map[string]*gtfs.Route
	warnings []warnings.StaticWarning

	// stopTimes are the stop times that pass the filters, sorted by trip ID and stop sequence.
	stopTimes []gtfs.StopTime
}

// New validates the options, applies the date and time filters and computes the stop groups.
func New(static *gtfs.Static, options Options) (*Aggregator, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		static:  static,
		options: options,
		trips:   map[string]*gtfs.Trip{},
		routes:  map[string]*gtfs.Route{},
	}
	for i := range static.Trips {
		a.trips[static.Trips[i].ID] = &static.Trips[i]
	}
	for i := range static.Routes {
		a.routes[static.Routes[i].Id] = &static.Routes[i]
	}
	stopTimes, err := a.filterStopTimes()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stopTimes, func(i, j int) bool {
		if stopTimes[i].TripID != stopTimes[j].TripID {
			return stopTimes[i].TripID < stopTimes[j].TripID
		}
		return stopTimes[i].StopSequence < stopTimes[j].StopSequence
	})
	a.stopTimes = stopTimes
	a.unifier = unify.New(static, options.Unify)
	a.checkStops()
	return a, nil
}

func (a *Aggregator) checkStops() {
	type tripStop struct {
		tripID, stopID string
	}
	seen := map[tripStop]bool{}
	for _, stopTime := range a.stopTimes {
		if a.unifier.Group(stopTime.StopID) != nil {
			continue
		}
		key := tripStop{stopTime.TripID, stopTime.StopID}
		if seen[key] {
			continue
		}
		seen[key] = true
		a.warn(warnings.UnknownStop{TripID: stopTime.TripID, StopID: stopTime.StopID})
	}
}

func (a *Aggregator) filterStopTimes() ([]gtfs.StopTime, error) {
	var tripIDs map[string]bool
	if a.options.Date != "" {
		var err error
		tripIDs, err = a.static.TripsOnDate(a.options.Date)
		if err != nil {
			return nil, err
		}
	}
	var begin, end int
	if a.options.hasTimeFilter() {
		// Already validated.
		begin, _ = ParseTime(a.options.BeginTime)
		end, _ = ParseTime(a.options.EndTime)
	}
	stopTimes := make([]gtfs.StopTime, 0, len(a.static.StopTimes))
	for _, stopTime := range a.static.StopTimes {
		if tripIDs != nil && !tripIDs[stopTime.TripID] {
			continue
		}
		if a.options.hasTimeFilter() {
			if stopTime.DepartureTime == "" {
				continue
			}
			departure, err := strconv.Atoi(strings.ReplaceAll(stopTime.DepartureTime, ":", ""))
			if err != nil {
				return nil, gtfs.MalformedValueError{
					File:   constants.StopTimesFile,
					Row:    stopTime.Row,
					Column: "departure_time",
					Value:  stopTime.DepartureTime,
				}
			}
			if departure < begin || departure >= end {
				continue
			}
		}
		stopTimes = append(stopTimes, stopTime)
	}
	return stopTimes, nil
}

func (a *Aggregator) warn(w warnings.StaticWarning) {
	log.Printf("%s", w)
	a.warnings = append(a.warnings, w)
}

// Warnings returns the non-fatal conditions met while aggregating.
func (a *Aggregator) Warnings() []warnings.StaticWarning {
	return a.warnings
}

// Unifier returns the stop groups.
func (a *Aggregator) Unifier() *unify.Unifier {
	return a.unifier
}

// ReadInterpolatedStops returns one point per distinct stop group.
func (a *Aggregator) ReadInterpolatedStops() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range a.unifier.Groups() {
		f := geojson.NewPointFeature([]float64{g.Centroid[0], g.Centroid[1]})
		f.SetProperty("similar_stop_name", g.Name)
		f.SetProperty("similar_stop_id", g.ID)
		f.SetProperty("count", g.MemberCount)
		fc.AddFeature(f)
	}
	return fc
}

// Path is a directed segment between two stop groups visited consecutively by at least one trip.
type Path struct {
	ID        string
	Prev      *unify.Group
	Next      *unify.Group
	Frequency int
	// Agency is the agency of the first trip on the path, or nil if it cannot be resolved.
	Agency *gtfs.Agency
}

// Paths returns the paths in path ID order.
func (a *Aggregator) Paths() []*Path {
	idToPath := map[string]*Path{}
	var ids []string
	for i := 0; i+1 < len(a.stopTimes); i++ {
		current, successor := &a.stopTimes[i], &a.stopTimes[i+1]
		if current.TripID != successor.TripID {
			continue
		}
		// Stop times at unknown stops have no group and break the pair on both sides.
		prev, next := a.unifier.Group(current.StopID), a.unifier.Group(successor.StopID)
		if prev == nil || next == nil {
			continue
		}
		id := prev.ID + next.ID + unify.PositionString(prev.Centroid) + unify.PositionString(next.Centroid)
		path, ok := idToPath[id]
		if !ok {
			path = &Path{
				ID:     id,
				Prev:   prev,
				Next:   next,
				Agency: a.agencyOf(current.TripID),
			}
			idToPath[id] = path
			ids = append(ids, id)
		}
		path.Frequency++
	}
	sort.Strings(ids)
	paths := make([]*Path, 0, len(ids))
	for _, id := range ids {
		paths = append(paths, idToPath[id])
	}
	return paths
}

func (a *Aggregator) agencyOf(tripID string) *gtfs.Agency {
	trip, ok := a.trips[tripID]
	if !ok {
		return nil
	}
	route, ok := a.routes[trip.RouteID]
	if !ok {
		return nil
	}
	return route.Agency
}

// ReadRouteFrequency returns one line string per path with the number of times trips travel it.
func (a *Aggregator) ReadRouteFrequency() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, path := range a.Paths() {
		f := geojson.NewLineStringFeature([][]float64{
			{path.Prev.Centroid[0], path.Prev.Centroid[1]},
			{path.Next.Centroid[0], path.Next.Centroid[1]},
		})
		f.SetProperty("frequency", path.Frequency)
		f.SetProperty("prev_stop_id", path.Prev.ID)
		f.SetProperty("prev_stop_name", path.Prev.Name)
		f.SetProperty("next_stop_id", path.Next.ID)
		f.SetProperty("next_stop_name", path.Next.Name)
		if path.Agency == nil {
			f.SetProperty("agency_id", nil)
			f.SetProperty("agency_name", nil)
		} else {
			f.SetProperty("agency_id", path.Agency.Id)
			f.SetProperty("agency_name", path.Agency.Name)
		}
		fc.AddFeature(f)
	}
	return fc
}

// StopRelation maps a stop to its group.
type StopRelation struct {
	StopID          string `csv:"stop_id"`
	StopName        string `csv:"stop_name"`
	SimilarStopID   string `csv:"similar_stop_id"`
	SimilarStopName string `csv:"similar_stop_name"`
}

// ReadStopRelations returns the group of every stop, in feed order.
func (a *Aggregator) ReadStopRelations() []StopRelation {
	relations := make([]StopRelation, 0, len(a.static.Stops))
	for _, stop := range a.static.Stops {
		g := a.unifier.Group(stop.Id)
		relations = append(relations, StopRelation{
			StopID:          stop.Id,
			StopName:        stop.Name,
			SimilarStopID:   g.ID,
			SimilarStopName: g.Name,
		})
	}
	return relations
}
