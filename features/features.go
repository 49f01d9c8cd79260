// Package features renders the stops and routes of a GTFS static feed as GeoJSON.
package features

import (
	"log"
	"sort"

	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/warnings"
	geojson "github.com/paulmach/go.geojson"
)

// ReadStops returns one point per stop, in feed order, with the sorted IDs of the routes serving it.
//
// If ignoreNoRoute is set, stops that no trip serves are left out.
func ReadStops(static *gtfs.Static, ignoreNoRoute bool) *geojson.FeatureCollection {
	tripIDToRouteID := map[string]string{}
	for _, trip := range static.Trips {
		tripIDToRouteID[trip.ID] = trip.RouteID
	}
	stopIDToRouteIDs := map[string]map[string]bool{}
	for _, stopTime := range static.StopTimes {
		routeID, ok := tripIDToRouteID[stopTime.TripID]
		if !ok {
			continue
		}
		routeIDs := stopIDToRouteIDs[stopTime.StopID]
		if routeIDs == nil {
			routeIDs = map[string]bool{}
			stopIDToRouteIDs[stopTime.StopID] = routeIDs
		}
		routeIDs[routeID] = true
	}

	fc := geojson.NewFeatureCollection()
	for _, stop := range static.Stops {
		routeIDs := sortedKeys(stopIDToRouteIDs[stop.Id])
		if ignoreNoRoute && len(routeIDs) == 0 {
			continue
		}
		f := geojson.NewPointFeature([]float64{stop.Longitude, stop.Latitude})
		f.SetProperty("stop_id", stop.Id)
		f.SetProperty("stop_name", stop.Name)
		f.SetProperty("route_ids", routeIDs)
		fc.AddFeature(f)
	}
	return fc
}

// ReadRoutes returns the geometry of every route.
//
// If the feed has shapes and ignoreShapes is not set, each route is a multi line string built from
// the shapes of its trips, followed by one feature per shape that no trip uses. Otherwise each route is
// a line string through the stops of one of its trips.
func ReadRoutes(static *gtfs.Static, ignoreShapes bool) *geojson.FeatureCollection {
	if static.Shapes == nil || ignoreShapes {
		return readRoutesFromStopTimes(static)
	}
	return readRoutesFromShapes(static)
}

func readRoutesFromShapes(static *gtfs.Static) *geojson.FeatureCollection {
	shapeIDToShape := map[string]*gtfs.Shape{}
	for i := range static.Shapes {
		shapeIDToShape[static.Shapes[i].ID] = &static.Shapes[i]
	}
	routeIDToShapeIDs := map[string]map[string]bool{}
	for _, trip := range static.Trips {
		if trip.ShapeID == "" {
			continue
		}
		if _, ok := shapeIDToShape[trip.ShapeID]; !ok {
			log.Printf("%s", warnings.UnknownShape{TripID: trip.ID, ShapeID: trip.ShapeID})
			continue
		}
		shapeIDs := routeIDToShapeIDs[trip.RouteID]
		if shapeIDs == nil {
			shapeIDs = map[string]bool{}
			routeIDToShapeIDs[trip.RouteID] = shapeIDs
		}
		shapeIDs[trip.ShapeID] = true
	}

	fc := geojson.NewFeatureCollection()
	usedShapeIDs := map[string]bool{}
	for i := range static.Routes {
		route := &static.Routes[i]
		shapeIDs := sortedKeys(routeIDToShapeIDs[route.Id])
		if len(shapeIDs) == 0 {
			continue
		}
		var lines [][][]float64
		for _, shapeID := range shapeIDs {
			lines = append(lines, shapeCoordinates(shapeIDToShape[shapeID]))
			usedShapeIDs[shapeID] = true
		}
		f := geojson.NewMultiLineStringFeature(lines...)
		f.SetProperty("route_id", route.Id)
		f.SetProperty("route_name", route.Name())
		f.SetProperty("route_type", int(route.Type))
		fc.AddFeature(f)
	}

	var orphanShapeIDs []string
	for shapeID := range shapeIDToShape {
		if !usedShapeIDs[shapeID] {
			orphanShapeIDs = append(orphanShapeIDs, shapeID)
		}
	}
	sort.Strings(orphanShapeIDs)
	for _, shapeID := range orphanShapeIDs {
		f := geojson.NewMultiLineStringFeature(shapeCoordinates(shapeIDToShape[shapeID]))
		f.SetProperty("route_id", nil)
		f.SetProperty("route_name", shapeID)
		f.SetProperty("route_type", nil)
		fc.AddFeature(f)
	}
	return fc
}

func shapeCoordinates(shape *gtfs.Shape) [][]float64 {
	coordinates := make([][]float64, 0, len(shape.Points))
	for _, point := range shape.Points {
		coordinates = append(coordinates, []float64{point.Longitude, point.Latitude})
	}
	return coordinates
}

func readRoutesFromStopTimes(static *gtfs.Static) *geojson.FeatureCollection {
	stopIDToStop := map[string]*gtfs.Stop{}
	for i := range static.Stops {
		stopIDToStop[static.Stops[i].Id] = &static.Stops[i]
	}
	tripIDToStopTimes := map[string][]gtfs.StopTime{}
	for _, stopTime := range static.StopTimes {
		if _, ok := stopIDToStop[stopTime.StopID]; !ok {
			continue
		}
		tripIDToStopTimes[stopTime.TripID] = append(tripIDToStopTimes[stopTime.TripID], stopTime)
	}
	// The representative trip of a route is its smallest trip ID with stop times.
	routeIDToTripID := map[string]string{}
	for _, trip := range static.Trips {
		if len(tripIDToStopTimes[trip.ID]) == 0 {
			continue
		}
		if current, ok := routeIDToTripID[trip.RouteID]; !ok || trip.ID < current {
			routeIDToTripID[trip.RouteID] = trip.ID
		}
	}

	fc := geojson.NewFeatureCollection()
	for i := range static.Routes {
		route := &static.Routes[i]
		tripID, ok := routeIDToTripID[route.Id]
		if !ok {
			continue
		}
		stopTimes := tripIDToStopTimes[tripID]
		sort.SliceStable(stopTimes, func(i, j int) bool {
			return stopTimes[i].StopSequence < stopTimes[j].StopSequence
		})
		coordinates := make([][]float64, 0, len(stopTimes))
		for _, stopTime := range stopTimes {
			stop := stopIDToStop[stopTime.StopID]
			coordinates = append(coordinates, []float64{stop.Longitude, stop.Latitude})
		}
		f := geojson.NewLineStringFeature(coordinates)
		f.SetProperty("route_id", route.Id)
		f.SetProperty("route_name", route.Name())
		f.SetProperty("route_type", int(route.Type))
		fc.AddFeature(f)
	}
	return fc
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
