package aggregate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/internal/testutil"
	"github.com/jamespfennell/gtfsgo/unify"
	"github.com/jamespfennell/gtfsgo/warnings"
	geojson "github.com/paulmach/go.geojson"
)

func pathFeature(frequency int, prevID, prevName string, prev []float64, nextID, nextName string, next []float64, agencyID, agencyName interface{}) *geojson.Feature {
	f := geojson.NewLineStringFeature([][]float64{prev, next})
	f.SetProperty("frequency", frequency)
	f.SetProperty("prev_stop_id", prevID)
	f.SetProperty("prev_stop_name", prevName)
	f.SetProperty("next_stop_id", nextID)
	f.SetProperty("next_stop_name", nextName)
	f.SetProperty("agency_id", agencyID)
	f.SetProperty("agency_name", agencyName)
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.AddFeature(f)
	}
	return fc
}

func mustNew(t *testing.T, static *gtfs.Static, options Options) *Aggregator {
	t.Helper()
	a, err := New(static, options)
	if err != nil {
		t.Fatalf("New() returned error: %s", err)
	}
	return a
}

func TestOptions_Validate(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		options Options
		wantErr bool
	}{
		{desc: "no filters", options: DefaultOptions()},
		{desc: "valid date", options: Options{Date: "20220504"}},
		{desc: "invalid date", options: Options{Date: "2022-05-04"}, wantErr: true},
		{desc: "impossible date", options: Options{Date: "20220231"}, wantErr: true},
		{desc: "valid times", options: Options{BeginTime: "080000", EndTime: "280000"}},
		{desc: "times with colons", options: Options{BeginTime: "08:00:00", EndTime: "09:30:00"}},
		{desc: "begin only", options: Options{BeginTime: "080000"}, wantErr: true},
		{desc: "end only", options: Options{EndTime: "080000"}, wantErr: true},
		{desc: "minutes out of range", options: Options{BeginTime: "086000", EndTime: "090000"}, wantErr: true},
		{desc: "too short", options: Options{BeginTime: "0800", EndTime: "090000"}, wantErr: true},
		{desc: "not digits", options: Options{BeginTime: "08h00m", EndTime: "090000"}, wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.options.Validate()
			if !tc.wantErr {
				if err != nil {
					t.Errorf("Validate() returned error: %s", err)
				}
				return
			}
			var invalid gtfs.InvalidDateError
			if !errors.As(err, &invalid) {
				t.Errorf("Validate() error = %v, want InvalidDateError", err)
			}
		})
	}
}

func TestNew_ValidatesBeforeProcessing(t *testing.T) {
	_, err := New(&gtfs.Static{}, Options{Date: "tomorrow"})
	var invalid gtfs.InvalidDateError
	if !errors.As(err, &invalid) {
		t.Errorf("New() error = %v, want InvalidDateError", err)
	}
}

func TestReadRouteFrequency(t *testing.T) {
	twoTrips := testutil.NewZipBuilderWithDefaults().Add(
		"trips.txt",
		"route_id,service_id,trip_id",
		"route_id,service_id,trip_id",
		"route_id,service_id,trip_2",
	).Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,stop_1,1",
		"trip_id,08:05:00,stop_2,2",
		"trip_2,09:05:00,stop_1,2",
		"trip_2,09:00:00,stop_2,1",
		"trip_2,09:10:00,stop_1,3",
	)
	forward := func(frequency int) *geojson.Feature {
		return pathFeature(frequency, "stop_1", "Stop 1", []float64{139.0, 35.0}, "stop_2", "Stop 2", []float64{139.1, 35.1}, "agency_id", "Agency")
	}
	backward := func(frequency int) *geojson.Feature {
		return pathFeature(frequency, "stop_2", "Stop 2", []float64{139.1, 35.1}, "stop_1", "Stop 1", []float64{139.0, 35.0}, "agency_id", "Agency")
	}
	for _, tc := range []struct {
		desc     string
		z        *testutil.ZipBuilder
		options  Options
		expected *geojson.FeatureCollection
	}{
		{
			desc:     "single trip",
			z:        testutil.NewZipBuilderWithDefaults(),
			options:  DefaultOptions(),
			expected: collection(forward(1)),
		},
		{
			desc:    "paths sorted by id",
			z:       twoTrips,
			options: DefaultOptions(),
			// trip_2 visits stop_2, stop_1, stop_1.
			expected: collection(
				pathFeature(1, "stop_1", "Stop 1", []float64{139.0, 35.0}, "stop_1", "Stop 1", []float64{139.0, 35.0}, "agency_id", "Agency"),
				forward(1),
				backward(1),
			),
		},
		{
			desc:     "date in service",
			z:        testutil.NewZipBuilderWithDefaults(),
			options:  Options{Unify: unify.DefaultOptions(), Date: "20220505"},
			expected: collection(forward(1)),
		},
		{
			desc:     "date before service",
			z:        testutil.NewZipBuilderWithDefaults(),
			options:  Options{Unify: unify.DefaultOptions(), Date: "20210530"},
			expected: collection(),
		},
		{
			desc:     "time window contains both stops",
			z:        testutil.NewZipBuilderWithDefaults(),
			options:  Options{Unify: unify.DefaultOptions(), BeginTime: "080000", EndTime: "080500"},
			expected: collection(),
		},
		{
			desc:     "end time is exclusive",
			z:        testutil.NewZipBuilderWithDefaults(),
			options:  Options{Unify: unify.DefaultOptions(), BeginTime: "080000", EndTime: "080501"},
			expected: collection(forward(1)),
		},
		{
			desc: "empty departure times are dropped by the time filter",
			z: testutil.NewZipBuilderWithDefaults().Add(
				"stop_times.txt",
				"trip_id,departure_time,stop_id,stop_sequence",
				"trip_id,08:00:00,stop_1,1",
				"trip_id,,stop_2,2",
				"trip_id,08:10:00,stop_1,3",
			),
			options: Options{Unify: unify.DefaultOptions(), BeginTime: "000000", EndTime: "240000"},
			expected: collection(
				pathFeature(1, "stop_1", "Stop 1", []float64{139.0, 35.0}, "stop_1", "Stop 1", []float64{139.0, 35.0}, "agency_id", "Agency"),
			),
		},
		{
			desc: "unresolved agency",
			z: testutil.NewZipBuilderWithDefaults().Add(
				"routes.txt",
				"route_id,agency_id,route_short_name,route_long_name,route_type",
				"route_id,other_agency,R,Route,3",
			),
			options: DefaultOptions(),
			expected: collection(
				pathFeature(1, "stop_1", "Stop 1", []float64{139.0, 35.0}, "stop_2", "Stop 2", []float64{139.1, 35.1}, nil, nil),
			),
		},
		{
			desc: "unified stops",
			z: testutil.NewZipBuilderWithDefaults().Add(
				"stops.txt",
				"stop_id,stop_name,stop_lat,stop_lon",
				"stop_1,Stop 1,35.0,139.0",
				"stop_2,Stop 2,35.1,139.1",
				"stop_3,Stop 2,35.1,139.1",
			).Add(
				"trips.txt",
				"route_id,service_id,trip_id",
				"route_id,service_id,trip_id",
				"route_id,service_id,trip_2",
			).Add(
				"stop_times.txt",
				"trip_id,departure_time,stop_id,stop_sequence",
				"trip_id,08:00:00,stop_1,1",
				"trip_id,08:05:00,stop_2,2",
				"trip_2,09:00:00,stop_1,1",
				"trip_2,09:05:00,stop_3,2",
			),
			options:  DefaultOptions(),
			expected: collection(forward(2)),
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			a := mustNew(t, testutil.MustParse(t, tc.z), tc.options)
			actual := a.ReadRouteFrequency()
			if diff := cmp.Diff(actual, tc.expected); diff != "" {
				t.Errorf("not the same:\n%s", diff)
			}
		})
	}
}

func TestReadRouteFrequency_MalformedDepartureTime(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,stop_1,1",
		"trip_id,eight,stop_2,2",
	)
	static := testutil.MustParse(t, z)

	_, err := New(static, Options{BeginTime: "080000", EndTime: "090000"})
	var malformed gtfs.MalformedValueError
	if !errors.As(err, &malformed) {
		t.Fatalf("New() error = %v, want MalformedValueError", err)
	}
	if malformed.Value != "eight" || malformed.Row != 2 {
		t.Errorf("got %+v", malformed)
	}

	// Without a time filter the departure time is not read.
	if _, err := New(static, DefaultOptions()); err != nil {
		t.Errorf("New() without time filter returned error: %s", err)
	}
}

func TestReadRouteFrequency_MalformedDepartureTimeAfterSkippedRow(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,stop_1,1",
		",08:01:00,stop_1,2",
		"trip_id,eight,stop_2,3",
	)
	static := testutil.MustParse(t, z)

	_, err := New(static, Options{BeginTime: "080000", EndTime: "090000"})
	var malformed gtfs.MalformedValueError
	if !errors.As(err, &malformed) {
		t.Fatalf("New() error = %v, want MalformedValueError", err)
	}
	if malformed.Row != 3 {
		t.Errorf("Row = %d, want 3", malformed.Row)
	}
}

func TestReadRouteFrequency_FrequencySumsToPairCount(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon",
		"a,A,35.0,139.0",
		"b,B,35.1,139.1",
		"c,C,35.2,139.2",
		"d,D,35.3,139.3",
	).Add(
		"trips.txt",
		"route_id,service_id,trip_id",
		"route_id,service_id,t1",
		"route_id,service_id,t2",
		"route_id,service_id,t3",
	).Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"t1,08:00:00,a,1",
		"t1,08:01:00,b,2",
		"t1,08:02:00,c,3",
		"t1,08:03:00,d,4",
		"t2,09:00:00,d,1",
		"t2,09:01:00,c,2",
		"t2,09:02:00,b,3",
		"t3,10:00:00,b,1",
		"t3,10:01:00,c,2",
		"t3,10:02:00,a,3",
		"t3,10:03:00,b,4",
	)
	for _, options := range []Options{
		DefaultOptions(),
		{Unify: unify.Options{MaxDistanceDegree: unify.DefaultMaxDistanceDegree}},
	} {
		a := mustNew(t, testutil.MustParse(t, z), options)
		var sum int
		for _, path := range a.Paths() {
			sum += path.Frequency
		}
		// t1 has 3 pairs, t2 has 2 and t3 has 3.
		if sum != 8 {
			t.Errorf("options %+v: frequencies sum to %d, want 8", options, sum)
		}
	}
}

func TestReadRouteFrequency_UnknownStop(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,stop_1,1",
		"trip_id,08:02:00,ghost,2",
		"trip_id,08:05:00,stop_2,3",
	)
	a := mustNew(t, testutil.MustParse(t, z), DefaultOptions())

	if paths := a.Paths(); len(paths) != 0 {
		t.Errorf("got %d paths, want 0", len(paths))
	}
	expected := []warnings.StaticWarning{warnings.UnknownStop{TripID: "trip_id", StopID: "ghost"}}
	if diff := cmp.Diff(a.Warnings(), expected); diff != "" {
		t.Errorf("warnings not the same:\n%s", diff)
	}
}

func TestReadInterpolatedStops(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon",
		"stop_1,Stop 1,35.0,139.0",
		"stop_2,Stop 2,35.1,139.1",
		"stop_3,Stop 2,35.1,139.1",
	)
	static := testutil.MustParse(t, z)

	point := func(lon, lat float64, id, name string, count int) *geojson.Feature {
		f := geojson.NewPointFeature([]float64{lon, lat})
		f.SetProperty("similar_stop_name", name)
		f.SetProperty("similar_stop_id", id)
		f.SetProperty("count", count)
		return f
	}
	for _, tc := range []struct {
		desc     string
		options  Options
		expected *geojson.FeatureCollection
	}{
		{
			desc:    "unified",
			options: DefaultOptions(),
			expected: collection(
				point(139.0, 35.0, "stop_1", "Stop 1", 1),
				point(139.1, 35.1, "stop_2", "Stop 2", 2),
			),
		},
		{
			desc:    "not unified",
			options: Options{Unify: unify.Options{MaxDistanceDegree: 0.01}},
			expected: collection(
				point(139.0, 35.0, "stop_1", "Stop 1", 1),
				point(139.1, 35.1, "stop_2", "Stop 2", 1),
				point(139.1, 35.1, "stop_3", "Stop 2", 1),
			),
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			a := mustNew(t, static, tc.options)
			if diff := cmp.Diff(a.ReadInterpolatedStops(), tc.expected); diff != "" {
				t.Errorf("not the same:\n%s", diff)
			}
		})
	}
}

func TestReadStopRelations(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon",
		"stop_1,Stop 1,35.0,139.0",
		"stop_2,Stop 2,35.1,139.1",
		"stop_3,Stop 2,35.1,139.1",
	)
	a := mustNew(t, testutil.MustParse(t, z), DefaultOptions())

	expected := []StopRelation{
		{StopID: "stop_1", StopName: "Stop 1", SimilarStopID: "stop_1", SimilarStopName: "Stop 1"},
		{StopID: "stop_2", StopName: "Stop 2", SimilarStopID: "stop_2", SimilarStopName: "Stop 2"},
		{StopID: "stop_3", StopName: "Stop 2", SimilarStopID: "stop_2", SimilarStopName: "Stop 2"},
	}
	if diff := cmp.Diff(a.ReadStopRelations(), expected); diff != "" {
		t.Errorf("not the same:\n%s", diff)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	z := testutil.NewZipBuilderWithDefaults().Add(
		"stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon",
		"s_2,Hub,35.001,139.001",
		"s_1,Hub,35.0,139.0",
		"x,Far,35.5,139.5",
		"y,Far,35.505,139.5",
	).Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,s_1,1",
		"trip_id,08:05:00,x,2",
		"trip_id,08:10:00,y,3",
		"trip_id,08:15:00,s_2,4",
	)
	run := func() ([]byte, []byte) {
		a := mustNew(t, testutil.MustParse(t, z), Options{Unify: unify.Options{Enabled: true, Delimiter: "_", MaxDistanceDegree: 0.01}})
		stops, err := a.ReadInterpolatedStops().MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		routes, err := a.ReadRouteFrequency().MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		return stops, routes
	}
	stops1, routes1 := run()
	stops2, routes2 := run()
	if !bytes.Equal(stops1, stops2) {
		t.Errorf("interpolated stops differ between runs:\n%s\n%s", stops1, stops2)
	}
	if !bytes.Equal(routes1, routes2) {
		t.Errorf("route frequency differs between runs:\n%s\n%s", routes1, routes2)
	}
}
