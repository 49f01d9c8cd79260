package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jamespfennell/gtfsgo"
)

// ZipBuilder builds GTFS static feeds in memory. Adding a file twice replaces its content.
type ZipBuilder struct {
	m map[string]string
}

// NewZipBuilder returns a builder holding the required tables with header rows only.
func NewZipBuilder() *ZipBuilder {
	return (&ZipBuilder{m: map[string]string{}}).Add(
		"agency.txt", "agency_id,agency_name,agency_url,agency_timezone",
	).Add(
		"calendar.txt", "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
	).Add(
		"routes.txt", "route_id,agency_id,route_short_name,route_long_name,route_type",
	).Add(
		"stops.txt", "stop_id,stop_name,stop_lat,stop_lon",
	).Add(
		"trips.txt", "route_id,service_id,trip_id",
	).Add(
		"stop_times.txt", "trip_id,departure_time,stop_id,stop_sequence",
	)
}

// NewZipBuilderWithDefaults returns a builder for a feed with one agency, route, service, trip and
// two stops visited by the trip.
func NewZipBuilderWithDefaults() *ZipBuilder {
	return NewZipBuilder().Add(
		"agency.txt",
		"agency_id,agency_name,agency_url,agency_timezone",
		"agency_id,Agency,http://example.com,Asia/Tokyo",
	).Add(
		"calendar.txt",
		"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
		"service_id,1,1,1,1,1,1,1,20220504,20220507",
	).Add(
		"routes.txt",
		"route_id,agency_id,route_short_name,route_long_name,route_type",
		"route_id,agency_id,R,Route,3",
	).Add(
		"stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon",
		"stop_1,Stop 1,35.0,139.0",
		"stop_2,Stop 2,35.1,139.1",
	).Add(
		"trips.txt",
		"route_id,service_id,trip_id",
		"route_id,service_id,trip_id",
	).Add(
		"stop_times.txt",
		"trip_id,departure_time,stop_id,stop_sequence",
		"trip_id,08:00:00,stop_1,1",
		"trip_id,08:05:00,stop_2,2",
	)
}

func (z *ZipBuilder) Add(fileName string, fileContent ...string) *ZipBuilder {
	z.m[fileName] = strings.Join(fileContent, "\n")
	return z
}

func (z *ZipBuilder) Remove(fileName string) *ZipBuilder {
	delete(z.m, fileName)
	return z
}

func (z *ZipBuilder) Build() []byte {
	var fileNames []string
	for fileName := range z.m {
		fileNames = append(fileNames, fileName)
	}
	sort.Strings(fileNames)
	var b bytes.Buffer
	zipWriter := zip.NewWriter(&b)
	for _, fileName := range fileNames {
		fileWriter, err := zipWriter.Create(fileName)
		if err != nil {
			panic(err)
		}
		if _, err := io.Copy(fileWriter, bytes.NewBufferString(z.m[fileName])); err != nil {
			panic(err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		panic(err)
	}
	return b.Bytes()
}

// WriteDir writes the feed as plain files into a fresh temporary directory.
func (z *ZipBuilder) WriteDir(t *testing.T) string {
	dir := t.TempDir()
	for fileName, fileContent := range z.m {
		if err := os.WriteFile(filepath.Join(dir, fileName), []byte(fileContent), 0644); err != nil {
			t.Fatalf("failed to write %s: %s", fileName, err)
		}
	}
	return dir
}

func MustParse(t *testing.T, z *ZipBuilder) *gtfs.Static {
	t.Helper()
	result, err := gtfs.ParseStatic(z.Build())
	if err != nil {
		t.Fatalf("failed to parse GTFS static feed: %s", err)
	}
	return result
}
