// Package export writes the feature collections and stop relations of a run to disk.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/jamespfennell/gtfsgo/aggregate"
	geojson "github.com/paulmach/go.geojson"
)

const (
	RoutesFile           = "routes.geojson"
	StopsFile            = "stops.geojson"
	AggregatedRoutesFile = "aggregated_routes.geojson"
	AggregatedStopsFile  = "aggregated_stops.geojson"
	RelationsFile        = "result.csv"
)

// Result holds the outputs of a run. Nil members are not written.
type Result struct {
	Routes           *geojson.FeatureCollection
	Stops            *geojson.FeatureCollection
	AggregatedRoutes *geojson.FeatureCollection
	AggregatedStops  *geojson.FeatureCollection
	Relations        []aggregate.StopRelation

	// SQLite, if set, is written together with the files.
	SQLite *SQLite
}

// SQLite is a database the aggregation is written to.
type SQLite struct {
	Path        string
	Aggregation *aggregate.Aggregator
}

// Document is one encoded part of a result.
type Document struct {
	Name        string
	ContentType string
	Content     []byte
}

// Encode encodes every present part of the result under the file name it is written with.
func (r *Result) Encode() ([]Document, error) {
	var documents []Document
	for _, fc := range []struct {
		name string
		fc   *geojson.FeatureCollection
	}{
		{RoutesFile, r.Routes},
		{StopsFile, r.Stops},
		{AggregatedRoutesFile, r.AggregatedRoutes},
		{AggregatedStopsFile, r.AggregatedStops},
	} {
		if fc.fc == nil {
			continue
		}
		b, err := fc.fc.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", fc.name, err)
		}
		documents = append(documents, Document{fc.name, "application/geo+json", b})
	}
	if r.Relations != nil {
		var b bytes.Buffer
		if err := gocsv.Marshal(r.Relations, &b); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", RelationsFile, err)
		}
		documents = append(documents, Document{RelationsFile, "text/csv; charset=utf-8", b.Bytes()})
	}
	return documents, nil
}

type pendingFile struct {
	tempPath string
	path     string
}

// Write writes the result into dir, creating it if needed.
//
// Every file, and the SQLite database if one is set, is first written under a temporary name and only
// renamed into place once all of them have been written. If a rename fails the files already renamed
// are removed.
func Write(ctx context.Context, dir string, r Result) error {
	documents, err := r.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var pending []pendingFile
	cleanUp := func() {
		for _, f := range pending {
			os.Remove(f.tempPath)
		}
	}
	for _, d := range documents {
		tempPath, err := writeTemp(dir, d)
		if err != nil {
			cleanUp()
			return err
		}
		pending = append(pending, pendingFile{tempPath, filepath.Join(dir, d.Name)})
	}
	if r.SQLite != nil {
		tempPath, err := writeSQLiteTemp(ctx, r.SQLite.Path, r.SQLite.Aggregation)
		if err != nil {
			cleanUp()
			return fmt.Errorf("failed to write %s: %w", r.SQLite.Path, err)
		}
		pending = append(pending, pendingFile{tempPath, r.SQLite.Path})
	}
	for i, f := range pending {
		if err := os.Rename(f.tempPath, f.path); err != nil {
			cleanUp()
			for _, renamed := range pending[:i] {
				os.Remove(renamed.path)
			}
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}
	return nil
}

func writeTemp(dir string, d Document) (string, error) {
	f, err := os.CreateTemp(dir, "."+d.Name+"-*")
	if err != nil {
		return "", err
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if _, err := f.Write(d.Content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", d.Name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", d.Name, err)
	}
	return f.Name(), nil
}
