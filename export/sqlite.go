package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamespfennell/gtfsgo/aggregate"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE similar_stops (
    similar_stop_id TEXT NOT NULL,
    similar_stop_name TEXT NOT NULL,
    lon REAL NOT NULL,
    lat REAL NOT NULL,
    count INTEGER NOT NULL
);

CREATE TABLE stop_relations (
    stop_id TEXT NOT NULL,
    stop_name TEXT NOT NULL,
    similar_stop_id TEXT NOT NULL,
    similar_stop_name TEXT NOT NULL
);

CREATE TABLE paths (
    path_id TEXT NOT NULL,
    frequency INTEGER NOT NULL,
    prev_stop_id TEXT NOT NULL,
    prev_stop_name TEXT NOT NULL,
    prev_lon REAL NOT NULL,
    prev_lat REAL NOT NULL,
    next_stop_id TEXT NOT NULL,
    next_stop_name TEXT NOT NULL,
    next_lon REAL NOT NULL,
    next_lat REAL NOT NULL,
    agency_id TEXT,
    agency_name TEXT,
PRIMARY KEY (path_id)
);`

// WriteSQLite writes the stop groups, stop relations and paths of the aggregation into a new SQLite
// database at path, replacing any existing file.
func WriteSQLite(ctx context.Context, path string, a *aggregate.Aggregator) error {
	tempPath, err := writeSQLiteTemp(ctx, path, a)
	if err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// writeSQLiteTemp writes the database next to path under a temporary name and returns that name.
func writeSQLiteTemp(ctx context.Context, path string, a *aggregate.Aggregator) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return "", err
	}
	tempPath := f.Name()
	f.Close()
	if err := writeSQLite(ctx, tempPath, a); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

func writeSQLite(ctx context.Context, path string, a *aggregate.Aggregator) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, g := range a.Unifier().Groups() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO similar_stops (similar_stop_id, similar_stop_name, lon, lat, count) VALUES (?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.Centroid[0], g.Centroid[1], g.MemberCount,
		); err != nil {
			return fmt.Errorf("inserting similar stop %s: %w", g.ID, err)
		}
	}
	for _, r := range a.ReadStopRelations() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stop_relations (stop_id, stop_name, similar_stop_id, similar_stop_name) VALUES (?, ?, ?, ?)`,
			r.StopID, r.StopName, r.SimilarStopID, r.SimilarStopName,
		); err != nil {
			return fmt.Errorf("inserting stop relation %s: %w", r.StopID, err)
		}
	}
	for _, p := range a.Paths() {
		var agencyID, agencyName sql.NullString
		if p.Agency != nil {
			agencyID = sql.NullString{String: p.Agency.Id, Valid: true}
			agencyName = sql.NullString{String: p.Agency.Name, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paths (path_id, frequency, prev_stop_id, prev_stop_name, prev_lon, prev_lat,
			next_stop_id, next_stop_name, next_lon, next_lat, agency_id, agency_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Frequency,
			p.Prev.ID, p.Prev.Name, p.Prev.Centroid[0], p.Prev.Centroid[1],
			p.Next.ID, p.Next.Name, p.Next.Centroid[0], p.Next.Centroid[1],
			agencyID, agencyName,
		); err != nil {
			return fmt.Errorf("inserting path %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}
