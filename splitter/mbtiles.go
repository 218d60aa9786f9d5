package splitter

import (
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"zombiezen.com/go/sqlite"
)

// mbtilesSchema creates the standard MBTiles 1.3 tables (§6, "--mbtiles").
// The tile_row stored is always the TMS (bottom-left origin) row, the
// convention MBTiles readers expect, which is why PutTile flips the slippy
// y coordinate on the way in.
const mbtilesSchema = `
CREATE TABLE metadata (name text, value text);
CREATE TABLE tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);
CREATE UNIQUE INDEX metadata_name ON metadata (name);
CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
`

// MBTilesWriter accumulates tiles and metadata into a single SQLite database
// file, the alternative output form to a bare directory tree of per-tile PBF
// files (§6, "--mbtiles"). It is grounded on the teacher's ConvertMbtiles
// (pmtiles/convert.go), which reads an MBTiles file with the same schema
// through zombiezen.com/go/sqlite; this is the write-side mirror.
type MBTilesWriter struct {
	conn      *sqlite.Conn
	insert    *sqlite.Stmt
	open      bool
	batch     int
	batchSize int
}

// NewMBTilesWriter creates (overwriting) path and prepares the standard
// schema. batchSize controls how many PutTile calls are grouped into one
// SQLite transaction; a larger batch trades memory for write throughput.
func NewMBTilesWriter(path string, batchSize int) (*MBTilesWriter, error) {
	os.Remove(path)
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("creating mbtiles database %s: %w", path, err)
	}
	if err := execScript(conn, mbtilesSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating mbtiles schema: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	w := &MBTilesWriter{conn: conn, batchSize: batchSize}
	if err := w.begin(); err != nil {
		conn.Close()
		return nil, err
	}
	w.insert = conn.Prep("INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	return w, nil
}

func (w *MBTilesWriter) begin() error {
	stmt := w.conn.Prep("BEGIN")
	_, err := stmt.Step()
	if err != nil {
		return fmt.Errorf("beginning mbtiles transaction: %w", err)
	}
	return stmt.Reset()
}

func (w *MBTilesWriter) commit() error {
	stmt := w.conn.Prep("COMMIT")
	_, err := stmt.Step()
	if err != nil {
		return fmt.Errorf("committing mbtiles transaction: %w", err)
	}
	return stmt.Reset()
}

// PutTile writes one tile's contents, flipping the slippy-map y coordinate
// to TMS convention: tile_row = (1<<zoom) - 1 - y.
func (w *MBTilesWriter) PutTile(zoom uint8, x, y uint32, data []byte) error {
	row := (uint32(1) << zoom) - 1 - y
	w.insert.BindInt64(1, int64(zoom))
	w.insert.BindInt64(2, int64(x))
	w.insert.BindInt64(3, int64(row))
	w.insert.BindBytes(4, data)
	if _, err := w.insert.Step(); err != nil {
		return fmt.Errorf("inserting tile %d/%d/%d: %w", zoom, x, y, err)
	}
	if err := w.insert.Reset(); err != nil {
		return err
	}

	w.batch++
	if w.batch >= w.batchSize {
		if err := w.commit(); err != nil {
			return err
		}
		if err := w.begin(); err != nil {
			return err
		}
		w.batch = 0
	}
	return nil
}

// BuildMetadata assembles the required and recommended MBTiles metadata rows
// (§4.9, "MBTiles metadata requirements"): format, min/maxzoom, bounds,
// latest_date, name, type and version are mandatory; attribution credits the
// upstream OSM data per its license.
func BuildMetadata(name string, bound orb.Bound, minZoom, maxZoom uint8, latestDate time.Time) map[string]string {
	return map[string]string{
		"name":        name,
		"format":      "application/vnd.openstreetmap.data+pbf",
		"type":        "baselayer",
		"version":     "0.2.0",
		"minzoom":     fmt.Sprintf("%d", minZoom),
		"maxzoom":     fmt.Sprintf("%d", maxZoom),
		"bounds":      fmt.Sprintf("%f,%f,%f,%f", bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]),
		"latest_date": fmt.Sprintf("%d", latestDate.Unix()),
		"attribution": "OpenStreetMap Contributors ODbL 1.0",
	}
}

// WriteMetadata inserts every (name, value) pair into the metadata table.
func (w *MBTilesWriter) WriteMetadata(meta map[string]string) error {
	stmt := w.conn.Prep("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)")
	for k, v := range meta {
		stmt.BindText(1, k)
		stmt.BindText(2, v)
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("inserting metadata %s: %w", k, err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Close commits any pending batch and closes the underlying connection.
func (w *MBTilesWriter) Close() error {
	if w.open {
		return nil
	}
	w.open = true
	if err := w.commit(); err != nil {
		w.conn.Close()
		return err
	}
	return w.conn.Close()
}

func execScript(conn *sqlite.Conn, script string) error {
	for {
		stmt, trailing, err := conn.PrepareTransient(script)
		if err != nil {
			return err
		}
		if stmt == nil {
			return nil
		}
		_, err = stmt.Step()
		stmt.Finalize()
		if err != nil {
			return err
		}
		script = trailing
		if script == "" {
			return nil
		}
	}
}
