package splitter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"zombiezen.com/go/sqlite"
)

func TestMBTilesWriterPutTileFlipsYAndReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := NewMBTilesWriter(path, 10)
	assert.NoError(t, err)

	assert.NoError(t, w.PutTile(3, 1, 2, []byte{1, 2, 3}))
	assert.NoError(t, w.Close())

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	assert.NoError(t, err)
	defer conn.Close()

	stmt := conn.Prep("SELECT tile_row, tile_data FROM tiles WHERE zoom_level = 3 AND tile_column = 1")
	has, err := stmt.Step()
	assert.NoError(t, err)
	assert.True(t, has)
	// (1<<3) - 1 - 2 == 5
	assert.Equal(t, int64(5), stmt.ColumnInt64(0))
	buf := make([]byte, stmt.ColumnLen(1))
	stmt.ColumnBytes(1, buf)
	assert.Equal(t, []byte{1, 2, 3}, buf)
}

func TestMBTilesWriterMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := NewMBTilesWriter(path, 10)
	assert.NoError(t, err)

	latest := time.Unix(1700000000, 0).UTC()
	meta := BuildMetadata("osmsplit", orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}}, 0, 14, latest)
	assert.NoError(t, w.WriteMetadata(meta))
	assert.NoError(t, w.Close())

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	assert.NoError(t, err)
	defer conn.Close()

	for _, required := range []string{"format", "minzoom", "maxzoom", "bounds", "latest_date", "name", "type", "version", "attribution"} {
		stmt := conn.Prep("SELECT value FROM metadata WHERE name = ?")
		stmt.BindText(1, required)
		has, err := stmt.Step()
		assert.NoError(t, err)
		assert.True(t, has, "missing metadata key %s", required)
		stmt.Reset()
	}
}

func TestBuildMetadataRequiredValues(t *testing.T) {
	latest := time.Unix(1700000000, 0).UTC()
	meta := BuildMetadata("osmsplit", orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}}, 2, 9, latest)
	assert.Equal(t, "application/vnd.openstreetmap.data+pbf", meta["format"])
	assert.Equal(t, "baselayer", meta["type"])
	assert.Equal(t, "0.2.0", meta["version"])
	assert.Equal(t, "2", meta["minzoom"])
	assert.Equal(t, "9", meta["maxzoom"])
}
