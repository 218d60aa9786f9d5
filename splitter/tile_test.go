package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackTile(t *testing.T) {
	for _, c := range []struct{ x, y uint32 }{
		{0, 0}, {1, 0}, {0, 1}, {4290, 2866}, {65535, 65535},
	} {
		tile := PackTile(c.x, c.y)
		x, y := tile.Unpack()
		assert.Equal(t, c.x, x)
		assert.Equal(t, c.y, y)
		assert.Equal(t, c.x, tile.X())
		assert.Equal(t, c.y, tile.Y())
	}
}

func TestPackOrdering(t *testing.T) {
	assert.Less(t, PackTile(0, 1), PackTile(0, 2))
	assert.Less(t, PackTile(0, 5), PackTile(1, 0))
}

func TestLonLatRoundTrip(t *testing.T) {
	// scenario A from §8: lon=8.54, lat=47.37, zoom=13 -> tile (4290, 2868)
	x := LonToTileX(8.54, 13)
	y := LatToTileY(47.37, 13)
	assert.Equal(t, uint32(4290), x)
	assert.Equal(t, uint32(2868), y)
}

func TestLonLatClamp(t *testing.T) {
	assert.Equal(t, uint32(0), LonToTileX(-200, 4))
	assert.Equal(t, uint32(15), LonToTileX(200, 4))
	assert.Equal(t, uint32(0), LatToTileY(89, 4))
}

func TestTileInverse(t *testing.T) {
	for z := uint8(0); z < 10; z++ {
		for x := uint32(0); x < worldSize(z); x++ {
			lon := TileXToLon(x, z)
			assert.Equal(t, x, LonToTileX(lon+1e-9, z))
		}
	}
}

func TestBoundNoBorder(t *testing.T) {
	b := Bound(4290, 2868, 13, 0)
	assert.True(t, b.Min[0] < 8.54 && b.Max[0] > 8.54)
	assert.True(t, b.Min[1] < 47.37 && b.Max[1] > 47.37)
}

func TestBoundWithBorderIsLarger(t *testing.T) {
	plain := Bound(4290, 2866, 13, 0)
	bordered := Bound(4290, 2866, 13, 0.1)
	assert.True(t, bordered.Min[0] < plain.Min[0])
	assert.True(t, bordered.Max[0] > plain.Max[0])
	assert.True(t, bordered.Min[1] < plain.Min[1])
	assert.True(t, bordered.Max[1] > plain.Max[1])
}

func TestBoundClipsToWorld(t *testing.T) {
	b := Bound(0, 0, 2, 1.0)
	assert.Equal(t, -180.0, b.Min[0])
	assert.LessOrEqual(t, b.Max[1], 85.0511288)
}

func TestParentTile(t *testing.T) {
	base := PackTile(10, 20)
	assert.Equal(t, PackTile(5, 10), ParentTile(base, 13, 12))
	assert.Equal(t, PackTile(2, 5), ParentTile(base, 13, 11))
}
