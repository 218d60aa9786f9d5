package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func squareRing(x0, y0, size uint32) []Tile {
	var tiles []Tile
	for x := x0; x < x0+size; x++ {
		tiles = append(tiles, PackTile(x, y0))
		tiles = append(tiles, PackTile(x, y0+size-1))
	}
	for y := y0 + 1; y < y0+size-1; y++ {
		tiles = append(tiles, PackTile(x0, y))
		tiles = append(tiles, PackTile(x0+size-1, y))
	}
	return sortUniqueTiles(tiles)
}

func TestHoleFillBelowThreshold(t *testing.T) {
	tiles := []Tile{PackTile(5, 5), PackTile(6, 5)}
	filled, holes := HoleFill(tiles)
	assert.Equal(t, tiles, filled)
	assert.Empty(t, holes)
}

func TestHoleFillSquareRing(t *testing.T) {
	ring := squareRing(10, 10, 4) // 12 perimeter tiles, 4 interior
	assert.GreaterOrEqual(t, len(ring), minHoleFillSize)

	filled, holes := HoleFill(ring)

	expectedHoles := []Tile{
		PackTile(11, 11), PackTile(12, 11),
		PackTile(11, 12), PackTile(12, 12),
	}
	assert.ElementsMatch(t, expectedHoles, holes)

	for _, h := range expectedHoles {
		assert.Contains(t, filled, h)
	}

	minX, minY, maxX, maxY := tileBBox(ring)
	for _, tile := range filled {
		x, y := tile.Unpack()
		assert.GreaterOrEqual(t, int(x), minX)
		assert.LessOrEqual(t, int(x), maxX)
		assert.GreaterOrEqual(t, int(y), minY)
		assert.LessOrEqual(t, int(y), maxY)
	}
}

func TestHoleFillNoFalsePositivesOnConvexBlob(t *testing.T) {
	// a solid 3x3 block has no interior hole
	var tiles []Tile
	for x := uint32(0); x < 3; x++ {
		for y := uint32(0); y < 3; y++ {
			tiles = append(tiles, PackTile(20+x, 20+y))
		}
	}
	_, holes := HoleFill(tiles)
	assert.Empty(t, holes)
}
