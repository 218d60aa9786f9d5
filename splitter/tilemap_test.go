package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPutGet(t *testing.T) {
	for _, m := range []Map{newHashMap(0), newArrayMap(1000)} {
		assert.NoError(t, m.Put(1, 10, 20, 0))
		v := m.Get(1)
		assert.False(t, v.IsEmpty())
		assert.Equal(t, uint32(10), v.X())
		assert.Equal(t, uint32(20), v.Y())
		assert.True(t, m.Get(2).IsEmpty())
	}
}

func TestMapGetAllTilesIncludesNeighbours(t *testing.T) {
	for _, m := range []Map{newHashMap(0), newArrayMap(1000)} {
		assert.NoError(t, m.Put(1, 10, 20, NeighbourEast|NeighbourSouth))
		tiles, ok := m.GetAllTiles(1)
		assert.True(t, ok)
		assert.ElementsMatch(t, []Tile{PackTile(10, 20), PackTile(11, 20), PackTile(10, 21)}, tiles)
	}
}

func TestMapUpdateInlineStaysInline(t *testing.T) {
	for _, m := range []Map{newHashMap(0), newArrayMap(1000)} {
		assert.NoError(t, m.Put(1, 10, 20, 0))
		assert.NoError(t, m.UpdateInt(1, []Tile{PackTile(11, 21), PackTile(9, 19)}))
		tiles, ok := m.GetAllTiles(1)
		assert.True(t, ok)
		assert.ElementsMatch(t, []Tile{PackTile(10, 20), PackTile(11, 21), PackTile(9, 19)}, tiles)
	}
}

func TestMapUpdateTransitionsToExtended(t *testing.T) {
	for _, m := range []Map{newHashMap(0), newArrayMap(1000)} {
		assert.NoError(t, m.Put(1, 100, 100, 0))
		// a tile far outside the 5x5 inline window forces extended mode
		assert.NoError(t, m.UpdateInt(1, []Tile{PackTile(200, 200)}))
		tiles, ok := m.GetAllTiles(1)
		assert.True(t, ok)
		assert.ElementsMatch(t, []Tile{PackTile(100, 100), PackTile(200, 200)}, tiles)
	}
}

func TestMapUpdateIsIdempotentAndCommutative(t *testing.T) {
	build := func(order []Tile) []Tile {
		m := newHashMap(0)
		_ = m.Put(1, 10, 20, 0)
		for _, t := range order {
			_ = m.UpdateInt(1, []Tile{t})
		}
		tiles, _ := m.GetAllTiles(1)
		return tiles
	}
	a := build([]Tile{PackTile(11, 20), PackTile(9, 18)})
	b := build([]Tile{PackTile(9, 18), PackTile(11, 20)})
	assert.ElementsMatch(t, a, b)

	m := newHashMap(0)
	_ = m.Put(1, 10, 20, 0)
	_ = m.UpdateInt(1, []Tile{PackTile(11, 20)})
	first, _ := m.GetAllTiles(1)
	_ = m.UpdateInt(1, []Tile{PackTile(11, 20)})
	second, _ := m.GetAllTiles(1)
	assert.ElementsMatch(t, first, second)
}

func TestMapUpdatePastExtensionAppendsToOverflow(t *testing.T) {
	m := newHashMap(0)
	_ = m.Put(1, 100, 100, 0)
	_ = m.UpdateInt(1, []Tile{PackTile(200, 200)}) // forces extended
	before, _ := m.GetAllTiles(1)
	_ = m.UpdateInt(1, []Tile{PackTile(300, 300)})
	after, _ := m.GetAllTiles(1)
	for _, tile := range before {
		assert.Contains(t, after, tile)
	}
	assert.Contains(t, after, PackTile(300, 300))
}

func TestArrayMapIDOutOfRange(t *testing.T) {
	m := newArrayMap(10)
	assert.ErrorIs(t, m.Put(11, 1, 1, 0), ErrIDOutOfRange)
}

func TestHashMapCapacityExhausted(t *testing.T) {
	m := newHashMap(2)
	var err error
	for i := uint64(0); i < 10 && err == nil; i++ {
		err = m.Put(i, 1, 1, 0)
	}
	assert.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestMapKeys(t *testing.T) {
	m := newHashMap(0)
	_ = m.Put(1, 1, 1, 0)
	_ = m.Put(2, 2, 2, 0)
	assert.ElementsMatch(t, []uint64{1, 2}, m.Keys())
}
