package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModifiedSetSetClearTest(t *testing.T) {
	s := NewModifiedSet()
	assert.False(t, s.Test(PackTile(1, 1)))
	s.Set(PackTile(1, 1))
	assert.True(t, s.Test(PackTile(1, 1)))
	s.Clear(PackTile(1, 1))
	assert.False(t, s.Test(PackTile(1, 1)))
}

func TestModifiedSetCardinalityAndOrder(t *testing.T) {
	s := NewModifiedSet()
	tiles := []Tile{PackTile(5, 5), PackTile(1, 1), PackTile(3, 3)}
	s.SetAll(tiles)
	assert.Equal(t, uint64(3), s.Cardinality())

	slice := s.Slice()
	for i := 1; i < len(slice); i++ {
		assert.Less(t, slice[i-1], slice[i])
	}
	assert.ElementsMatch(t, tiles, slice)
}

func TestModifiedSetNextSetBit(t *testing.T) {
	s := NewModifiedSet()
	s.Set(PackTile(0, 5))
	s.Set(PackTile(0, 10))
	next, ok := s.NextSetBit(PackTile(0, 6))
	assert.True(t, ok)
	assert.Equal(t, PackTile(0, 10), next)

	_, ok = s.NextSetBit(PackTile(0, 11))
	assert.False(t, ok)
}

func TestModifiedSetCloneIsIndependent(t *testing.T) {
	s := NewModifiedSet()
	s.Set(PackTile(1, 1))
	clone := s.Clone()
	clone.Set(PackTile(2, 2))
	assert.False(t, s.Test(PackTile(2, 2)))
	assert.True(t, clone.Test(PackTile(2, 2)))
}

func TestModifiedSetAndOr(t *testing.T) {
	a := NewModifiedSet()
	a.SetAll([]Tile{PackTile(1, 1), PackTile(2, 2)})
	b := NewModifiedSet()
	b.SetAll([]Tile{PackTile(2, 2), PackTile(3, 3)})

	union := a.Clone()
	union.Or(b)
	assert.Equal(t, uint64(3), union.Cardinality())

	intersect := a.Clone()
	intersect.And(b)
	assert.Equal(t, uint64(1), intersect.Cardinality())
	assert.True(t, intersect.Test(PackTile(2, 2)))
}
