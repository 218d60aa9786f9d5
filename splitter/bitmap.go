package splitter

import "github.com/RoaringBitmap/roaring"

// ModifiedSet is the sparse 32-bit tile set scheduled for emission (§3,
// "Modified-tile set"). It must handle the full 32-bit packed-tile-id
// range cheaply even though only a tiny fraction of tiles are ever set,
// which is exactly what a Roaring bitmap is built for — the same
// structure the teacher uses (as roaring64, for 64-bit Hilbert tile ids)
// to track tile coverage in its own bitmap.go.
type ModifiedSet struct {
	bits *roaring.Bitmap
}

// NewModifiedSet returns an empty modified-tile set.
func NewModifiedSet() *ModifiedSet {
	return &ModifiedSet{bits: roaring.New()}
}

// Set marks tile t as modified.
func (s *ModifiedSet) Set(t Tile) {
	s.bits.Add(uint32(t))
}

// SetAll marks every tile in tiles as modified.
func (s *ModifiedSet) SetAll(tiles []Tile) {
	for _, t := range tiles {
		s.Set(t)
	}
}

// Clear removes tile t from the set.
func (s *ModifiedSet) Clear(t Tile) {
	s.bits.Remove(uint32(t))
}

// Test reports whether tile t is currently marked.
func (s *ModifiedSet) Test(t Tile) bool {
	return s.bits.Contains(uint32(t))
}

// Cardinality returns the number of distinct tiles marked.
func (s *ModifiedSet) Cardinality() uint64 {
	return s.bits.GetCardinality()
}

// NextSetBit returns the smallest marked tile >= from, and whether one exists.
func (s *ModifiedSet) NextSetBit(from Tile) (Tile, bool) {
	it := s.bits.Iterator()
	it.AdvanceIfNeeded(uint32(from))
	if !it.HasNext() {
		return 0, false
	}
	return Tile(it.Next()), true
}

// tileIterator yields marked tiles in ascending packed order (§8, property 8).
type tileIterator struct {
	it roaring.IntPeekable
}

// Iterator returns an ascending-order iterator over the set's tiles.
func (s *ModifiedSet) Iterator() *tileIterator {
	return &tileIterator{it: s.bits.Iterator()}
}

func (i *tileIterator) HasNext() bool { return i.it.HasNext() }
func (i *tileIterator) Next() Tile    { return Tile(i.it.Next()) }

// Slice materialises every marked tile in ascending order.
func (s *ModifiedSet) Slice() []Tile {
	out := make([]Tile, 0, s.bits.GetCardinality())
	it := s.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

// Clone returns an independent copy of the set.
func (s *ModifiedSet) Clone() *ModifiedSet {
	return &ModifiedSet{bits: s.bits.Clone()}
}

// And intersects this set with another, in place.
func (s *ModifiedSet) And(other *ModifiedSet) {
	s.bits.And(other.bits)
}

// Or unions other into this set, in place.
func (s *ModifiedSet) Or(other *ModifiedSet) {
	s.bits.Or(other.bits)
}
