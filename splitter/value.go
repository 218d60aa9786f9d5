package splitter

// TileValue is the packed 64-bit map slot described in §3 of the design:
// a base tile (x,y), a one-bit marker distinguishing "set" from the zero
// default, an extended-mode flag, a 2-bit east/south neighbour bitmap, and
// either a 24-bit inline offset bitmap or an overflow-store index.
type TileValue uint64

const (
	shiftX          = 48
	shiftY          = 32
	bitOne          = TileValue(1) << 31
	bitExtended     = TileValue(1) << 30
	shiftNeighbours = 28
	maskNeighbours  = TileValue(0x3)
	maskPayload     = TileValue(0xFFFFFF) // 24 bits

	// NeighbourEast marks that the element's footprint also covers the tile to the east.
	NeighbourEast uint8 = 1
	// NeighbourSouth marks that the element's footprint also covers the tile to the south.
	NeighbourSouth uint8 = 2
)

// EncodeBase builds a fresh inline-mode value for a base tile and its
// east/south neighbour bits, with an empty inline payload.
func EncodeBase(x, y uint32, neighbours uint8) TileValue {
	return TileValue(uint64(x)<<shiftX|uint64(y)<<shiftY) | bitOne | (TileValue(neighbours) << shiftNeighbours)
}

// IsEmpty reports whether the slot has never been written (invariant 1 of §3).
func (v TileValue) IsEmpty() bool { return v == 0 }

// X returns the base tile's x coordinate.
func (v TileValue) X() uint32 { return uint32(v >> shiftX) }

// Y returns the base tile's y coordinate.
func (v TileValue) Y() uint32 { return uint32((v >> shiftY) & 0xFFFF) }

// BaseTile returns the packed (x,y) of the slot's base tile.
func (v TileValue) BaseTile() Tile { return PackTile(v.X(), v.Y()) }

// Extended reports whether the slot's payload is an overflow-store index.
func (v TileValue) Extended() bool { return v&bitExtended != 0 }

// Neighbours returns the 2-bit east/south neighbour flags.
func (v TileValue) Neighbours() uint8 {
	return uint8((v >> shiftNeighbours) & maskNeighbours)
}

// Payload returns the low 24 bits: an inline offset bitmap, or (if Extended)
// an overflow-store index.
func (v TileValue) Payload() uint32 {
	return uint32(v & maskPayload)
}

// withPayload replaces the low 24 bits, leaving base/flags/neighbours untouched.
func (v TileValue) withPayload(p uint32) TileValue {
	return (v &^ maskPayload) | (TileValue(p) & maskPayload)
}

// withExtended marks the slot extended and stores the overflow index.
func (v TileValue) withExtended(index uint32) TileValue {
	return v.withPayload(index) | bitExtended
}

// neighbourTiles returns the (at most 2) extra tiles implied by the
// neighbour bitmap: east (x+1,y) and/or south (x,y+1).
func neighbourTiles(x, y uint32, neighbours uint8) []Tile {
	var out []Tile
	if neighbours&NeighbourEast != 0 {
		out = append(out, PackTile(x+1, y))
	}
	if neighbours&NeighbourSouth != 0 {
		out = append(out, PackTile(x, y+1))
	}
	return out
}

// baseExpansion returns {base} ∪ neighbours(base), the minimum tile set any
// non-empty slot always carries (invariant 2 of §3).
func baseExpansion(x, y uint32, neighbours uint8) []Tile {
	out := []Tile{PackTile(x, y)}
	return append(out, neighbourTiles(x, y, neighbours)...)
}

// inlineOffsetForBit maps an inline payload bit index (0..23) to its (dx,dy)
// offset in the 5x5 window centred on the base tile, skipping the centre
// cell (ordinal 12). See §3's "Inline bitmap ordinal->relative mapping".
func inlineOffsetForBit(bit uint) (dx, dy int) {
	ordinal := bit
	if bit >= 12 {
		ordinal = bit + 1
	}
	dx = int(ordinal%5) - 2
	dy = int(ordinal/5) - 2
	return
}

// inlineBitForOffset is the inverse of inlineOffsetForBit; ok is false if the
// offset falls outside the 5x5 window or is the centre itself.
func inlineBitForOffset(dx, dy int) (bit uint, ok bool) {
	if dx < -2 || dx > 2 || dy < -2 || dy > 2 {
		return 0, false
	}
	ordinal := uint((dy+2)*5 + (dx + 2))
	if ordinal == 12 {
		return 0, false
	}
	if ordinal > 12 {
		return ordinal - 1, true
	}
	return ordinal, true
}

// inlineTiles decodes the set bits of an inline payload into absolute tiles
// relative to (x,y). Offsets that would underflow the tile grid are skipped.
func inlineTiles(x, y uint32, payload uint32) []Tile {
	var out []Tile
	for bit := uint(0); bit < 24; bit++ {
		if payload&(1<<bit) == 0 {
			continue
		}
		dx, dy := inlineOffsetForBit(bit)
		nx := int64(x) + int64(dx)
		ny := int64(y) + int64(dy)
		if nx < 0 || ny < 0 {
			continue
		}
		out = append(out, PackTile(uint32(nx), uint32(ny)))
	}
	return out
}
