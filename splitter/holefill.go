package splitter

// minHoleFillSize is the smallest tile-set cardinality that can possibly
// enclose an interior cell under 4-connectivity (§4.3).
const minHoleFillSize = 8

func tileBBox(tiles []Tile) (minX, minY, maxX, maxY int) {
	first := true
	for _, t := range tiles {
		x, y := t.Unpack()
		ix, iy := int(x), int(y)
		if first {
			minX, maxX, minY, maxY = ix, ix, iy, iy
			first = false
			continue
		}
		if ix < minX {
			minX = ix
		}
		if ix > maxX {
			maxX = ix
		}
		if iy < minY {
			minY = iy
		}
		if iy > maxY {
			maxY = iy
		}
	}
	return
}

// HoleFill implements §4.3: given the tile set of a single way or relation,
// flood-fills the negative space of its bounding box (enlarged by 2 in every
// direction) from the north-west corner; any cell the flood never reaches is
// an interior hole. Returns the tile set augmented with any holes found, and
// the holes alone (for marking the modified-tile set). Below the §4.3
// threshold of 8 tiles, no hole can exist under 4-connectivity and the input
// is returned unchanged.
func HoleFill(tiles []Tile) (filled []Tile, holes []Tile) {
	if len(tiles) < minHoleFillSize {
		return tiles, nil
	}

	minX, minY, maxX, maxY := tileBBox(tiles)
	minX -= 2
	minY -= 2
	maxX += 2
	maxY += 2
	width := maxX - minX + 1
	height := maxY - minY + 1

	idx := func(x, y int) int { return (y-minY)*width + (x - minX) }

	occupied := make([]bool, width*height)
	for _, t := range tiles {
		x, y := t.Unpack()
		occupied[idx(int(x), int(y))] = true
	}

	exterior := make([]bool, width*height)
	stack := [][2]int{{minX, minY}}
	exterior[idx(minX, minY)] = true

	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range dirs {
			nx, ny := cur[0]+d[0], cur[1]+d[1]
			if nx < minX || nx > maxX || ny < minY || ny > maxY {
				continue
			}
			ni := idx(nx, ny)
			if occupied[ni] || exterior[ni] {
				continue
			}
			exterior[ni] = true
			stack = append(stack, [2]int{nx, ny})
		}
	}

	filled = append(filled, tiles...)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			ni := idx(x, y)
			if !occupied[ni] && !exterior[ni] {
				hole := PackTile(uint32(x), uint32(y))
				holes = append(holes, hole)
				filled = append(filled, hole)
			}
		}
	}

	return sortUniqueTiles(filled), holes
}
