package splitter

import "sort"

// maxOverflowIndex is the largest index addressable by the 24-bit payload
// field (§3, "Overflow store").
const maxOverflowIndex = 1<<24 - 1

// OverflowStore is a growable, append-only arena of deduplicated tile-id
// arrays. Map slots reference an entry by its index rather than a pointer,
// so relations (which may reference relations) never form a cyclic object
// graph — all cross-references are id/index-keyed (§9, "Arena + index").
type OverflowStore struct {
	entries [][]Tile
}

// NewOverflowStore creates an empty overflow arena.
func NewOverflowStore() *OverflowStore {
	return &OverflowStore{}
}

// sortUniqueTiles sorts tiles ascending and removes duplicates in place.
func sortUniqueTiles(tiles []Tile) []Tile {
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] < tiles[j] })
	out := tiles[:0]
	var last Tile
	haveLast := false
	for _, t := range tiles {
		if haveLast && t == last {
			continue
		}
		out = append(out, t)
		last = t
		haveLast = true
	}
	return out
}

// Alloc stores a new, deduplicated tile set and returns its arena index.
func (s *OverflowStore) Alloc(tiles []Tile) (uint32, error) {
	if len(s.entries) > maxOverflowIndex {
		return 0, ErrOverflowStoreSaturated
	}
	cp := make([]Tile, len(tiles))
	copy(cp, tiles)
	s.entries = append(s.entries, sortUniqueTiles(cp))
	return uint32(len(s.entries) - 1), nil
}

// Get returns a copy of the full, deduplicated tile set stored at index.
func (s *OverflowStore) Get(index uint32) []Tile {
	if int(index) >= len(s.entries) {
		return nil
	}
	out := make([]Tile, len(s.entries[index]))
	copy(out, s.entries[index])
	return out
}

// Union merges extra tiles into the entry at index, deduplicating the result.
// Per invariant 5 of §3, once a slot is extended, later updates must append
// to its overflow entry rather than touch the slot's inline bits again.
func (s *OverflowStore) Union(index uint32, extra []Tile) {
	if int(index) >= len(s.entries) {
		return
	}
	merged := append(s.entries[index], extra...)
	s.entries[index] = sortUniqueTiles(merged)
}

// Len returns the number of entries currently allocated.
func (s *OverflowStore) Len() int {
	return len(s.entries)
}
