package splitter

import "sort"

// ZoomMap is the per-tile remap table produced by the optimisation pass
// (§4.7): a base-zoom tile present as a key has been coalesced into its
// ancestor at the given (coarser) zoom.
type ZoomMap map[Tile]uint8

// BuildHistogram computes counts[tile] = number of node keys whose tile set
// contains tile, the input the optimisation pass coalesces against.
func BuildHistogram(nmap Map) map[Tile]int {
	counts := make(map[Tile]int)
	for _, key := range nmap.Keys() {
		tiles, ok := nmap.GetAllTiles(key)
		if !ok {
			continue
		}
		for _, t := range tiles {
			counts[t]++
		}
	}
	return counts
}

func sortedTileKeys(counts map[Tile]int) []Tile {
	out := make([]Tile, 0, len(counts))
	for t := range counts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// siblingsAtZoomOut returns every tile present in counts that shares t's
// ancestor at zoom (baseZoom-z) — the set Q of §4.7, "sibling tiles that
// would merge with T".
func siblingsAtZoomOut(t Tile, baseZoom, z uint8, counts map[Tile]int) []Tile {
	parent := ParentTile(t, baseZoom, baseZoom-z)
	px, py := parent.Unpack()
	side := uint32(1) << z
	var q []Tile
	for dx := uint32(0); dx < side; dx++ {
		for dy := uint32(0); dy < side; dy++ {
			cand := PackTile(px*side+dx, py*side+dy)
			if _, ok := counts[cand]; ok {
				q = append(q, cand)
			}
		}
	}
	return q
}

// Optimize implements §4.7: for each unmapped, under-populated base-zoom
// tile, walk zoom-out steps z=1..4 and stop at the first (finest) ancestor
// whose pooled node count exceeds nodeLimit while staying under 4x it, or at
// the last step tried, committing the whole sibling group Q to that zoom in
// zoomMap. If a step overshoots 4x nodeLimit, the group remembered from the
// previous step is committed instead, or nothing if there is none.
func Optimize(baseZoom uint8, nodeLimit int, counts map[Tile]int) ZoomMap {
	zoomMap := make(ZoomMap)
	mapped := make(map[Tile]bool)

	const maxSteps = 4
	for _, t := range sortedTileKeys(counts) {
		if mapped[t] || counts[t] >= nodeLimit {
			continue
		}

		var rememberedQ []Tile
		var rememberedZ uint8
		haveRemembered := false

		for z := uint8(1); z <= maxSteps && z <= baseZoom; z++ {
			q := siblingsAtZoomOut(t, baseZoom, z, counts)
			total := 0
			for _, qt := range q {
				total += counts[qt]
			}

			if total < 4*nodeLimit {
				if total > nodeLimit || z == maxSteps || z == baseZoom {
					commitZoomGroup(zoomMap, mapped, q, counts, baseZoom-z)
					break
				}
				rememberedQ = q
				rememberedZ = z
				haveRemembered = true
				continue
			}

			if haveRemembered {
				commitZoomGroup(zoomMap, mapped, rememberedQ, counts, baseZoom-rememberedZ)
			}
			break
		}
	}
	return zoomMap
}

func commitZoomGroup(zoomMap ZoomMap, mapped map[Tile]bool, q []Tile, counts map[Tile]int, zoom uint8) {
	for _, qt := range q {
		if counts[qt] > 0 {
			zoomMap[qt] = zoom
			mapped[qt] = true
		}
	}
}

// ApplyZoomMap rewrites the base modified-tile set per §4.7 step 3: each
// tile mapped to a coarser zoom is cleared from the base set and its parent
// at the new zoom is set in that zoom's own sparse set.
func ApplyZoomMap(modified *ModifiedSet, baseZoom uint8, zoomMap ZoomMap) map[uint8]*ModifiedSet {
	perZoom := map[uint8]*ModifiedSet{baseZoom: NewModifiedSet()}

	it := modified.Iterator()
	for it.HasNext() {
		t := it.Next()
		newZoom, ok := zoomMap[t]
		if !ok {
			perZoom[baseZoom].Set(t)
			continue
		}
		if perZoom[newZoom] == nil {
			perZoom[newZoom] = NewModifiedSet()
		}
		perZoom[newZoom].Set(ParentTile(t, baseZoom, newZoom))
	}
	return perZoom
}
