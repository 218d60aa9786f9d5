package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHistogramCountsEachMemberTile(t *testing.T) {
	nmap := NewMap(0, 0)
	assert.NoError(t, nmap.Put(1, 0, 0, NeighbourEast))
	assert.NoError(t, nmap.Put(2, 0, 0, NeighbourEast))

	counts := BuildHistogram(nmap)
	assert.Equal(t, 2, counts[PackTile(0, 0)])
	assert.Equal(t, 2, counts[PackTile(1, 0)])
}

func TestOptimizeCoalescesSparseRegion(t *testing.T) {
	counts := make(map[Tile]int)
	// a 4x4 block of base-zoom tiles at zoom 10, each with 1 node: at one
	// zoom-out step each 2x2 sibling group pools to 4, above nodeLimit=2.
	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			counts[PackTile(x, y)] = 1
		}
	}
	zoomMap := Optimize(10, 2, counts)
	assert.NotEmpty(t, zoomMap)
	// every mapped tile's target zoom must be coarser than the base zoom
	for _, z := range zoomMap {
		assert.Less(t, z, uint8(10))
	}
}

func TestOptimizeCommitsRememberedGroupOnOvershoot(t *testing.T) {
	// At z=1, the 2x2 sibling group around (0,0) pools to 6 (<= nodeLimit):
	// not enough content yet, so it is remembered and the loop tries z=2.
	// At z=2, the 4x4 sibling group pools to 46 (>= 4*nodeLimit=40): already
	// too big, so the z=1 group remembered earlier must be committed instead,
	// at zoom baseZoom-1 (the zoom where its pooled count was evaluated), not
	// baseZoom-1+1 (which would be the base zoom itself, i.e. no coalescing).
	counts := map[Tile]int{
		PackTile(0, 0): 1,
		PackTile(1, 0): 5,
		PackTile(2, 2): 40,
	}
	zoomMap := Optimize(3, 10, counts)
	assert.Equal(t, uint8(2), zoomMap[PackTile(0, 0)])
	assert.Equal(t, uint8(2), zoomMap[PackTile(1, 0)])
	_, mapped := zoomMap[PackTile(2, 2)]
	assert.False(t, mapped)
}

func TestOptimizeLeavesWellPopulatedTilesAlone(t *testing.T) {
	counts := map[Tile]int{PackTile(5, 5): 10000}
	zoomMap := Optimize(10, 100, counts)
	_, mapped := zoomMap[PackTile(5, 5)]
	assert.False(t, mapped)
}

func TestApplyZoomMapRewritesModifiedSet(t *testing.T) {
	modified := NewModifiedSet()
	modified.Set(PackTile(4, 4))
	modified.Set(PackTile(5, 5))

	zoomMap := ZoomMap{PackTile(4, 4): 8}

	perZoom := ApplyZoomMap(modified, 10, zoomMap)
	assert.True(t, perZoom[10].Test(PackTile(5, 5)))
	assert.False(t, perZoom[10].Test(PackTile(4, 4)))
	assert.True(t, perZoom[8].Test(ParentTile(PackTile(4, 4), 10, 8)))
}
