package splitter

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Ingestor runs pass 1 (§4.4) and the forward-reference retry loop that
// follows it: elements are resolved against the three ID->tile maps in
// canonical PBF order (nodes, then ways, then relations), threading a
// single appointmentDate through the whole run to build the modified-tile
// set and the running latestDate used for --date and MBTiles' latest_date.
type Ingestor struct {
	cfg    *Config
	logger *log.Logger

	appointmentDate time.Time
	latestDate      time.Time

	NMap     Map
	WMap     Map
	RMap     Map
	Modified *ModifiedSet

	// RelMemberWays is the "relation-member-way set" of §4.4/§4.5: way ids
	// whose node tile sets must be re-expanded in pass 2 to the union their
	// containing complete-treated relation computed.
	RelMemberWays map[int64]struct{}

	Bound      orb.Bound
	haveBound  bool
	wayMissing int
	relMissing int
}

// NewIngestor builds the three Map backends per cfg's size/max-ids flags.
func NewIngestor(cfg *Config, appointmentDate time.Time, logger *log.Logger) *Ingestor {
	return &Ingestor{
		cfg:             cfg,
		logger:          logger,
		appointmentDate: appointmentDate,
		latestDate:      appointmentDate,
		NMap:            NewMap(int(cfg.InitialSize.Nodes), cfg.MaxIDs.Nodes),
		WMap:            NewMap(int(cfg.InitialSize.Ways), cfg.MaxIDs.Ways),
		RMap:            NewMap(int(cfg.InitialSize.Relations), cfg.MaxIDs.Relations),
		Modified:        NewModifiedSet(),
		RelMemberWays:   make(map[int64]struct{}),
	}
}

// LatestDate returns the later of appointmentDate and the maximum element
// timestamp observed, for --date round-trip and the MBTiles latest_date
// metadata value.
func (ig *Ingestor) LatestDate() time.Time { return ig.latestDate }

// Run streams input once for pass 1, then drains the relation
// forward-reference queue (§4.4, "Forward-reference resolution").
func (ig *Ingestor) Run(ctx context.Context, numProcs int) error {
	progress := getProgressWriter().NewBytesProgress(statInputSize(ig.cfg.Input), "pass 1: ingest")
	defer progress.Close()

	decoder, closer, err := OpenDecoder(ctx, ig.cfg.Input, numProcs, progress)
	if err != nil {
		return err
	}
	defer closer.Close()

	var deferred []*osm.Relation

	for decoder.Scan() {
		switch v := decoder.Object().(type) {
		case *osm.Bound:
			ig.mergeBound(BoundToOrb(v))
		case *osm.Node:
			if err := ig.handleNode(v); err != nil {
				return err
			}
		case *osm.Way:
			if err := ig.handleWay(v); err != nil {
				return err
			}
		case *osm.Relation:
			unresolved, err := ig.addRelationToMap(v)
			if err != nil {
				return err
			}
			if unresolved {
				deferred = append(deferred, v)
			}
		}
	}
	if err := decoder.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return ig.resolveForwardReferences(deferred)
}

func (ig *Ingestor) mergeBound(b orb.Bound) {
	if !ig.haveBound {
		ig.Bound = b
		ig.haveBound = true
		return
	}
	ig.Bound = ig.Bound.Union(b)
}

func (ig *Ingestor) checkTimestamp(o osm.Object) (time.Time, bool, error) {
	ts, ok := ElementTimestamp(o)
	if !ok {
		if ig.cfg.Metadata {
			return time.Time{}, false, fmt.Errorf("element %v is missing required timestamp metadata", o.ObjectID())
		}
		return time.Time{}, false, nil
	}
	if ts.After(ig.latestDate) {
		ig.latestDate = ts
	}
	return ts, ts.After(ig.appointmentDate), nil
}

// computeNodeTile implements the node border math of §4.4: the node's
// continuous tile-space position is compared against the border fraction
// on each edge. Crossing east or south sets the corresponding neighbour
// bit directly; crossing west or north instead re-bases the tile one step
// west/north and sets east/south on the new base, since a TileValue has no
// west/north neighbour bits of its own (§3).
func computeNodeTile(lon, lat float64, zoom uint8, border float64) (x, y uint32, neighbours uint8) {
	fx := lonToTileXFloat(lon, zoom)
	fy := latToTileYFloat(lat, zoom)
	x = clampTileCoord(int64(math.Floor(fx)), zoom)
	y = clampTileCoord(int64(math.Floor(fy)), zoom)

	if border <= 0 {
		return x, y, 0
	}

	fracX := fx - math.Floor(fx)
	fracY := fy - math.Floor(fy)

	var nb uint8
	if fracX+border > 1.0 {
		nb |= NeighbourEast
	} else if fracX-border < 0.0 && x > 0 {
		x--
		nb |= NeighbourEast
	}
	if fracY+border > 1.0 {
		nb |= NeighbourSouth
	} else if fracY-border < 0.0 && y > 0 {
		y--
		nb |= NeighbourSouth
	}
	return x, y, nb
}

func (ig *Ingestor) handleNode(n *osm.Node) error {
	_, newer, err := ig.checkTimestamp(n)
	if err != nil {
		return err
	}
	x, y, nb := computeNodeTile(n.Lon, n.Lat, ig.cfg.Zoom, ig.cfg.Border)
	if newer {
		ig.Modified.SetAll(baseExpansion(x, y, nb))
	}
	return ig.NMap.Put(uint64(n.ID), x, y, nb)
}

func (ig *Ingestor) handleWay(w *osm.Way) error {
	_, newer, err := ig.checkTimestamp(w)
	if err != nil {
		return err
	}

	var all []Tile
	for _, wn := range w.Nodes {
		tiles, ok := ig.NMap.GetAllTiles(uint64(wn.ID))
		if !ok {
			ig.wayMissing++
			ig.logger.Printf("way %d: node %d unresolved, skipping way", w.ID, wn.ID)
			return nil
		}
		all = append(all, tiles...)
	}
	if len(w.Nodes) == 0 {
		return nil
	}
	all = sortUniqueTiles(all)

	var holes []Tile
	if len(all) >= minHoleFillSize {
		all, holes = HoleFill(all)
	}
	if len(holes) > 0 {
		ig.Modified.SetAll(holes)
	}
	if newer {
		ig.Modified.SetAll(all)
	}

	base := ig.NMap.Get(uint64(w.Nodes[0].ID))
	if err := ig.WMap.Put(uint64(w.ID), base.X(), base.Y(), 0); err != nil {
		return err
	}
	if err := ig.WMap.UpdateInt(uint64(w.ID), all); err != nil {
		return err
	}
	for _, wn := range w.Nodes {
		if err := ig.NMap.UpdateInt(uint64(wn.ID), all); err != nil {
			return err
		}
	}
	return nil
}

// addRelationToMap implements §4.4's relation handling, including the
// eligibility check and propagation for "complete" treatment. It is called
// both from the main pass-1 loop and from the retry loop, and is idempotent:
// a relation already present in RMap has its base tile kept and only gains
// further tiles via Update.
func (ig *Ingestor) addRelationToMap(r *osm.Relation) (unresolved bool, err error) {
	_, newer, err := ig.checkTimestamp(r)
	if err != nil {
		return false, err
	}

	var all []Tile
	loggedMissing := false
	for _, m := range r.Members {
		switch m.Type {
		case osm.TypeNode:
			v := ig.NMap.Get(uint64(m.Ref))
			if v.IsEmpty() {
				if !loggedMissing {
					ig.logger.Printf("relation %d: member node %d unresolved", r.ID, m.Ref)
					loggedMissing = true
				}
				continue
			}
			tiles := baseExpansion(v.X(), v.Y(), v.Neighbours())
			if newer {
				ig.Modified.SetAll(tiles)
			}
			all = append(all, tiles...)
		case osm.TypeWay:
			tiles, ok := ig.WMap.GetAllTiles(uint64(m.Ref))
			if !ok {
				if !loggedMissing {
					ig.logger.Printf("relation %d: member way %d unresolved", r.ID, m.Ref)
					loggedMissing = true
				}
				continue
			}
			if newer {
				ig.Modified.SetAll(tiles)
			}
			all = append(all, tiles...)
		case osm.TypeRelation:
			tiles, ok := ig.RMap.GetAllTiles(uint64(m.Ref))
			if !ok {
				unresolved = true
				continue
			}
			if newer {
				ig.Modified.SetAll(tiles)
			}
			all = append(all, tiles...)
		}
	}

	if len(all) == 0 {
		if !unresolved {
			ig.relMissing++
			ig.logger.Printf("relation %d: no member resolved, skipping", r.ID)
		}
		return unresolved, nil
	}
	all = sortUniqueTiles(all)
	if len(all) >= minHoleFillSize {
		var holes []Tile
		all, holes = HoleFill(all)
		if len(holes) > 0 {
			ig.Modified.SetAll(holes)
		}
	}

	existing := ig.RMap.Get(uint64(r.ID))
	if existing.IsEmpty() {
		x, y := all[0].Unpack()
		if err := ig.RMap.Put(uint64(r.ID), x, y, 0); err != nil {
			return unresolved, err
		}
	}
	if err := ig.RMap.UpdateInt(uint64(r.ID), all); err != nil {
		return unresolved, err
	}

	if ig.cfg.CompleteRelations || (ig.cfg.CompleteAreas && r.Tags.Find("type") == "multipolygon") {
		for _, m := range r.Members {
			switch m.Type {
			case osm.TypeNode:
				if err := ig.NMap.UpdateInt(uint64(m.Ref), all); err != nil {
					return unresolved, err
				}
			case osm.TypeWay:
				if err := ig.WMap.UpdateInt(uint64(m.Ref), all); err != nil {
					return unresolved, err
				}
				ig.RelMemberWays[m.Ref] = struct{}{}
			case osm.TypeRelation:
				if err := ig.RMap.UpdateInt(uint64(m.Ref), all); err != nil {
					return unresolved, err
				}
			}
		}
	}

	return unresolved, nil
}

// resolveForwardReferences repeatedly re-runs addRelationToMap on the
// relations deferred for a missing relation member, stopping once the
// queue's size stops strictly decreasing (§4.4). Remaining entries are
// unresolvable cycles or missing targets, reported but not fatal (§7).
func (ig *Ingestor) resolveForwardReferences(deferred []*osm.Relation) error {
	queue := deferred
	for len(queue) > 0 {
		var next []*osm.Relation
		for _, r := range queue {
			unresolved, err := ig.addRelationToMap(r)
			if err != nil {
				return err
			}
			if unresolved {
				next = append(next, r)
			}
		}
		if len(next) >= len(queue) {
			ig.logger.Printf("%d relation(s) have unresolved forward references after retry", len(next))
			break
		}
		queue = next
	}
	return nil
}
