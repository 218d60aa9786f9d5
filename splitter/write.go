package splitter

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/osm"
	"golang.org/x/sync/errgroup"
)

// TileTarget is one output unit of the write pass: a tile at the zoom it
// will actually be emitted at, which may be coarser than the base zoom when
// the optimisation pass (§4.7) coalesced it.
type TileTarget struct {
	Zoom uint8
	Tile Tile
}

// outputKey follows §6's on-disk naming for the individual-tile output
// form: "<zoom>/<x>_<y>.osm.pbf".
func (t TileTarget) outputKey(mbtiles bool) string {
	x, y := t.Tile.Unpack()
	if mbtiles {
		return fmt.Sprintf("%d/%d/%d", t.Zoom, x, y)
	}
	return fmt.Sprintf("%d/%d_%d.osm.pbf", t.Zoom, x, y)
}

// Writer is the write pass of §4.8: it re-streams the input in batches
// bounded by --maxfiles open encoders at a time, fans each element out to
// every tile target whose resolved (post-optimisation) tile set contains
// it, and finalises each target's PBF bytes to either a plain OutputSink or
// an MBTiles database.
type Writer struct {
	cfg     *Config
	logger  *log.Logger
	ig      *Ingestor
	zoomMap ZoomMap

	sink    OutputSink
	mbtiles *MBTilesWriter
}

// NewWriter builds a Writer over an already-completed Ingestor. zoomMap may
// be nil when the optimisation pass did not run, in which case every target
// is emitted at the base zoom ig.cfg.Zoom.
func NewWriter(cfg *Config, logger *log.Logger, ig *Ingestor, zoomMap ZoomMap, sink OutputSink, mbtiles *MBTilesWriter) *Writer {
	return &Writer{cfg: cfg, logger: logger, ig: ig, zoomMap: zoomMap, sink: sink, mbtiles: mbtiles}
}

// resolveTarget maps a base-zoom tile to the TileTarget it is actually
// emitted under, following zoomMap when the tile was coalesced.
func (w *Writer) resolveTarget(t Tile) TileTarget {
	if w.zoomMap != nil {
		if z, ok := w.zoomMap[t]; ok {
			return TileTarget{Zoom: z, Tile: ParentTile(t, w.cfg.Zoom, z)}
		}
	}
	return TileTarget{Zoom: w.cfg.Zoom, Tile: t}
}

// collectTargets gathers every distinct TileTarget across the (possibly
// per-zoom-rewritten) modified sets, in ascending (zoom, tile) order so
// batches are deterministic run to run.
func collectTargets(perZoom map[uint8]*ModifiedSet) []TileTarget {
	var out []TileTarget
	for zoom, ms := range perZoom {
		it := ms.Iterator()
		for it.HasNext() {
			out = append(out, TileTarget{Zoom: zoom, Tile: it.Next()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Zoom != out[j].Zoom {
			return out[i].Zoom < out[j].Zoom
		}
		return out[i].Tile < out[j].Tile
	})
	return out
}

// Run executes the write pass over perZoom (the output of ApplyZoomMap, or
// a single baseZoom->Modified map when optimisation is off).
func (w *Writer) Run(ctx context.Context, numProcs int, perZoom map[uint8]*ModifiedSet) error {
	targets := collectTargets(perZoom)
	if len(targets) == 0 {
		return nil
	}

	maxFiles := w.cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = len(targets)
	}

	progress := getProgressWriter().NewCountProgress(int64(len(targets)), "writing tiles")
	defer progress.Close()

	for start := 0; start < len(targets); start += maxFiles {
		end := start + maxFiles
		if end > len(targets) {
			end = len(targets)
		}
		if err := w.writeBatch(ctx, numProcs, targets[start:end]); err != nil {
			return err
		}
		progress.Add(end - start)
		w.logger.Printf("wrote tiles %d-%d of %d", start+1, end, len(targets))
	}
	return nil
}

// writeBatch opens one encoder per target, makes a single streaming pass
// over the input fanning every element out to the targets it resolves to,
// then finalises and persists each encoder. Holding at most len(batch)
// encoders in memory at once is what bounds both open file handles and
// buffered tile bytes to --maxfiles (§4.8, "open-file budget").
func (w *Writer) writeBatch(ctx context.Context, numProcs int, batch []TileTarget) error {
	encoders := make(map[TileTarget]*PBFEncoder, len(batch))
	targetSet := make(map[TileTarget]bool, len(batch))
	for _, tt := range batch {
		enc := NewPBFEncoder(w.cfg.Metadata)
		x, y := tt.Tile.Unpack()
		b := Bound(x, y, tt.Zoom, 0)
		enc.AddBound(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		encoders[tt] = enc
		targetSet[tt] = true
	}

	decoder, closer, err := OpenDecoder(ctx, w.cfg.Input, numProcs, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	for decoder.Scan() {
		switch v := decoder.Object().(type) {
		case *osm.Node:
			tiles, ok := w.ig.NMap.GetAllTiles(uint64(v.ID))
			if !ok {
				continue
			}
			for _, tt := range w.fanOutTargets(tiles, targetSet) {
				encoders[tt].AddNode(v)
			}
		case *osm.Way:
			tiles, ok := w.ig.WMap.GetAllTiles(uint64(v.ID))
			if !ok {
				continue
			}
			for _, tt := range w.fanOutTargets(tiles, targetSet) {
				encoders[tt].AddWay(v)
			}
		case *osm.Relation:
			tiles, ok := w.ig.RMap.GetAllTiles(uint64(v.ID))
			if !ok {
				continue
			}
			for _, tt := range w.fanOutTargets(tiles, targetSet) {
				encoders[tt].AddRelation(v)
			}
		}
	}
	if err := decoder.Err(); err != nil {
		return fmt.Errorf("write pass: reading input: %w", err)
	}

	// Serialising each tile (varint/zigzag encoding plus zlib compression of
	// its blob bodies) is CPU-bound and independent per tile, so the batch
	// closes its encoders concurrently before persisting them one at a time —
	// persisting must stay sequential since the MBTiles path shares one
	// SQLite connection across the whole batch.
	g, _ := errgroup.WithContext(ctx)
	for _, enc := range encoders {
		enc := enc
		g.Go(func() error { return enc.Close() })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	for _, tt := range batch {
		if err := w.persist(ctx, tt, encoders[tt].Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// fanOutTargets resolves an element's base-zoom tile set to the distinct
// in-batch targets it belongs to, deduplicating so a base tile and its
// zoomed-out sibling never add the same element to a target twice (§4.9,
// "elements appear exactly once").
func (w *Writer) fanOutTargets(tiles []Tile, targetSet map[TileTarget]bool) []TileTarget {
	seen := make(map[TileTarget]bool, len(tiles))
	var out []TileTarget
	for _, t := range tiles {
		tt := w.resolveTarget(t)
		if !targetSet[tt] || seen[tt] {
			continue
		}
		seen[tt] = true
		out = append(out, tt)
	}
	return out
}

func (w *Writer) persist(ctx context.Context, tt TileTarget, data []byte) error {
	if w.mbtiles != nil {
		x, y := tt.Tile.Unpack()
		return w.mbtiles.PutTile(tt.Zoom, x, y, data)
	}
	wc, err := w.sink.Create(ctx, tt.outputKey(false))
	if err != nil {
		return fmt.Errorf("creating output for tile %d/%v: %w", tt.Zoom, tt.Tile, err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("writing tile %d/%v: %w", tt.Zoom, tt.Tile, err)
	}
	return wc.Close()
}
