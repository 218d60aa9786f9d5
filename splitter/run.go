package splitter

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
)

// Run executes a complete split (§4): ingest, the optional relation-member
// backfill and polygon clip, the optional zoom-coalescing optimisation, and
// the write pass, in that order. It is the single entry point main.go calls
// after parsing and validating a Config.
func Run(ctx context.Context, cfg *Config, logger *log.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetQuietMode(!cfg.Verbose)

	appointmentDate, err := ReadDateFile(cfg.DateFile)
	if err != nil {
		return fmt.Errorf("reading date file: %w", err)
	}

	numProcs := runtime.NumCPU()

	ig := NewIngestor(cfg, appointmentDate, logger)
	if err := ig.Run(ctx, numProcs); err != nil {
		return fmt.Errorf("pass 1: %w", err)
	}
	logger.Printf("pass 1 done: %s modified tiles, bound %v", humanize.Comma(int64(ig.Modified.Cardinality())), ig.Bound)

	if err := ig.RunPass2(ctx, numProcs); err != nil {
		return fmt.Errorf("pass 2: %w", err)
	}

	if cfg.PolygonFile != "" {
		filter, err := loadPolygonFilter(cfg.PolygonFile)
		if err != nil {
			return fmt.Errorf("loading polygon file: %w", err)
		}
		ClipModifiedSet(ig.Modified, cfg.Zoom, filter)
		logger.Printf("after clip: %s modified tiles", humanize.Comma(int64(ig.Modified.Cardinality())))
	}

	var zoomMap ZoomMap
	var perZoom map[uint8]*ModifiedSet
	if cfg.NodeLimit > 0 {
		histogram := BuildHistogram(ig.NMap)
		zoomMap = Optimize(cfg.Zoom, cfg.NodeLimit, histogram)
		perZoom = ApplyZoomMap(ig.Modified, cfg.Zoom, zoomMap)
		logger.Printf("optimisation coalesced %d tiles across %d zoom groups", len(zoomMap), len(perZoom))
	} else {
		perZoom = map[uint8]*ModifiedSet{cfg.Zoom: ig.Modified}
	}

	var sink OutputSink
	var mbtiles *MBTilesWriter
	if cfg.MBTiles {
		mbtiles, err = NewMBTilesWriter(cfg.Output, 1000)
		if err != nil {
			return fmt.Errorf("opening mbtiles output: %w", err)
		}
	} else {
		sink, err = OpenOutput(ctx, cfg.Output)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}
	}

	writer := NewWriter(cfg, logger, ig, zoomMap, sink, mbtiles)
	if err := writer.Run(ctx, numProcs, perZoom); err != nil {
		return fmt.Errorf("write pass: %w", err)
	}

	if mbtiles != nil {
		minZoom, maxZoom := zoomRange(perZoom)
		name := filepath.Base(cfg.Output)
		meta := BuildMetadata(name, ig.Bound, minZoom, maxZoom, ig.LatestDate())
		if err := mbtiles.WriteMetadata(meta); err != nil {
			return fmt.Errorf("writing mbtiles metadata: %w", err)
		}
		if err := mbtiles.Close(); err != nil {
			return fmt.Errorf("closing mbtiles output: %w", err)
		}
	} else if err := sink.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	if err := WriteDateFile(cfg.DateFile, ig.LatestDate()); err != nil {
		return fmt.Errorf("writing date file: %w", err)
	}
	return nil
}

func zoomRange(perZoom map[uint8]*ModifiedSet) (minZoom, maxZoom uint8) {
	first := true
	for zoom, ms := range perZoom {
		if ms.Cardinality() == 0 {
			continue
		}
		if first {
			minZoom, maxZoom = zoom, zoom
			first = false
			continue
		}
		if zoom < minZoom {
			minZoom = zoom
		}
		if zoom > maxZoom {
			maxZoom = zoom
		}
	}
	return minZoom, maxZoom
}

func loadPolygonFilter(path string) (*PolygonFilter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePolygonFile(f)
}
