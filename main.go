package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/protomaps/osmsplit/splitter"
)

const helpText = `Usage: splitter [OPTIONS]

Splits an OSM PBF extract into per-tile PBF files or a single MBTiles
database, one file or row per modified tile at a chosen zoom level.

  -input string        path to input PBF (required)
  -output string        tile filename pattern or MBTiles path (required)
  -zoom int              base zoom, 0-16 (default 13)
  -border float          tile enlargement fraction, 0.0-1.0 (default 0)
  -polygon string        path to clipping polygon file
  -date string           path to date file for incremental runs
  -metadata              keep version+timestamp in output
  -complete              full tile completion for all relations
  -complete-areas        full tile completion for multipolygon relations only
  -mbtiles               write one MBTiles file instead of many PBFs
  -maxfiles int          max simultaneously open encoders (default 100)
  -size string           n,w,r initial map capacities
  -max-ids string        n,w,r maximum IDs, selects the array-backed map
  -optimize int          nodeLimit for sparse-tile coalescing
  -verbose               verbose logging
  -timing                log per-pass timing
  -help                  show this message
`

func main() {
	fs := flag.NewFlagSet("splitter", flag.ExitOnError)
	fs.Usage = func() { fmt.Print(helpText) }

	input := fs.String("input", "", "path to input PBF (required)")
	output := fs.String("output", "", "tile filename pattern or MBTiles path (required)")
	zoom := fs.Uint("zoom", 13, "base zoom, 0-16")
	border := fs.Float64("border", 0, "tile enlargement fraction, 0.0-1.0")
	polygon := fs.String("polygon", "", "path to clipping polygon file")
	date := fs.String("date", "", "path to date file for incremental runs")
	metadata := fs.Bool("metadata", false, "keep version+timestamp in output")
	complete := fs.Bool("complete", false, "full tile completion for all relations")
	completeAreas := fs.Bool("complete-areas", false, "full tile completion for multipolygon relations only")
	mbtiles := fs.Bool("mbtiles", false, "write one MBTiles file instead of many PBFs")
	maxFiles := fs.Int("maxfiles", 100, "max simultaneously open encoders")
	size := fs.String("size", "", "n,w,r initial map capacities")
	maxIDs := fs.String("max-ids", "", "n,w,r maximum IDs, selects the array-backed map")
	optimize := fs.Int("optimize", 0, "nodeLimit for sparse-tile coalescing")
	verbose := fs.Bool("verbose", false, "verbose logging")
	timing := fs.Bool("timing", false, "log per-pass timing")
	help := fs.Bool("help", false, "show this message")

	fs.Parse(os.Args[1:])

	if *help {
		fmt.Print(helpText)
		return
	}

	logFlags := log.Ldate | log.Ltime
	if *verbose {
		logFlags |= log.Lshortfile
	}
	logger := log.New(os.Stderr, "", logFlags)

	initialSize, err := splitter.ParseSizeSpec(*size)
	if err != nil {
		logger.Fatalf("invalid -size: %v", err)
	}
	maxIDsSpec, err := splitter.ParseSizeSpec(*maxIDs)
	if err != nil {
		logger.Fatalf("invalid -max-ids: %v", err)
	}

	cfg := splitter.NewConfig()
	cfg.Input = *input
	cfg.Output = *output
	cfg.Zoom = uint8(*zoom)
	cfg.Border = *border
	cfg.PolygonFile = *polygon
	cfg.DateFile = *date
	cfg.Metadata = *metadata
	cfg.CompleteRelations = *complete
	cfg.CompleteAreas = *completeAreas
	cfg.MBTiles = *mbtiles
	cfg.MaxFiles = *maxFiles
	cfg.InitialSize = initialSize
	cfg.MaxIDs = maxIDsSpec
	cfg.NodeLimit = *optimize
	cfg.Verbose = *verbose
	cfg.Timing = *timing

	if err := cfg.Validate(); err != nil {
		fmt.Print(helpText)
		logger.Fatalf("invalid arguments: %v", err)
	}

	start := time.Now()
	if err := splitter.Run(context.Background(), cfg, logger); err != nil {
		logger.Fatalf("split failed: %v", err)
	}
	if cfg.Timing {
		logger.Printf("total time: %s", time.Since(start))
	}
}
