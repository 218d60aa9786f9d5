package splitter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// Decoder is the external collaborator §6 specifies only the contract for:
// a PBF reader that yields a sequence of typed OSM objects. osmpbf.Scanner
// satisfies it directly.
type Decoder interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// OpenDecoder opens input (a local path or any gocloud.dev/blob URL handled
// by OpenInput) and returns a streaming PBF decoder over it. Each pass that
// needs to re-read the input calls this again, since the design keeps no
// buffered copy of the element stream between passes (§9, "Three passes
// deliberate"). If progress is non-nil, every byte read from input is also
// reported to it, the way the write pass already reports tile counts —
// this is what lets pass 1 and pass 2 show progress despite never knowing
// the element count up front.
func OpenDecoder(ctx context.Context, input string, numProcs int, progress Progress) (Decoder, io.Closer, error) {
	r, err := OpenInput(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input %s: %w", input, err)
	}
	scanner := osmpbf.New(ctx, progressReader(r, progress), numProcs)
	return scanner, r, nil
}

// progressReader tees r through p's io.Writer side so reads advance the
// progress bar; a nil progress is a no-op passthrough.
func progressReader(r io.Reader, p Progress) io.Reader {
	if p == nil {
		return r
	}
	return io.TeeReader(r, p)
}

// BoundToOrb converts a decoded PBF bound container to an orb.Bound, for
// accumulating the running union used to populate MBTiles metadata (§4.8).
func BoundToOrb(b *osm.Bound) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.LeftLng, b.BottomLat},
		Max: orb.Point{b.RightLng, b.TopLat},
	}
}

// ElementTimestamp returns the timestamp the core cares about for a decoded
// object: when metadata is requested but absent, the caller must treat this
// as a fatal data-format error (§6, "Input file").
func ElementTimestamp(o osm.Object) (time.Time, bool) {
	switch v := o.(type) {
	case *osm.Node:
		return v.Timestamp, !v.Timestamp.IsZero()
	case *osm.Way:
		return v.Timestamp, !v.Timestamp.IsZero()
	case *osm.Relation:
		return v.Timestamp, !v.Timestamp.IsZero()
	default:
		return time.Time{}, false
	}
}

// ReadDateFile reads the appointment-date text file (§6, "Date file"): a
// single unix-seconds timestamp. A missing file means "everything is new" —
// the epoch.
func ReadDateFile(path string) (time.Time, error) {
	if path == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return time.Time{}, fmt.Errorf("date file %s is empty", path)
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(scanner.Text()), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("date file %s: %w", path, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// WriteDateFile overwrites the date file with the maximum element timestamp
// observed during a successful run, so the next incremental run's
// appointmentDate advances.
func WriteDateFile(path string, latest time.Time) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.FormatInt(latest.Unix(), 10)+"\n"), 0644)
}
