package splitter

import (
	"fmt"
	"strconv"
	"strings"
)

// SizeSpec is the "n,w,r" triple accepted by --size and --max-ids (§6).
type SizeSpec struct {
	Nodes     uint64
	Ways      uint64
	Relations uint64
}

// ParseSizeSpec parses a comma-separated "nodes,ways,relations" triple.
// An empty string yields the zero SizeSpec (every field 0, meaning "use
// the default, growable backend").
func ParseSizeSpec(s string) (SizeSpec, error) {
	if s == "" {
		return SizeSpec{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return SizeSpec{}, fmt.Errorf("expected n,w,r but got %q", s)
	}
	vals := make([]uint64, 3)
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return SizeSpec{}, fmt.Errorf("invalid size component %q: %w", p, err)
		}
		vals[i] = v
	}
	return SizeSpec{Nodes: vals[0], Ways: vals[1], Relations: vals[2]}, nil
}

// Config is the fully validated set of inputs to a single split run,
// assembled from the CLI flags of §6.
type Config struct {
	Input  string
	Output string

	Zoom   uint8
	Border float64

	PolygonFile string
	DateFile    string

	Metadata          bool
	CompleteRelations bool
	CompleteAreas     bool

	MBTiles  bool
	MaxFiles int

	InitialSize SizeSpec
	MaxIDs      SizeSpec

	NodeLimit int

	Verbose bool
	Timing  bool
}

// NewConfig returns a Config with the spec's documented defaults: zoom 13,
// border 0, maxfiles 100 (a conservative open-file budget safe under the
// usual per-process rlimit).
func NewConfig() *Config {
	return &Config{
		Zoom:     13,
		Border:   0,
		MaxFiles: 100,
	}
}

// Validate checks the invariants §6 places on CLI input, before any work
// begins — an invalid argument is a fatal, pre-flight error (§7).
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if c.Zoom > MaxZoom {
		return fmt.Errorf("zoom %d exceeds maximum %d", c.Zoom, MaxZoom)
	}
	if c.Border < 0 || c.Border > 1 {
		return fmt.Errorf("border %f must be in [0,1]", c.Border)
	}
	if c.MaxFiles <= 0 {
		return fmt.Errorf("maxfiles must be positive")
	}
	if c.NodeLimit < 0 {
		return fmt.Errorf("optimize node limit must be non-negative")
	}
	return nil
}
