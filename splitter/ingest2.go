package splitter

import (
	"context"
	"fmt"

	"github.com/paulmach/osm"
)

// RunPass2 implements §4.5: a second streaming pass over the input, needed
// only when pass 1 registered at least one way into the relation-member-way
// set (via --complete or --complete-areas). Pass 1 cannot push a complete
// relation's tile set down to its member ways' own nodes, because at the
// time a way is ingested its containing relation (if any) hasn't been seen
// yet — so this pass re-reads every way and, for the ones flagged, unions
// the way's now-final tile set into each of its nodes.
func (ig *Ingestor) RunPass2(ctx context.Context, numProcs int) error {
	if len(ig.RelMemberWays) == 0 {
		return nil
	}

	progress := getProgressWriter().NewBytesProgress(statInputSize(ig.cfg.Input), "pass 2: member completion")
	defer progress.Close()

	decoder, closer, err := OpenDecoder(ctx, ig.cfg.Input, numProcs, progress)
	if err != nil {
		return err
	}
	defer closer.Close()

	for decoder.Scan() {
		w, ok := decoder.Object().(*osm.Way)
		if !ok {
			continue
		}
		if _, flagged := ig.RelMemberWays[int64(w.ID)]; !flagged {
			continue
		}
		tiles, ok := ig.WMap.GetAllTiles(uint64(w.ID))
		if !ok {
			continue
		}
		for _, wn := range w.Nodes {
			if err := ig.NMap.UpdateInt(uint64(wn.ID), tiles); err != nil {
				return err
			}
		}
	}
	if err := decoder.Err(); err != nil {
		return fmt.Errorf("pass 2: reading input: %w", err)
	}
	return nil
}
