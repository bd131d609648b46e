package graph

import (
	"fmt"
	"io"

	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// DumpDistances writes the symmetric pairwise-distance matrix across the
// frame-0 world tag corners, one row per corner labelled with tag id and
// corner index. Corners of dynamic bodies observed in later frames are not
// included; their rows would need frame labels to stay distinguishable.
// Diagnostics only; distances reflect the latest committed values.
func (tg *TagGraph) DumpDistances(w io.Writer) error {
	var keys []keyspace.Key
	for _, k := range tg.values.CategoryKeys(keyspace.WorldCorner) {
		frame, _, _, err := keyspace.DecodeWorldCorner(k)
		if err != nil {
			return err
		}
		if frame != 0 {
			continue
		}
		keys = append(keys, k)
	}
	for _, k1 := range keys {
		p1, ok := tg.values.Point(k1)
		if !ok {
			continue
		}
		_, tagID, corner, err := keyspace.DecodeWorldCorner(k1)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "tag %3d corner %d:", tagID, corner); err != nil {
			return err
		}
		for _, k2 := range keys {
			p2, ok := tg.values.Point(k2)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, " %7.4f", distanceBetween(p1, p2, nil, nil)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
