// Package postproc shortens and deduplicates the detailed paths the
// worklist driver and oracle have established are infeasible, before they
// are handed back to a caller as the final result set.
package postproc

import (
	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// Shorten removes adjacent edge pairs a dominance query proves redundant,
// to a fixpoint, then strips a trailing unmatched call the way
// absint.Path.Normalize already does for live paths. An edge pair (a, b)
// is redundant when a already dominates every block a path through b could
// reach and b already postdominates everything upstream of a: keeping both
// in the reported path adds no information over keeping just one.
func Shorten(path absint.Path, dom cfg.GlobalDominance) absint.Path {
	out := path.Normalize()
	if dom == nil {
		return out
	}

	for {
		edges := out.Edges()
		idx := firstRedundantPair(edges, dom)
		if idx < 0 {
			return out
		}
		out = dropEdgeAt(out, idx)
	}
}

// firstRedundantPair scans adjacent edges for the first pair where the
// earlier edge already dominates the later one and the later edge already
// postdominates the earlier one, meaning the earlier edge is implied by
// the later one and can be dropped without losing information about why
// the path is infeasible.
func firstRedundantPair(edges []cfg.EdgeID, dom cfg.GlobalDominance) int {
	for i := 0; i+1 < len(edges); i++ {
		a, b := edges[i], edges[i+1]
		if dom.Dominates(a, b) && dom.Postdominates(b, a) {
			return i
		}
	}
	return -1
}

// dropEdgeAt removes the i-th FlowEdge item from path (by position among
// FlowEdge items only, other markers are left untouched and kept in place).
func dropEdgeAt(path absint.Path, i int) absint.Path {
	items := path.Items()
	out := make([]absint.FlowInfo, 0, len(items))
	seen := -1
	for _, fi := range items {
		if fi.Kind == absint.FlowEdge {
			seen++
			if seen == i {
				continue
			}
		}
		out = append(out, fi)
	}
	var rebuilt absint.Path
	for _, fi := range out {
		rebuilt = rebuilt.Append(fi)
	}
	return rebuilt
}
