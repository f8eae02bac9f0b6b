package absint

import "github.com/jordy-ruiz/pathfinder/cfg"

// FlowKind tags a FlowInfo item, mirroring detailed_path.h's kind_t.
type FlowKind uint8

const (
	FlowEdge FlowKind = iota
	FlowLoopEntry
	FlowLoopExit
	FlowCall
	FlowReturn
)

// FlowInfo is one entry of a DetailedPath: an edge traversal, a loop
// entry/exit marker, or a call/return marker. Edge carries an EdgeID; the
// others carry a BlockID (loop header or call-site block).
type FlowInfo struct {
	Kind FlowKind
	Edge cfg.EdgeID
	Blk  cfg.BlockID
}

func EdgeFlow(e cfg.EdgeID) FlowInfo       { return FlowInfo{Kind: FlowEdge, Edge: e} }
func LoopEntryFlow(h cfg.BlockID) FlowInfo { return FlowInfo{Kind: FlowLoopEntry, Blk: h} }
func LoopExitFlow(h cfg.BlockID) FlowInfo  { return FlowInfo{Kind: FlowLoopExit, Blk: h} }
func CallFlow(sb cfg.BlockID) FlowInfo     { return FlowInfo{Kind: FlowCall, Blk: sb} }
func ReturnFlow(sb cfg.BlockID) FlowInfo   { return FlowInfo{Kind: FlowReturn, Blk: sb} }

// Path is the ordered flow-event sequence recorded alongside a state as
// it is carried across edges, into and out of loops, and across calls.
type Path struct {
	items []FlowInfo
}

func (p Path) clone() Path {
	return Path{items: append([]FlowInfo(nil), p.items...)}
}

// Append adds one flow event.
func (p Path) Append(fi FlowInfo) Path {
	p.items = append(p.items, fi)
	return p
}

// Items exposes the sequence read-only.
func (p Path) Items() []FlowInfo { return p.items }

// Edges returns just the edge-kind entries, in order — the otawa original's
// EdgeIterator.
func (p Path) Edges() []cfg.EdgeID {
	var out []cfg.EdgeID
	for _, fi := range p.items {
		if fi.Kind == FlowEdge {
			out = append(out, fi.Edge)
		}
	}
	return out
}

// ProjectEdges narrows p down to the FlowEdge items keep reports true for,
// leaving every loop/call marker in place. It is how an oracle verdict's
// minimal unsat-core label set turns back into a DetailedPath: the labels
// identify a subset of edges, not a subset of markers.
func (p Path) ProjectEdges(keep func(cfg.EdgeID) bool) Path {
	var out Path
	for _, fi := range p.items {
		if fi.Kind == FlowEdge && !keep(fi.Edge) {
			continue
		}
		out = out.Append(fi)
	}
	return out
}

// Normalize applies self-normalization:
//   - adjacent Call(x)/Return(x) pairs collapse to nothing,
//   - consecutive LoopEntry(h)/LoopExit(h) collapse,
//   - a trailing unmatched Call is removed.
//
// It is idempotent: Normalize(Normalize(p)) == Normalize(p).
func (p Path) Normalize() Path {
	items := append([]FlowInfo(nil), p.items...)

	for {
		collapsed := false
		out := items[:0:0]
		for i := 0; i < len(items); i++ {
			if i+1 < len(items) && cancels(items[i], items[i+1]) {
				i++ // skip both
				collapsed = true
				continue
			}
			out = append(out, items[i])
		}
		items = out
		if !collapsed {
			break
		}
	}

	// strip a trailing unmatched Call
	for len(items) > 0 && items[len(items)-1].Kind == FlowCall {
		items = items[:len(items)-1]
	}

	return Path{items: items}
}

func cancels(a, b FlowInfo) bool {
	if a.Blk != b.Blk {
		return false
	}
	if a.Kind == FlowCall && b.Kind == FlowReturn {
		return true
	}
	if a.Kind == FlowLoopEntry && b.Kind == FlowLoopExit {
		return true
	}
	return false
}

// WeakEquals compares two paths item-by-item, the otawa original's
// weakEqualsTo.
func (p Path) WeakEquals(o Path) bool {
	if len(p.items) != len(o.items) {
		return false
	}
	for i := range p.items {
		if p.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// bracketDepths walks the path and returns the Call/Return and
// LoopEntry/LoopExit nesting depths left after the last item, with ok=false
// as soon as either depth drops below zero; used by BracketsWellFormed.
func bracketDepths(items []FlowInfo) (callDepth, loopDepth int, ok bool) {
	for _, fi := range items {
		switch fi.Kind {
		case FlowCall:
			callDepth++
		case FlowReturn:
			callDepth--
			if callDepth < 0 {
				return callDepth, loopDepth, false
			}
		case FlowLoopEntry:
			loopDepth++
		case FlowLoopExit:
			loopDepth--
			if loopDepth < 0 {
				return callDepth, loopDepth, false
			}
		}
	}
	return callDepth, loopDepth, true
}

// BracketsWellFormed checks bracket depths only: no Return closes more
// Calls than were opened, no LoopExit closes more LoopEntries than were
// opened, and every LoopEntry is closed. Calls left open are tolerated
// wherever they occur (Normalize strips a trailing one), and the block a
// Return or LoopExit names is not matched against its opening marker.
func (p Path) BracketsWellFormed() bool {
	_, loopDepth, ok := bracketDepths(p.items)
	return ok && loopDepth == 0
}

// PathFromEnclosingContext rebuilds the path fragment a merge confluence
// point should carry, given the caller-supplied enclosing loop headers
// (outermost first) and call-site stack (outermost first) active at the
// confluence block.
func PathFromEnclosingContext(loopHeaders, callSites []cfg.BlockID) Path {
	var p Path
	for _, cs := range callSites {
		p = p.Append(CallFlow(cs))
	}
	for _, h := range loopHeaders {
		p = p.Append(LoopEntryFlow(h))
	}
	return p
}
