package worklist

import (
	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/transfer"

	log "github.com/sirupsen/logrus"
)

// Driver runs the worklist fixpoint over one CFG: block transfer, merge at
// confluence points, widening at loop headers, and composition at call
// sites.
type Driver struct {
	Table *transfer.Table

	// OracleHook, if set, is called once for every state that survives an
	// edge crossing (Bottom states never reach it). It is the seam the
	// cmd package wires an SMT oracle batch through, keeping this package
	// free of any dependency on how infeasibility is actually decided.
	OracleHook func(ctx *absint.Context, edge cfg.EdgeID, s absint.State)
}

// Run explores g from its entry block to its exit block, returning every
// state that reached Exit.
func (d *Driver) Run(ctx *absint.Context, g *cfg.CFG) absint.States {
	states := map[cfg.BlockID]absint.States{g.EntryBlock: {absint.NewEntryState(ctx)}}
	queued := map[cfg.BlockID]bool{g.EntryBlock: true}
	queue := []cfg.BlockID{g.EntryBlock}

	lt := newLoopTracker()
	lastHeaderState := map[cfg.BlockID]absint.State{}
	converged := map[cfg.BlockID]bool{}

	var finished absint.States

	enqueue := func(b cfg.BlockID) {
		if !queued[b] {
			queued[b] = true
			queue = append(queue, b)
		}
	}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		queued[b] = false

		incoming := states[b]
		states[b] = nil
		if len(incoming) == 0 {
			continue
		}

		blk := g.Block(b)
		if blk.Kind == cfg.Exit {
			finished = append(finished, incoming...)
			continue
		}

		if limit := ctx.Flags.StateSizeLimit; limit > 0 && len(incoming) > limit {
			log.WithFields(log.Fields{"block": b, "limit": limit, "had": len(incoming)}).
				Warn("clamping number of states merged at confluence point")
			incoming = incoming[:limit]
		}

		path := incoming[0].Path
		merged, _ := absint.MergeStates(ctx, b, 0, path, incoming)

		if blk.IsLoopHead {
			if converged[b] && merged.Equivalent(lastHeaderState[b]) {
				continue
			}

			changedFromPrev := true
			if prev, ok := lastHeaderState[b]; ok {
				changedFromPrev = !merged.Equivalent(prev)
			}
			status := lt.advance(b, changedFromPrev, ctx.Flags.NoWidening)
			if status == statusAccel {
				if prev, ok := lastHeaderState[b]; ok {
					merged = absint.Widen(ctx, b, prev, merged)
					log.WithField("loop_header", b).Debug("widening loop-carried state")
				}
			}
			if status == statusLeave {
				converged[b] = true
			}
			lastHeaderState[b] = merged
		}

		var post absint.State
		if blk.Kind == cfg.Synth && blk.Callee != nil {
			post = d.runCall(ctx, blk, merged)
		} else {
			post = d.Table.Block(ctx, merged, blk)
		}

		outs := g.OutEdges(b)
		for idx, eid := range outs {
			e := g.Edge(eid)
			taken := branchTakenForEdge(idx, len(outs))

			ns := post.AppendEdge(ctx, eid, taken)
			if e.HasLoopExit {
				ns = ns.ExitLoop(e.LoopExitOf)
			}
			if ns.Bottom {
				continue
			}
			if d.OracleHook != nil {
				d.OracleHook(ctx, eid, ns)
			}

			target := g.Block(e.Target)
			if target.IsLoopHead && !e.IsBack {
				ns = ns.EnterLoop(e.Target)
			}

			states[e.Target] = append(states[e.Target], ns)
			enqueue(e.Target)
		}
	}

	return finished
}

// branchTakenForEdge maps a block's outgoing-edge position onto the
// Branch Inst direction it corresponds to: the first outgoing edge is the
// taken direction, any further edge is not-taken. Blocks with a single
// successor carry no Branch Inst at all, so the flag is never consulted.
func branchTakenForEdge(idx, total int) bool {
	return total > 1 && idx == 0
}

// runCall composes a call: it runs the callee's own Driver.Run starting
// from a fresh entry state, then applies every resulting exit state back
// onto the caller state via absint.Apply, merging the (typically single)
// result back to one post-call state the caller block can continue from.
func (d *Driver) runCall(ctx *absint.Context, sb *cfg.Block, caller absint.State) absint.State {
	calleeEntry := absint.NewEntryState(ctx)
	exits := d.Run(ctx, sb.Callee)
	if len(exits) == 0 {
		log.WithField("call_site", sb.ID).Warn("callee produced no reachable exit state")
		out := caller.Clone()
		out.Bottom = true
		return out
	}

	applied := make(absint.States, len(exits))
	for i, ex := range exits {
		applied[i] = absint.Apply(ctx, caller, calleeEntry, ex, sb.ID)
	}
	if len(applied) == 1 {
		return applied[0]
	}
	merged, _ := absint.MergeStates(ctx, sb.ID, 0, applied[0].Path, applied)
	return merged
}
