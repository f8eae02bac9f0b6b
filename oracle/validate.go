package oracle

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// ValidateAndProject turns a batch's raw verdicts into the DetailedPaths
// worth reporting as infeasible. For every unsatisfiable verdict it
// projects the state's full path down to the minimal label set the
// backend found, then runs counterexample validation: a minimized path P
// is only accepted if no other satisfiable state in the same batch
// carries every edge of P. A path that fails validation falls back to
// its unminimized full path when UnminimizedPaths is set, otherwise it
// is dropped. SAT states have their tautological predicates swept so a
// later batch over the same state does not recheck them.
func ValidateAndProject(actx *absint.Context, jobs []Job, verdicts []Verdict) []absint.Path {
	var out []absint.Path
	for i, v := range verdicts {
		if v.SAT {
			jobs[i].State.Preds.DropTautologies()
			continue
		}

		if v.Unminimized {
			// minimization was skipped outright (global UnminimizedPaths);
			// there is no minimized core to validate a counterexample against.
			out = append(out, jobs[i].State.Path)
			continue
		}

		minimized := jobs[i].State.Path.ProjectEdges(keepLabelled(v.MinLabels))
		if hasCounterexample(minimized, jobs, verdicts, i) {
			if actx.Flags.UnminimizedPaths {
				actx.Stats.Unminimizable++
				out = append(out, jobs[i].State.Path)
			} else {
				actx.Stats.PathsDropped++
			}
			continue
		}
		out = append(out, minimized)
	}
	return out
}

func keepLabelled(labels *bitset.BitSet) func(cfg.EdgeID) bool {
	return func(e cfg.EdgeID) bool {
		return labels != nil && labels.Test(uint(e))
	}
}

// hasCounterexample reports whether some other job in the batch, found
// satisfiable, carries every edge of minimized — the §4.9 witness that
// the minimized set is not actually a valid infeasibility proof.
func hasCounterexample(minimized absint.Path, jobs []Job, verdicts []Verdict, skip int) bool {
	want := minimized.Edges()
	if len(want) == 0 {
		return false
	}
	for k, v := range verdicts {
		if k == skip || !v.SAT {
			continue
		}
		if pathContainsAll(jobs[k].State.Path, want) {
			return true
		}
	}
	return false
}

func pathContainsAll(p absint.Path, want []cfg.EdgeID) bool {
	has := make(map[cfg.EdgeID]bool, len(want))
	for _, e := range p.Edges() {
		has[e] = true
	}
	for _, e := range want {
		if !has[e] {
			return false
		}
	}
	return true
}
