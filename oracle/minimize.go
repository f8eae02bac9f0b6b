package oracle

import (
	"context"

	"github.com/jordy-ruiz/pathfinder/absint"
)

// minimizeUnsat shrinks a jointly-unsatisfiable predicate set to a minimal
// unsatisfiable subset by deletion: repeatedly try dropping one predicate
// and re-check; keep the drop only if the remainder is still unsatisfiable.
// This costs one solver call per predicate (O(n)); a divide-and-conquer
// MUS search can need fewer calls when the core is small, but deletion is
// simpler, and predicate sets here are small (one per branch on the path).
func minimizeUnsat(ctx context.Context, b *z3Backend, tr *translator, preds []absint.LabelledPredicate) ([]absint.LabelledPredicate, error) {
	remaining := append([]absint.LabelledPredicate(nil), preds...)

	for i := 0; i < len(remaining); {
		candidate := removeAt(remaining, i)
		if len(candidate) == 0 {
			i++
			continue
		}
		sat, err := b.checkAll(ctx, tr, candidate)
		if err != nil {
			return nil, err
		}
		if sat {
			// dropping preds[i] restored satisfiability: it is load-bearing,
			// keep it and move on.
			i++
			continue
		}
		// still unsat without preds[i]: it is redundant for this witness.
		remaining = candidate
	}
	return remaining, nil
}

func removeAt(preds []absint.LabelledPredicate, i int) []absint.LabelledPredicate {
	out := make([]absint.LabelledPredicate, 0, len(preds)-1)
	out = append(out, preds[:i]...)
	out = append(out, preds[i+1:]...)
	return out
}
