// Package oracle decides, for a state crossing an edge, whether the
// predicates accumulated along its path are jointly satisfiable. A state
// whose predicate set is unsatisfiable corresponds to an infeasible path:
// no concrete execution can ever take that sequence of branches.
package oracle

import (
	"context"

	"github.com/bits-and-blooms/bitset"

	"github.com/jordy-ruiz/pathfinder/absint"
)

// Verdict is the result of checking one state's predicate set.
type Verdict struct {
	// SAT is true when the predicate set is satisfiable: the path is
	// feasible as far as this check can tell.
	SAT bool

	// MinLabels holds, for an unsatisfiable verdict, the smallest subset
	// of predicate labels whose conjunction is already unsatisfiable.
	// Nil when SAT is true; when minimization was skipped it holds every
	// label (see Unminimized).
	MinLabels *bitset.BitSet

	// Unminimized is true when the caller asked to skip minimization
	// (UnminimizedPaths) and MinLabels therefore covers the whole
	// predicate set rather than a minimal subset of it.
	Unminimized bool
}

// Backend checks a single abstract state's accumulated predicates for
// satisfiability. Implementations need not be safe for concurrent use: the
// pool creates one Backend per worker goroutine and never shares it.
type Backend interface {
	CheckState(ctx context.Context, actx *absint.Context, s absint.State) (Verdict, error)
}
