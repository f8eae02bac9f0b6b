package oracle

import (
	"context"

	"github.com/aclements/go-z3/z3"
	"github.com/bits-and-blooms/bitset"

	"github.com/jordy-ruiz/pathfinder/absint"
)

// z3Backend checks predicate sets with a dedicated z3.Context and z3.Solver
// pair. A backend is not safe for concurrent use by itself (the underlying
// solver is stateful); the pool hands each worker goroutine its own
// backend rather than sharing one.
type z3Backend struct {
	z3ctx  *z3.Context
	solver *z3.Solver
}

// NewZ3Backend returns a fresh, independently usable Backend.
func NewZ3Backend() Backend {
	cfg := z3.NewContextConfig()
	z3ctx := z3.NewContext(cfg)
	return &z3Backend{
		z3ctx:  z3ctx,
		solver: z3.NewSolver(z3ctx),
	}
}

// CheckState asserts every predicate the state has accumulated and checks
// joint satisfiability. On an unsatisfiable verdict it runs deletion-based
// minimization unless the caller disabled it via Flags.UnminimizedPaths.
func (b *z3Backend) CheckState(ctx context.Context, actx *absint.Context, s absint.State) (Verdict, error) {
	preds := s.Preds.All()
	if len(preds) == 0 {
		return Verdict{SAT: true}, nil
	}

	tr := newTranslator(b.z3ctx)
	sat, err := b.checkAll(ctx, tr, preds)
	if err != nil {
		return Verdict{}, err
	}
	if sat {
		return Verdict{SAT: true}, nil
	}
	actx.Stats.InfeasibleFound++

	if actx.Flags.UnminimizedPaths {
		actx.Stats.Unminimizable++
		return Verdict{SAT: false, MinLabels: unionAllLabels(preds), Unminimized: true}, nil
	}

	minimal, err := minimizeUnsat(ctx, b, tr, preds)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{SAT: false, MinLabels: unionAllLabels(minimal)}, nil
}

// checkAll asserts the conjunction of preds in a fresh solver scope and
// reports satisfiability.
func (b *z3Backend) checkAll(ctx context.Context, tr *translator, preds []absint.LabelledPredicate) (bool, error) {
	b.solver.Reset()
	for _, lp := range preds {
		b.solver.Assert(tr.predicate(lp.Pred))
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sat, err := b.solver.Check()
	if err != nil {
		return false, err
	}
	return sat, nil
}

func unionAllLabels(preds []absint.LabelledPredicate) *bitset.BitSet {
	var out *bitset.BitSet
	for _, lp := range preds {
		if lp.Labels == nil {
			continue
		}
		if out == nil {
			out = lp.Labels.Clone()
			continue
		}
		out = out.Union(lp.Labels)
	}
	return out
}
