package transfer

import (
	"testing"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
)

type noDFA struct{}

func (noDFA) InitialValue(addr int32) (int32, bool) { return 0, false }

func testCtx() *absint.Context {
	return absint.NewContext(cfg.Platform{SPRegister: 0, NumRegs: 4, NumTemps: 2}, noDFA{}, absint.Flags{})
}

func TestExecScratchMarksDestinationTop(t *testing.T) {
	ctx := testCtx()
	s := absint.NewEntryState(ctx)
	s.Locals.Set(1, ctx.Interner.Cst(7, false))

	res := execScratch(ctx, s, cfg.Inst{Op: cfg.OpScratch, Dst: 1}, site{})

	got := res.State.Locals.Get(1)
	if got == nil {
		t.Fatalf("expected scratch to leave a Top marker, not identity")
	}
	if got.Kind() != expr.KindTop {
		t.Fatalf("expected scratch's destination to become Top, got %v", got)
	}
}

func TestExecScratchDropsPredicatesMentioningDestination(t *testing.T) {
	ctx := testCtx()
	s := absint.NewEntryState(ctx)
	v1 := ctx.Interner.Var(1)
	s.Preds.Generate(absint.Predicate{Op: absint.PredEq, LHS: v1, RHS: ctx.Interner.Cst(0, false)}, false)
	s.Preds.FlushOnEdge(1, false)
	if len(s.Preds.All()) != 1 {
		t.Fatalf("expected the predicate to be persisted before scratch runs")
	}

	res := execScratch(ctx, s, cfg.Inst{Op: cfg.OpScratch, Dst: 1}, site{})
	if len(res.State.Preds.All()) != 0 {
		t.Fatalf("expected scratch to drop predicates mentioning its destination")
	}
}
