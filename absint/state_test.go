package absint

import (
	"testing"

	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
)

type fakeDFA struct{}

func (fakeDFA) InitialValue(addr int32) (int32, bool) { return 0, false }

func testContext() *Context {
	return NewContext(cfg.Platform{SPRegister: 0, NumRegs: 4, NumTemps: 2}, fakeDFA{}, Flags{})
}

func TestMergeStatesAgreeingLocalsKeepsValue(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Locals.Set(1, ctx.Interner.Cst(7, false))
	b := NewEntryState(ctx)
	b.Locals.Set(1, ctx.Interner.Cst(7, false))

	merged, _ := MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if merged.Locals.Get(1) != ctx.Interner.Cst(7, false) {
		t.Fatalf("expected agreeing locals to survive merge")
	}
}

func TestMergeStatesDisagreeingLocalsGoToIdentity(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Locals.Set(1, ctx.Interner.Cst(7, false))
	b := NewEntryState(ctx)
	b.Locals.Set(1, ctx.Interner.Cst(8, false))

	merged, diff := MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if !merged.Locals.IsIdentity(1) {
		t.Fatalf("expected disagreeing locals to merge to identity")
	}
	if !diff {
		t.Fatalf("expected a merge of disagreeing values to report a difference")
	}
}

func TestMergeStatesMemIDMismatchWipes(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Mem.Set(4, ctx.Interner.Cst(1, false))
	b := NewEntryState(ctx)
	b.Mem.Wipe(9, 0)
	b.Mem.Set(4, ctx.Interner.Cst(1, false))

	merged, diff := MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if merged.Mem.Len() != 0 {
		t.Fatalf("expected a MemID mismatch to force a wipe, got %d live cells", merged.Mem.Len())
	}
	if !diff {
		t.Fatalf("expected a wipe to count as a difference")
	}
}

func TestWidenReplacesChangedLocalsWithIterMarker(t *testing.T) {
	ctx := testContext()
	prev := NewEntryState(ctx)
	prev.Locals.Set(1, ctx.Interner.Cst(0, false))
	cur := NewEntryState(ctx)
	cur.Locals.Set(1, ctx.Interner.Cst(1, false))

	out := Widen(ctx, 42, prev, cur)
	got := out.Locals.Get(1)
	if got == nil || got.Kind() != expr.KindIter {
		t.Fatalf("expected widened local to become an Iter marker, got %v", got)
	}
	if got.IterHeader() != 42 {
		t.Fatalf("expected widened marker to carry loop header 42, got %d", got.IterHeader())
	}
}

func TestWidenLeavesUnchangedLocalsAlone(t *testing.T) {
	ctx := testContext()
	prev := NewEntryState(ctx)
	prev.Locals.Set(1, ctx.Interner.Cst(3, false))
	cur := NewEntryState(ctx)
	cur.Locals.Set(1, ctx.Interner.Cst(3, false))

	out := Widen(ctx, 42, prev, cur)
	if out.Locals.Get(1) != ctx.Interner.Cst(3, false) {
		t.Fatalf("expected an unchanged local to survive widening untouched")
	}
}

func TestEquivalentIgnoresLabels(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Preds.Generate(Predicate{Op: PredEq, LHS: ctx.Interner.Var(0), RHS: ctx.Interner.Cst(1, false)}, false)
	a.Preds.FlushOnEdge(1, false)

	b := NewEntryState(ctx)
	b.Preds.Generate(Predicate{Op: PredEq, LHS: ctx.Interner.Var(0), RHS: ctx.Interner.Cst(1, false)}, false)
	b.Preds.FlushOnEdge(2, false)

	if !a.Equivalent(b) {
		t.Fatalf("expected states with the same predicate set under different labels to be equivalent")
	}
}

func TestEquivalentDetectsLocalDifference(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Locals.Set(0, ctx.Interner.Cst(1, false))
	b := NewEntryState(ctx)
	b.Locals.Set(0, ctx.Interner.Cst(2, false))

	if a.Equivalent(b) {
		t.Fatalf("expected differing locals to break equivalence")
	}
}

func TestMergeStatesFlagsSPAnomaly(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Locals.Set(0, ctx.Interner.Cst(4, true))
	b := NewEntryState(ctx)
	b.Locals.Set(0, ctx.Interner.Cst(8, true))

	MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if ctx.Stats.SPAnomalies != 1 {
		t.Fatalf("expected one SP anomaly to be recorded, got %d", ctx.Stats.SPAnomalies)
	}
}

func TestMergeStatesNoSPAnomalyWhenOffsetsAgree(t *testing.T) {
	ctx := testContext()
	a := NewEntryState(ctx)
	a.Locals.Set(0, ctx.Interner.Cst(4, true))
	b := NewEntryState(ctx)
	b.Locals.Set(0, ctx.Interner.Cst(4, true))

	MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if ctx.Stats.SPAnomalies != 0 {
		t.Fatalf("expected no SP anomaly when offsets agree, got %d", ctx.Stats.SPAnomalies)
	}
}

func TestMergeStatesAssumeIdenticalSPSkipsCheck(t *testing.T) {
	ctx := testContext()
	ctx.Flags.AssumeIdenticalSP = true
	a := NewEntryState(ctx)
	a.Locals.Set(0, ctx.Interner.Cst(4, true))
	b := NewEntryState(ctx)
	b.Locals.Set(0, ctx.Interner.Cst(8, true))

	MergeStates(ctx, 0, 0, Path{}, []State{a, b})
	if ctx.Stats.SPAnomalies != 0 {
		t.Fatalf("expected AssumeIdenticalSP to skip the SP check entirely, got %d anomalies", ctx.Stats.SPAnomalies)
	}
}

func TestAppendEdgeResetsTempsAndFlushesPredicates(t *testing.T) {
	ctx := testContext()
	s := NewEntryState(ctx)
	s.Locals.Set(-1, ctx.Interner.Cst(9, false))
	s.Preds.Generate(Predicate{Op: PredEq, LHS: ctx.Interner.Var(0), RHS: ctx.Interner.Cst(1, false)}, false)

	out := s.AppendEdge(ctx, 7, false)
	if !out.Locals.IsIdentity(-1) {
		t.Fatalf("expected temp slot to reset to identity across an edge")
	}
	if len(out.Preds.All()) != 1 {
		t.Fatalf("expected a generated predicate to flush into the persisted set")
	}
}
