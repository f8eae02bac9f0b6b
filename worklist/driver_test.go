package worklist

import (
	"context"
	"testing"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
	"github.com/jordy-ruiz/pathfinder/oracle"
	"github.com/jordy-ruiz/pathfinder/postproc"
	"github.com/jordy-ruiz/pathfinder/transfer"
)

type fakeDFA struct{}

func (fakeDFA) InitialValue(addr int32) (int32, bool) { return 0, false }

func testContext() *absint.Context {
	return absint.NewContext(cfg.Platform{SPRegister: 0, NumRegs: 4, NumTemps: 2}, fakeDFA{}, absint.Flags{})
}

// linearCFG builds Entry -set r1=5-> mid -set r1=r1+1-> Exit.
func linearCFG() *cfg.CFG {
	entry := &cfg.Block{ID: 0, Kind: cfg.Entry}
	mid := &cfg.Block{ID: 1, Kind: cfg.Basic, Insts: []cfg.Inst{
		{Op: cfg.OpSetImm, Dst: 1, Const: 5},
	}}
	exit := &cfg.Block{ID: 2, Kind: cfg.Exit}

	mid.Insts = append(mid.Insts, cfg.Inst{Op: cfg.OpArith, Dst: 1, Src1: 1, Const: 1, Imm: true, Op2: expr.Add})

	e0 := &cfg.Edge{ID: 0, Source: 0, Target: 1}
	e1 := &cfg.Edge{ID: 1, Source: 1, Target: 2}

	g := &cfg.CFG{
		Blocks:     map[cfg.BlockID]*cfg.Block{0: entry, 1: mid, 2: exit},
		Edges:      map[cfg.EdgeID]*cfg.Edge{0: e0, 1: e1},
		Out:        map[cfg.BlockID][]cfg.EdgeID{0: {0}, 1: {1}},
		In:         map[cfg.BlockID][]cfg.EdgeID{1: {0}, 2: {1}},
		EntryBlock: 0,
		ExitBlock:  2,
	}
	return g
}

func TestDriverRunsLinearCFGToExit(t *testing.T) {
	ctx := testContext()
	g := linearCFG()
	d := &Driver{Table: transfer.NewTable()}

	finished := d.Run(ctx, g)
	if len(finished) != 1 {
		t.Fatalf("expected exactly one state to reach exit, got %d", len(finished))
	}
	got := finished[0].Locals.Get(1)
	want := ctx.Interner.Cst(6, false)
	if got != want {
		t.Fatalf("expected r1 == 6 at exit, got %v", got)
	}
}

func TestDriverInvokesOracleHookPerEdge(t *testing.T) {
	ctx := testContext()
	g := linearCFG()
	var seen []cfg.EdgeID
	d := &Driver{
		Table: transfer.NewTable(),
		OracleHook: func(ctx *absint.Context, edge cfg.EdgeID, s absint.State) {
			seen = append(seen, edge)
		},
	}

	d.Run(ctx, g)
	if len(seen) != 2 {
		t.Fatalf("expected the hook to fire once per crossed edge, got %d calls", len(seen))
	}
}

// mutuallyExclusiveGuardsCFG builds:
//
//	Entry -> guard1(x<0) -then-> guard2(x>10) -then-> Exit
//	                   \-else-> Exit              \-else-> Exit
//
// Register 0 holds x. guard2 computes 10-x into register 2 (via register 1
// holding the immediate 10) and branches on its sign, since a Branch Inst
// can only compare a variable against zero. No instruction between the two
// guards writes register 0, so "then1" and "then2" both still describe x,
// and taking both then-edges on one path asserts x<0 and x>10 at once.
func mutuallyExclusiveGuardsCFG() *cfg.CFG {
	entry := &cfg.Block{ID: 0, Kind: cfg.Entry}
	guard1 := &cfg.Block{ID: 1, Kind: cfg.Basic, Insts: []cfg.Inst{
		{Op: cfg.OpBranch, Src1: 0, Const: int32(absint.PredLt), Taken: true},
		{Op: cfg.OpBranch, Src1: 0, Const: int32(absint.PredLt), Taken: false},
	}}
	guard2 := &cfg.Block{ID: 2, Kind: cfg.Basic, Insts: []cfg.Inst{
		{Op: cfg.OpSetImm, Dst: 1, Const: 10},
		{Op: cfg.OpArith, Dst: 2, Src1: 1, Src2: 0, Op2: expr.Sub},
		{Op: cfg.OpBranch, Src1: 2, Const: int32(absint.PredLt), Taken: true},
		{Op: cfg.OpBranch, Src1: 2, Const: int32(absint.PredLt), Taken: false},
	}}
	exit := &cfg.Block{ID: 3, Kind: cfg.Exit}

	e0 := &cfg.Edge{ID: 0, Source: 0, Target: 1}
	e1 := &cfg.Edge{ID: 1, Source: 1, Target: 2} // guard1 then: x < 0
	e2 := &cfg.Edge{ID: 2, Source: 1, Target: 3} // guard1 else
	e3 := &cfg.Edge{ID: 3, Source: 2, Target: 3} // guard2 then: x > 10
	e4 := &cfg.Edge{ID: 4, Source: 2, Target: 3} // guard2 else

	return &cfg.CFG{
		Blocks: map[cfg.BlockID]*cfg.Block{0: entry, 1: guard1, 2: guard2, 3: exit},
		Edges:  map[cfg.EdgeID]*cfg.Edge{0: e0, 1: e1, 2: e2, 3: e3, 4: e4},
		Out: map[cfg.BlockID][]cfg.EdgeID{
			0: {0},
			1: {1, 2},
			2: {3, 4},
		},
		In: map[cfg.BlockID][]cfg.EdgeID{
			1: {0},
			2: {1},
			3: {2, 3, 4},
		},
		EntryBlock: 0,
		ExitBlock:  3,
		EntryEdge:  0,
	}
}

// TestDriverOracleAndPostprocReportMinimizedMutuallyExclusiveGuards runs the
// mutually-exclusive-guards CFG through the full driver -> oracle ->
// post-processing pipeline and checks that the path pairing both guards'
// then-edges is reported minimized down to just those two edges, not the
// whole three-edge path from entry.
func TestDriverOracleAndPostprocReportMinimizedMutuallyExclusiveGuards(t *testing.T) {
	ctx := absint.NewContext(cfg.Platform{SPRegister: 3, NumRegs: 4, NumTemps: 1}, fakeDFA{}, absint.Flags{})
	g := mutuallyExclusiveGuardsCFG()

	var jobs []oracle.Job
	d := &Driver{
		Table: transfer.NewTable(),
		OracleHook: func(ctx *absint.Context, edge cfg.EdgeID, s absint.State) {
			jobs = append(jobs, oracle.Job{Edge: edge, State: s})
		},
	}
	d.Run(ctx, g)

	pool := &oracle.Pool{NewBackend: func() oracle.Backend { return oracle.NewZ3Backend() }, Workers: 1}
	verdicts, err := pool.CheckBatch(context.Background(), ctx, jobs)
	if err != nil {
		t.Fatalf("unexpected solver error: %v", err)
	}

	infeasible := oracle.ValidateAndProject(ctx, jobs, verdicts)
	for i := range infeasible {
		infeasible[i] = postproc.Shorten(infeasible[i], nil)
	}
	infeasible, _ = postproc.Dedup(infeasible)

	var found bool
	for _, p := range infeasible {
		edges := p.Edges()
		if len(edges) == 2 && edges[0] == 1 && edges[1] == 3 {
			found = true
		}
		if len(edges) > 2 {
			t.Fatalf("expected every reported path to already be minimized down to its contradictory edges, got %v", edges)
		}
	}
	if !found {
		t.Fatalf("expected a minimized 2-edge path pairing guard1's then-edge (1) with guard2's then-edge (3), got %v", infeasible)
	}
}
