package transfer

import (
	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// Result is the outcome of interpreting one Inst: the state it produced.
// A Branch whose condition is a known constant records the impossible
// direction on the state's BottomTaken/BottomNotTaken, which AppendEdge
// later folds into Bottom.
type Result struct {
	State absint.State
}

// site identifies the program point an instruction executes at, needed
// whenever a rule must stamp a fresh MemID (a store to an address that
// does not resolve to a constant wipes memory at (Block, Offset)).
type site struct {
	Block  cfg.BlockID
	Offset int
}

// execFn executes one semantic instruction against a state.
type execFn func(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result

// op is one entry of the dispatch table: valid guards against an
// unpopulated slot ever being called by accident.
type op struct {
	valid bool
	exec  execFn
}

func fromExec(fn execFn) op {
	return op{valid: true, exec: fn}
}

// Table is the SemOp-indexed dispatch table, the same shape as a 256-entry
// opcode table cut down to the 8 semantic-instruction kinds a basic block's
// instruction stream is built from.
type Table [numSemOps]op

const numSemOps = int(cfg.OpScratch) + 1

// NewTable builds the one dispatch table every transfer call uses; it has
// no mutable state, so a single instance is shared across all analyses.
func NewTable() *Table {
	var t Table
	t[cfg.OpLoad] = fromExec(execLoad)
	t[cfg.OpStore] = fromExec(execStore)
	t[cfg.OpSet] = fromExec(execSet)
	t[cfg.OpSetImm] = fromExec(execSetImm)
	t[cfg.OpCmp] = fromExec(execCmp)
	t[cfg.OpBranch] = fromExec(execBranch)
	t[cfg.OpArith] = fromExec(execArith)
	t[cfg.OpScratch] = fromExec(execScratch)
	return &t
}

// Exec dispatches inst to its handler. It panics on an unpopulated slot,
// which can only happen if cfg.SemOp grows without a matching handler —
// a programming error, not a runtime condition callers should recover from.
func (t *Table) Exec(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	entry := t[inst.Op]
	if !entry.valid {
		panic("transfer: unpopulated dispatch table entry")
	}
	return entry.exec(ctx, s, inst, at)
}

// Block runs every instruction of b against s in order, threading the
// resulting state through. A Bottom result short-circuits the remaining
// instructions: a block transfer on an infeasible state stays infeasible.
func (t *Table) Block(ctx *absint.Context, s absint.State, b *cfg.Block) absint.State {
	cur := s
	for i, inst := range b.Insts {
		if cur.Bottom {
			return cur
		}
		cur = t.Exec(ctx, cur, inst, site{Block: b.ID, Offset: i}).State
	}
	return cur
}
