package absint

import (
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"

	log "github.com/sirupsen/logrus"
)

// State is one abstract value carried along one path through a CFG: a
// local-variable map, a memory map, a labelled-predicate store and the
// detailed path recording how it got here. Bottom marks a state that is
// unreachable regardless of which outgoing edge it is about to cross.
//
// BottomTaken/BottomNotTaken record a branch condition that resolved to a
// known constant during block transfer: since a single post-block state
// feeds every outgoing edge, a resolved condition can only mark ONE
// direction unreachable, so the verdict is held per-direction until
// AppendEdge folds the one that matches the edge actually taken into
// Bottom and clears both.
type State struct {
	Ctx            *Context
	Path           Path
	Locals         Locals
	Mem            Memory
	Preds          PredicateStore
	Bottom         bool
	BottomTaken    bool
	BottomNotTaken bool
}

// NewEntryState builds the initial abstract state at a CFG's entry block:
// every local is identity, memory is empty at the zero MemID, no
// predicates, empty path.
func NewEntryState(ctx *Context) State {
	return State{
		Ctx:    ctx,
		Locals: NewLocals(ctx.Platform.NumRegs, ctx.Platform.NumTemps),
		Mem:    NewMemory(),
		Preds:  NewPredicateStore(),
	}
}

// Clone makes an independent copy; callers mutate the copy freely without
// disturbing any other State sharing the same history.
func (s State) Clone() State {
	return State{
		Ctx:            s.Ctx,
		Path:           s.Path.clone(),
		Locals:         s.Locals.clone(),
		Mem:            s.Mem.clone(),
		Preds:          s.Preds.clone(),
		Bottom:         s.Bottom,
		BottomTaken:    s.BottomTaken,
		BottomNotTaken: s.BottomNotTaken,
	}
}

// AppendEdge records the traversal of edge e (flushing any predicates the
// preceding block transfer generated, labelled with e) and resets
// block-local state: temp slots go back to identity. A per-direction
// bottom verdict left by a resolved branch condition is folded into
// Bottom here, the first point at which "taken" is actually known.
func (s State) AppendEdge(ctx *Context, e cfg.EdgeID, taken bool) State {
	out := s.Clone()
	if (taken && s.BottomTaken) || (!taken && s.BottomNotTaken) {
		out.Bottom = true
	}
	out.BottomTaken = false
	out.BottomNotTaken = false
	out.Preds.FlushOnEdge(e, taken)
	out.Preds.ClampTo(ctx.Flags.ClampPredicateSize)
	out.Locals.OnEdge()
	out.Path = out.Path.Append(EdgeFlow(e))
	return out
}

// EnterLoop records a LoopEntry marker for loop header h.
func (s State) EnterLoop(h cfg.BlockID) State {
	out := s.Clone()
	out.Path = out.Path.Append(LoopEntryFlow(h))
	return out
}

// ExitLoop records a LoopExit marker for loop header h.
func (s State) ExitLoop(h cfg.BlockID) State {
	out := s.Clone()
	out.Path = out.Path.Append(LoopExitFlow(h))
	return out
}

// EnterCall records a Call marker at call-site block sb.
func (s State) EnterCall(sb cfg.BlockID) State {
	out := s.Clone()
	out.Path = out.Path.Append(CallFlow(sb))
	return out
}

// Return records a Return marker at call-site block sb.
func (s State) Return(sb cfg.BlockID) State {
	out := s.Clone()
	out.Path = out.Path.Append(ReturnFlow(sb))
	return out
}

// MergeStates joins several states flowing into the same block. A MemID
// mismatch forces a memory wipe at (at, offset); locals and predicates
// merge pointwise/by-intersection; the path carried forward is whatever
// the caller supplies (typically rebuilt from the confluence block's
// enclosing loop/call context via PathFromEnclosingContext, since no
// single incoming path is canonically "the" merged path). Reports whether
// the result differs from the first non-Bottom state; with at most one
// non-Bottom state it reports false.
func MergeStates(ctx *Context, at cfg.BlockID, offset int, path Path, states []State) (State, bool) {
	if len(states) == 0 {
		return State{}, false
	}
	live := states[:0:0]
	for _, s := range states {
		if !s.Bottom {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		out := states[0].Clone()
		out.Bottom = true
		out.Path = path
		return out, false
	}
	if len(live) == 1 {
		out := live[0].Clone()
		out.Path = path
		return out, false
	}

	if !ctx.Flags.AssumeIdenticalSP {
		checkSPConsistency(ctx, at, live)
	}

	localsList := make([]Locals, len(live))
	memList := make([]Memory, len(live))
	predsList := make([]PredicateStore, len(live))
	for i, s := range live {
		localsList[i] = s.Locals
		memList[i] = s.Mem
		predsList[i] = s.Preds
	}

	mergedLocals, ldiff := mergeLocals(localsList[0], localsList[1])
	for i := 2; i < len(localsList); i++ {
		var d bool
		mergedLocals, d = mergeLocals(mergedLocals, localsList[i])
		ldiff = ldiff || d
	}

	seedID := memList[0].ID()
	mergedMem, mdiff := mergeMemory(ctx, at, offset, seedID, memList)

	mergedPreds := mergePredicates(predsList)
	pdiff := !equivalentPredicateSets(mergedPreds, predsList[0])

	ctx.Stats.Merges++
	out := State{
		Ctx:    ctx,
		Path:   path,
		Locals: mergedLocals,
		Mem:    mergedMem,
		Preds:  mergedPreds,
	}
	return out, ldiff || mdiff || pdiff
}

// spOffset reads state's stack-pointer register as an offset from the
// entry-time SP: identity means SP0+0, an SP-relative constant means
// SP0+k. tracked is false when the register holds anything else (lost
// track of SP entirely), which checkSPConsistency treats as uninformative
// rather than as a mismatch.
func spOffset(ctx *Context, l Locals) (offset int32, tracked bool) {
	v := l.Get(ctx.Platform.SPRegister)
	if v == nil {
		return 0, true
	}
	if !v.IsConst() {
		return 0, false
	}
	cv, spRelative := v.ConstValue()
	if !spRelative {
		return 0, false
	}
	return cv, true
}

// checkSPConsistency implements the merge precondition: if the states
// converging on at disagree about the stack pointer's offset from entry,
// that indicates a soundness issue in the lifter's stack tracking. Under
// SP_CRITICAL this aborts the run; otherwise it is warned and the merge
// proceeds conservatively (the disagreeing lvars slot collapses to
// identity the same way any other disagreement does).
func checkSPConsistency(ctx *Context, at cfg.BlockID, live []State) {
	var first int32
	haveFirst := false
	mismatch := false
	for _, s := range live {
		off, tracked := spOffset(ctx, s.Locals)
		if !tracked {
			continue
		}
		if !haveFirst {
			first, haveFirst = off, true
			continue
		}
		if off != first {
			mismatch = true
			break
		}
	}
	if !mismatch {
		return
	}
	ctx.Stats.SPAnomalies++
	fields := log.Fields{"block": at}
	if ctx.Flags.SPCritical {
		log.WithFields(fields).Fatal("states converging on this block disagree about the stack pointer's entry offset")
		return
	}
	log.WithFields(fields).Warn("states converging on this block disagree about the stack pointer's entry offset, proceeding conservatively")
}

// Widen accelerates a loop-header state across a fixpoint iteration: any
// local or memory cell that changed between prev and cur is replaced with
// a fresh Iter(h) marker rather than the two candidate values, the same
// way a widening operator in abstract interpretation trades precision for
// termination. Memory cells are only compared, and widened, when prev and
// cur carry the same MemID; otherwise cur's cells are kept as they are. Predicates that became inconsistent with the widened
// values are dropped by the next block transfer's own invalidation, not
// here.
func Widen(ctx *Context, h cfg.BlockID, prev, cur State) State {
	out := cur.Clone()
	it := ctx.Interner

	widenedLocals := cur.Locals.clone()
	for i := 0; i < widenedLocals.NumRegs()+widenedLocals.NumTemps(); i++ {
		idx := localIndexFor(widenedLocals, i)
		if prev.Locals.Get(idx) != cur.Locals.Get(idx) {
			widenedLocals.Set(idx, it.Iter(h))
		}
	}
	out.Locals = widenedLocals

	widenedMem := cur.Mem.clone()
	if prev.Mem.ID() == cur.Mem.ID() {
		changed := map[int32]bool{}
		prev.Mem.Each(func(addr int32, e *expr.Expr) {
			if cur.Mem.Get(addr) != e {
				changed[addr] = true
			}
		})
		cur.Mem.Each(func(addr int32, e *expr.Expr) {
			if prev.Mem.Get(addr) != e {
				changed[addr] = true
			}
		})
		for addr := range changed {
			widenedMem.Set(addr, it.Iter(h))
		}
	}
	out.Mem = widenedMem

	ctx.Stats.Widenings++
	return out
}

// localIndexFor walks the signed variable-index space a Locals exposes:
// registers 0..numRegs-1, then temps -1..-numTemps.
func localIndexFor(l Locals, slot int) int {
	if slot < l.NumRegs() {
		return slot
	}
	return -(slot - l.NumRegs() + 1)
}

// Apply composes a callee-exit state back into a caller-entry state at a
// call site: the callee's expressions are rewritten so any reference to
// one of its entry-time variables or to an SP-relative address resolves
// in terms of the caller's values, then the rewritten locals/mem/preds
// are merged into the caller state and the callee's path (wrapped in a
// matching Call/Return pair) is appended. A register the callee left at
// identity keeps the caller's binding; a callee memory wipe replaces the
// caller's memory, otherwise the callee's cells overwrite the caller's;
// the callee's predicates are added to the caller's.
func Apply(ctx *Context, caller, calleeEntry, calleeExit State, sb cfg.BlockID) State {
	rewrite := composeRewriter(ctx, calleeEntry, caller)

	out := caller.Clone()
	calleeLocals := rewriteLocals(calleeExit.Locals, rewrite)
	for i := 0; i < calleeLocals.NumRegs(); i++ {
		if v := calleeLocals.Get(i); v != nil {
			out.Locals.Set(i, v)
		}
	}
	calleeMem := rewriteMemory(calleeExit.Mem, rewrite)
	if calleeMem.ID().wiped {
		out.Mem = calleeMem
	} else {
		calleeMem.Each(func(addr int32, e *expr.Expr) { out.Mem.Set(addr, e) })
	}
	calleePreds := rewritePredicates(calleeExit.Preds, rewrite)
	out.Preds.persisted = append(out.Preds.persisted, calleePreds.persisted...)

	out.Path = out.Path.Append(CallFlow(sb))
	for _, fi := range calleeExit.Path.Items() {
		out.Path = out.Path.Append(fi)
	}
	out.Path = out.Path.Append(ReturnFlow(sb))
	return out
}

// rewriter substitutes a callee-entry expression for its caller-time
// value; built once per Apply call and threaded through the three
// rewriteXxx helpers below.
type rewriter struct {
	ctx    *Context
	memo   map[*expr.Expr]*expr.Expr
	caller State
	entry  State
}

func composeRewriter(ctx *Context, calleeEntry, caller State) *rewriter {
	return &rewriter{ctx: ctx, memo: map[*expr.Expr]*expr.Expr{}, caller: caller, entry: calleeEntry}
}

func (r *rewriter) rewrite(e *expr.Expr) *expr.Expr {
	if e == nil {
		return nil
	}
	if v, ok := r.memo[e]; ok {
		return v
	}
	var out *expr.Expr
	switch e.Kind() {
	case expr.KindVar:
		out = r.caller.Locals.Get(e.VarIndex())
		if out == nil {
			out = e
		}
	case expr.KindConst:
		if cv, spRel := e.ConstValue(); spRel {
			sp := r.caller.Locals.Get(r.caller.Ctx.Platform.SPRegister)
			if sp != nil {
				out = r.ctx.Interner.Add(sp, r.ctx.Interner.Cst(cv, false))
			} else {
				out = e
			}
		} else {
			out = e
		}
	case expr.KindMem:
		out = r.ctx.Interner.Mem(r.rewrite(e.MemAddr()))
	case expr.KindArith:
		if e.Op() == expr.Neg {
			out = r.ctx.Interner.Neg(r.rewrite(e.LHS()))
		} else {
			out = r.applyArith(e.Op(), r.rewrite(e.LHS()), r.rewrite(e.RHS()))
		}
	default:
		out = e
	}
	r.memo[e] = out
	return out
}

func (r *rewriter) applyArith(op expr.ArithOp, a, b *expr.Expr) *expr.Expr {
	switch op {
	case expr.Add:
		return r.ctx.Interner.Add(a, b)
	case expr.Sub:
		return r.ctx.Interner.Sub(a, b)
	case expr.Mul:
		return r.ctx.Interner.Mul(a, b)
	case expr.Div:
		return r.ctx.Interner.Div(a, b)
	case expr.Mod:
		return r.ctx.Interner.Mod(a, b)
	case expr.Cmp:
		return r.ctx.Interner.Cmp(a, b)
	default:
		return r.ctx.Interner.Top()
	}
}

func rewriteLocals(l Locals, r *rewriter) Locals {
	out := l.clone()
	for i := 0; i < out.NumRegs(); i++ {
		if v := out.Get(i); v != nil {
			out.Set(i, r.rewrite(v))
		}
	}
	return out
}

func rewriteMemory(m Memory, r *rewriter) Memory {
	out := m.clone()
	m.Each(func(addr int32, e *expr.Expr) {
		out.Set(addr, r.rewrite(e))
	})
	return out
}

func rewritePredicates(p PredicateStore, r *rewriter) PredicateStore {
	out := p.clone()
	for i, lp := range out.persisted {
		out.persisted[i].Pred.LHS = r.rewrite(lp.Pred.LHS)
		out.persisted[i].Pred.RHS = r.rewrite(lp.Pred.RHS)
	}
	return out
}

// Equivalent implements the fixpoint equivalence test a loop-header status
// machine uses to decide whether another widening round is needed: locals
// agree slot-for-slot, memory carries the same MemID and cell contents,
// and the predicate sets are equal ignoring labels.
func (s State) Equivalent(o State) bool {
	if s.Bottom != o.Bottom {
		return false
	}
	if s.Bottom {
		return true
	}
	if s.Mem.ID() != o.Mem.ID() || s.Mem.Len() != o.Mem.Len() {
		return false
	}
	eq := true
	s.Mem.Each(func(addr int32, e *expr.Expr) {
		if o.Mem.Get(addr) != e {
			eq = false
		}
	})
	if !eq {
		return false
	}
	n := s.Locals.NumRegs() + s.Locals.NumTemps()
	for i := 0; i < n; i++ {
		idx := localIndexFor(s.Locals, i)
		if s.Locals.Get(idx) != o.Locals.Get(idx) {
			return false
		}
	}
	return equivalentPredicateSets(s.Preds, o.Preds)
}

// States is an ordered collection of State, the unit a worklist driver
// threads through merge/widen/apply at each CFG edge.
type States []State

// Clone copies every element.
func (ss States) Clone() States {
	out := make(States, len(ss))
	for i, s := range ss {
		out[i] = s.Clone()
	}
	return out
}

// AppendEdge maps State.AppendEdge across the collection.
func (ss States) AppendEdge(ctx *Context, e cfg.EdgeID, taken bool) States {
	out := make(States, len(ss))
	for i, s := range ss {
		out[i] = s.AppendEdge(ctx, e, taken)
	}
	return out
}
