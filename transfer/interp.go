package transfer

import (
	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"

	log "github.com/sirupsen/logrus"
)

// resolveAddr tries to fold the expression bound to variable i into a
// constant memory cell address, consulting SP-relative folding when the
// bound value is itself SP-relative.
func resolveAddr(ctx *absint.Context, s absint.State, varIdx int) (int32, bool) {
	v := s.Locals.Get(varIdx)
	if v == nil || !v.IsConst() {
		return 0, false
	}
	cv, spRel := v.ConstValue()
	if !spRel {
		return cv, true
	}
	sp := s.Locals.Get(ctx.Platform.SPRegister)
	if sp == nil {
		return 0, false
	}
	spv, spRel2 := sp.ConstValue()
	if !sp.IsConst() || spRel2 {
		return 0, false
	}
	addr, ok := absint.FoldSPAddress(spv, cv)
	return addr, ok
}

func execLoad(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)

	if addr, ok := resolveAddr(ctx, s, inst.Addr); ok {
		if v := out.Mem.Get(addr); v != nil {
			out.Locals.Set(inst.Dst, v)
			return Result{State: out}
		}
		if ctx.Flags.UseInitialData {
			if iv, ok := ctx.DFA.InitialValue(addr); ok {
				cst := ctx.Interner.Cst(iv, false)
				out.Locals.Set(inst.Dst, cst)
				return Result{State: out}
			}
		}
		out.Locals.Set(inst.Dst, ctx.Interner.Mem(ctx.Interner.Cst(addr, false)))
		return Result{State: out}
	}

	addrExpr := s.Locals.Get(inst.Addr)
	if addrExpr == nil {
		addrExpr = ctx.Interner.Var(inst.Addr)
	}
	out.Locals.Set(inst.Dst, ctx.Interner.Mem(addrExpr))
	return Result{State: out}
}

func execStore(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	src := out.Locals.Get(inst.Src1)
	if src == nil {
		src = ctx.Interner.Var(inst.Src1)
	}

	if addr, ok := resolveAddr(ctx, s, inst.Addr); ok {
		out.Mem.Set(addr, src)
		return Result{State: out}
	}

	log.WithFields(log.Fields{"block": at.Block, "offset": at.Offset}).
		Debug("store target did not resolve to a constant address, wiping memory")
	out.Mem.Wipe(at.Block, at.Offset)
	return Result{State: out}
}

func execSet(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)
	out.Locals.InvalidateVar(inst.Dst)

	v := s.Locals.Get(inst.Src1)
	if v == nil {
		v = ctx.Interner.Var(inst.Src1)
	}
	out.Locals.Set(inst.Dst, v)
	return Result{State: out}
}

func execSetImm(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)
	out.Locals.Set(inst.Dst, ctx.Interner.Cst(inst.Const, false))
	return Result{State: out}
}

func execCmp(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)

	a := operandVar(ctx, s, inst.Src1)
	var b *expr.Expr
	if inst.Imm {
		b = ctx.Interner.Cst(inst.Const, false)
	} else {
		b = operandVar(ctx, s, inst.Src2)
	}
	out.Locals.Set(inst.Dst, ctx.Interner.Cmp(a, b))
	return Result{State: out}
}

func execArith(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)

	a := operandVar(ctx, s, inst.Src1)
	var b *expr.Expr
	if inst.Op2 != expr.Neg {
		if inst.Imm {
			b = ctx.Interner.Cst(inst.Const, false)
		} else {
			b = operandVar(ctx, s, inst.Src2)
		}
	}
	out.Locals.Set(inst.Dst, applyArith(ctx, inst.Op2, a, b))
	return Result{State: out}
}

func applyArith(ctx *absint.Context, op expr.ArithOp, a, b *expr.Expr) *expr.Expr {
	switch op {
	case expr.Add:
		return ctx.Interner.Add(a, b)
	case expr.Sub:
		return ctx.Interner.Sub(a, b)
	case expr.Mul:
		return ctx.Interner.Mul(a, b)
	case expr.Div:
		return ctx.Interner.Div(a, b)
	case expr.Mod:
		return ctx.Interner.Mod(a, b)
	case expr.Neg:
		return ctx.Interner.Neg(a)
	case expr.Cmp:
		return ctx.Interner.Cmp(a, b)
	}
	return ctx.Interner.Top()
}

// execBranch generates the predicate this branch direction implies, unless
// the condition is already a resolved constant: then no predicate carries
// any information, and the verdict for this direction is recorded on
// BottomTaken/BottomNotTaken for AppendEdge to apply once the edge
// actually taken is known.
func execBranch(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	cond := operandVar(ctx, s, inst.Src1)
	base := absint.CmpOp(inst.Const)
	op := branchPredOp(inst.Const, inst.Taken)

	if cond.IsConst() {
		cv, sp := cond.ConstValue()
		if !sp {
			// the taken direction is unreachable iff "cv base 0" fails,
			// the not-taken direction iff it holds.
			holds := !contradicts(base, cv)
			if inst.Taken {
				out.BottomTaken = !holds
			} else {
				out.BottomNotTaken = holds
			}
			return Result{State: out}
		}
	}

	zero := ctx.Interner.Cst(0, false)
	lhs, rhs := cond, zero
	if !inst.Taken && (base == absint.PredLt || base == absint.PredLe) {
		// not(c < 0) is 0 <= c, and not(c <= 0) is 0 < c.
		lhs, rhs = zero, cond
	}
	out.Preds.Generate(absint.Predicate{Op: op, LHS: lhs, RHS: rhs}, inst.Taken)
	return Result{State: out}
}

// branchPredOp maps the raw comparison kind stored on the Inst plus the
// branch direction onto the predicate that direction asserts: the taken
// edge asserts the comparison holds, the not-taken edge asserts its
// negation. For Lt/Le the returned op is only the negation once execBranch
// swaps the operands (not(c < 0) is asserted as 0 <= c).
func branchPredOp(kind int32, taken bool) absint.CmpOp {
	base := absint.CmpOp(kind)
	if taken {
		return base
	}
	switch base {
	case absint.PredEq:
		return absint.PredNe
	case absint.PredNe:
		return absint.PredEq
	case absint.PredLt:
		return absint.PredLe // with swapped operands: c >= 0 is 0 <= c
	case absint.PredLe:
		return absint.PredLt
	}
	return base
}

func contradicts(op absint.CmpOp, cv int32) bool {
	switch op {
	case absint.PredEq:
		return cv != 0
	case absint.PredNe:
		return cv == 0
	case absint.PredLt:
		return cv >= 0
	case absint.PredLe:
		return cv > 0
	}
	return false
}

// execScratch marks dst as a volatile register transfer does not track:
// every predicate mentioning it is dropped, and its binding becomes Top
// rather than identity — identity would assert the clobbered register
// still equals its entry value, a claim scratch makes no such guarantee
// for, so a lighter Top marker is the sound approximation.
func execScratch(ctx *absint.Context, s absint.State, inst cfg.Inst, at site) Result {
	out := s.Clone()
	out.Preds.InvalidateVar(inst.Dst, ctx.Interner)
	out.Locals.Set(inst.Dst, ctx.Interner.Top())
	return Result{State: out}
}

func operandVar(ctx *absint.Context, s absint.State, i int) *expr.Expr {
	v := s.Locals.Get(i)
	if v == nil {
		return ctx.Interner.Var(i)
	}
	return v
}
