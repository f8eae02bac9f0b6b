package oracle

import (
	"fmt"
	"math/big"

	"github.com/aclements/go-z3/z3"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/expr"
)

// bvWidth is the bit width every expr.Expr node is translated at. The
// abstract domain only ever carries 32-bit register/memory cell values.
const bvWidth = 32

// translator converts expr.Expr nodes into z3.BV terms, memoizing on the
// node's own pointer: since expr.Expr is hash-consed, structurally equal
// subexpressions are already the same pointer, so the cache also collapses
// sharing in the generated query the same way it is shared in the DAG.
type translator struct {
	z3ctx *z3.Context
	cache map[*expr.Expr]z3.BV
	sort  z3.Sort
}

func newTranslator(z3ctx *z3.Context) *translator {
	return &translator{
		z3ctx: z3ctx,
		cache: make(map[*expr.Expr]z3.BV),
		sort:  z3ctx.BVSort(bvWidth),
	}
}

func (t *translator) bv(e *expr.Expr) z3.BV {
	if v, ok := t.cache[e]; ok {
		return v
	}
	var out z3.BV
	switch e.Kind() {
	case expr.KindConst:
		v, _ := e.ConstValue()
		out = t.z3ctx.FromBigInt(big.NewInt(int64(v)), t.sort).(z3.BV)
	case expr.KindVar:
		out = t.z3ctx.BVConst(fmt.Sprintf("var_%d", e.VarIndex()), bvWidth)
	case expr.KindMem:
		t.bv(e.MemAddr()) // ensure address subexpression is cached too
		out = t.z3ctx.BVConst(fmt.Sprintf("mem_%p", e.MemAddr()), bvWidth)
	case expr.KindIter:
		out = t.z3ctx.BVConst(fmt.Sprintf("iter_%d", e.IterHeader()), bvWidth)
	case expr.KindArith:
		out = t.arith(e)
	case expr.KindTop:
		out = t.z3ctx.BVConst(fmt.Sprintf("top_%p", e), bvWidth)
	}
	t.cache[e] = out
	return out
}

func (t *translator) arith(e *expr.Expr) z3.BV {
	lhs := t.bv(e.LHS())
	if e.Op() == expr.Neg {
		return lhs.Neg()
	}
	rhs := t.bv(e.RHS())
	switch e.Op() {
	case expr.Add:
		return lhs.Add(rhs)
	case expr.Sub:
		return lhs.Sub(rhs)
	case expr.Mul:
		return lhs.Mul(rhs)
	case expr.Div:
		return lhs.SDiv(rhs)
	case expr.Mod:
		return lhs.SRem(rhs)
	case expr.Cmp:
		lt := lhs.SLT(rhs)
		eq := lhs.Eq(rhs)
		negOne := t.z3ctx.FromBigInt(big.NewInt(-1), t.sort).(z3.BV)
		zero := t.z3ctx.FromBigInt(big.NewInt(0), t.sort).(z3.BV)
		one := t.z3ctx.FromBigInt(big.NewInt(1), t.sort).(z3.BV)
		return lt.IfThenElse(negOne, eq.IfThenElse(zero, one)).(z3.BV)
	}
	panic("oracle: unreachable arith op in translation")
}

// predicate converts a Predicate into the z3.Bool it asserts.
func (t *translator) predicate(p absint.Predicate) z3.Bool {
	lhs := t.bv(p.LHS)
	rhs := t.bv(p.RHS)
	switch p.Op {
	case absint.PredEq:
		return lhs.Eq(rhs)
	case absint.PredNe:
		return lhs.Eq(rhs).Not()
	case absint.PredLt:
		return lhs.SLT(rhs)
	case absint.PredLe:
		return lhs.SLE(rhs)
	}
	panic("oracle: unreachable predicate op in translation")
}
