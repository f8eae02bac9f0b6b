package expr

import "sync"

// Interner is the DAG factory: it owns every node it returns and guarantees
// that structurally equal trees are represented by the same *Expr pointer.
// One Interner is created per analysis Context and lives as long as any
// State referencing its nodes (see absint.Context).
//
// The bucket/shallowEq cache mirrors gosmt's ExprBuilder (getOrCreateBV):
// hash to a bucket, linearly scan for a shallow-equal candidate, otherwise
// intern a fresh node.
type Interner struct {
	mu      sync.Mutex
	buckets map[uint64][]*Expr
	nextID  uint64
	top     *Expr
}

// NewInterner creates an empty DAG factory.
func NewInterner() *Interner {
	it := &Interner{buckets: make(map[uint64][]*Expr)}
	it.top = it.intern(&Expr{kind: KindTop})
	return it
}

func (it *Interner) intern(cand *Expr) *Expr {
	it.mu.Lock()
	defer it.mu.Unlock()

	h := cand.hash()
	bucket := it.buckets[h]
	for _, e := range bucket {
		if e.shallowEq(cand) {
			return e
		}
	}
	it.nextID++
	cand.id = it.nextID
	it.buckets[h] = append(bucket, cand)
	return cand
}

// Top returns the designated unknown value.
func (it *Interner) Top() *Expr { return it.top }

// Cst interns a (possibly SP-relative) 32-bit constant.
func (it *Interner) Cst(k int32, spRelative bool) *Expr {
	return it.intern(&Expr{kind: KindConst, constVal: k, spRelative: spRelative})
}

// Var interns a register (i>=0) or temp (i<0) reference.
func (it *Interner) Var(i int) *Expr {
	return it.intern(&Expr{kind: KindVar, varIdx: i})
}

// Mem interns a dereference of an address expression (constant or not).
func (it *Interner) Mem(addr *Expr) *Expr {
	return it.intern(&Expr{kind: KindMem, memAddr: addr})
}

// Iter interns the symbolic iteration count of loop header h.
func (it *Interner) Iter(h BlockID) *Expr {
	return it.intern(&Expr{kind: KindIter, iterHeader: h})
}

func (it *Interner) arith(op ArithOp, a, b *Expr) *Expr {
	return it.intern(&Expr{kind: KindArith, op: op, lhs: a, rhs: b})
}

// canonicalOrder returns operands in the order required for commutative
// normalization: the operand with the smaller interned id goes left.
func canonicalOrder(a, b *Expr) (*Expr, *Expr) {
	if a.id <= b.id {
		return a, b
	}
	return b, a
}

func foldConst(op ArithOp, a, b *Expr) (int32, bool) {
	if !a.IsConst() || (b != nil && !b.IsConst()) {
		return 0, false
	}
	av, asp := a.ConstValue()
	if asp {
		return 0, false // SP-relative constants only fold under Add/Sub with a plain offset
	}
	if b == nil {
		switch op {
		case Neg:
			return -av, true
		}
		return 0, false
	}
	bv, bsp := b.ConstValue()
	if bsp {
		return 0, false
	}
	switch op {
	case Add:
		return av + bv, true
	case Sub:
		return av - bv, true
	case Mul:
		return av * bv, true
	case Div:
		if bv == 0 {
			return 0, false
		}
		return av / bv, true
	case Mod:
		if bv == 0 {
			return 0, false
		}
		return av % bv, true
	}
	return 0, false
}

// Add builds a+b, applying x+0=x, cst+cst folding, SP+const folding and the
// (x+c1)+c2 = x+(c1+c2) rewrite.
func (it *Interner) Add(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if a.IsConst() {
		if av, _ := a.ConstValue(); av == 0 && !mustKeepSPSide(a) {
			return b
		}
	}
	if b.IsConst() {
		if bv, bsp := b.ConstValue(); bv == 0 && !bsp {
			return a
		}
	}
	// SP-relative + plain const, either order, folds the offset.
	if a.IsConst() && b.IsConst() {
		av, asp := a.ConstValue()
		bv, bsp := b.ConstValue()
		if asp && !bsp {
			return it.Cst(av+bv, true)
		}
		if bsp && !asp {
			return it.Cst(av+bv, true)
		}
		if !asp && !bsp {
			return it.Cst(av+bv, false)
		}
	}
	// (x+c1)+c2 = x+(c1+c2)
	if a.kind == KindArith && a.op == Add && a.rhs.IsConst() && b.IsConst() {
		c1, _ := a.rhs.ConstValue()
		c2, bsp := b.ConstValue()
		if !bsp {
			return it.Add(a.lhs, it.Cst(c1+c2, false))
		}
	}
	x, y := canonicalOrder(a, b)
	if v, ok := foldConst(Add, x, y); ok {
		return it.Cst(v, false)
	}
	return it.arith(Add, x, y)
}

func mustKeepSPSide(e *Expr) bool { return e.spRelative }

// Sub builds a-b, applying x-0=x and constant folding.
func (it *Interner) Sub(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if bv, bsp := zeroConst(b); bv && !bsp {
		return a
	}
	if a == b {
		return it.Cst(0, false)
	}
	if v, ok := foldConst(Sub, a, b); ok {
		return it.Cst(v, false)
	}
	return it.arith(Sub, a, b)
}

func zeroConst(e *Expr) (isZero, spRelative bool) {
	if !e.IsConst() {
		return false, false
	}
	v, sp := e.ConstValue()
	return v == 0, sp
}

// Mul builds a*b, applying x*0=0, x*1=x and constant folding.
func (it *Interner) Mul(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if isZero, sp := zeroConst(a); isZero && !sp {
		return a
	}
	if isZero, sp := zeroConst(b); isZero && !sp {
		return b
	}
	if a.IsConst() {
		if av, sp := a.ConstValue(); av == 1 && !sp {
			return b
		}
	}
	if b.IsConst() {
		if bv, sp := b.ConstValue(); bv == 1 && !sp {
			return a
		}
	}
	x, y := canonicalOrder(a, b)
	if v, ok := foldConst(Mul, x, y); ok {
		return it.Cst(v, false)
	}
	return it.arith(Mul, x, y)
}

// Div builds a/b (signed, truncating), folding constants; a constant
// divisor of zero is left symbolic rather than folded.
func (it *Interner) Div(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if v, ok := foldConst(Div, a, b); ok {
		return it.Cst(v, false)
	}
	return it.arith(Div, a, b)
}

// Mod builds a%b, folding constants.
func (it *Interner) Mod(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if v, ok := foldConst(Mod, a, b); ok {
		return it.Cst(v, false)
	}
	return it.arith(Mod, a, b)
}

// Neg builds -a, cancelling double negation and folding constants.
func (it *Interner) Neg(a *Expr) *Expr {
	if a.IsTop() {
		return it.top
	}
	if a.kind == KindArith && a.op == Neg {
		return a.lhs
	}
	if v, ok := foldConst(Neg, a, nil); ok {
		return it.Cst(v, false)
	}
	return it.arith(Neg, a, nil)
}

// Cmp builds a three-way comparison node (used to model condition-code
// producing instructions before a branch consumes it).
func (it *Interner) Cmp(a, b *Expr) *Expr {
	if a.IsTop() || b.IsTop() {
		return it.top
	}
	if a == b {
		return it.Cst(0, false)
	}
	return it.arith(Cmp, a, b)
}
