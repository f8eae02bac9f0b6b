package expr

import "testing"

func TestInternerCanonicity(t *testing.T) {
	it := NewInterner()

	a1 := it.Add(it.Var(1), it.Var(2))
	a2 := it.Add(it.Var(1), it.Var(2))
	if a1 != a2 {
		t.Fatalf("expected identical pointers for structurally equal expressions")
	}

	// commutative normalization: a+b and b+a intern to the same node.
	b1 := it.Add(it.Var(2), it.Var(1))
	if a1 != b1 {
		t.Fatalf("expected commutative normalization to produce the same node")
	}
}

func TestConstantFolding(t *testing.T) {
	it := NewInterner()

	c := it.Add(it.Cst(2, false), it.Cst(3, false))
	if v, sp := c.ConstValue(); v != 5 || sp {
		t.Fatalf("expected folded constant 5, got %d (sp=%v)", v, sp)
	}

	z := it.Mul(it.Var(0), it.Cst(0, false))
	if !z.IsConst() {
		t.Fatalf("expected x*0 to fold to a constant")
	}
	if v, _ := z.ConstValue(); v != 0 {
		t.Fatalf("expected x*0 == 0, got %d", v)
	}

	same := it.Add(it.Var(4), it.Cst(0, false))
	if same != it.Var(4) {
		t.Fatalf("expected x+0 == x")
	}
}

func TestAffineRewrite(t *testing.T) {
	it := NewInterner()

	inner := it.Add(it.Var(0), it.Cst(1, false))
	outer := it.Add(inner, it.Cst(2, false))
	direct := it.Add(it.Var(0), it.Cst(3, false))
	if outer != direct {
		t.Fatalf("expected (x+c1)+c2 == x+(c1+c2)")
	}
}

func TestDoubleNegation(t *testing.T) {
	it := NewInterner()
	x := it.Var(7)
	nn := it.Neg(it.Neg(x))
	if nn != x {
		t.Fatalf("expected double negation to cancel")
	}
}

func TestTopAbsorbs(t *testing.T) {
	it := NewInterner()
	top := it.Top()
	if it.Add(top, it.Var(0)) != top {
		t.Fatalf("expected top to absorb arithmetic")
	}
}

func TestSPRelativeConstFolding(t *testing.T) {
	it := NewInterner()
	sp := it.Cst(0, true)
	spPlus4 := it.Add(sp, it.Cst(4, false))
	v, rel := spPlus4.ConstValue()
	if !rel || v != 4 {
		t.Fatalf("expected SP+4, got %d (sp=%v)", v, rel)
	}
}
