package absint

import "github.com/jordy-ruiz/pathfinder/expr"

// Locals is the fixed-length local-variable map: a slot per register and
// per temp, where a nil entry means "still holds its entry value"
// (identity). It is a value type with an explicit clone, the register-
// machine analogue of a stack-machine's abstract value stack.
type Locals struct {
	numRegs  int
	numTemps int
	slots    []*expr.Expr
}

// NewLocals allocates an all-identity local-variable map.
func NewLocals(numRegs, numTemps int) Locals {
	return Locals{numRegs: numRegs, numTemps: numTemps, slots: make([]*expr.Expr, numRegs+numTemps)}
}

// clone does a deep (well, slice) copy.
func (l Locals) clone() Locals {
	slots := make([]*expr.Expr, len(l.slots))
	copy(slots, l.slots)
	return Locals{numRegs: l.numRegs, numTemps: l.numTemps, slots: slots}
}

// Get returns the bound expression for variable i, or nil for identity.
func (l Locals) Get(i int) *expr.Expr {
	return l.slots[slotFor(i, l.numRegs)]
}

// Set writes e into variable i's slot (mutates in place; callers that need
// an isolated copy must clone first).
func (l Locals) Set(i int, e *expr.Expr) {
	l.slots[slotFor(i, l.numRegs)] = e
}

// IsIdentity reports whether variable i still holds its entry value.
func (l Locals) IsIdentity(i int) bool {
	return l.Get(i) == nil
}

// OnEdge resets every temp slot to identity: temps never survive past the
// basic block that produced them.
func (l Locals) OnEdge() {
	for i := l.numRegs; i < len(l.slots); i++ {
		l.slots[i] = nil
	}
}

// InvalidateVar resets register/temp i's own slot to identity — used by the
// block transfer's `set r <- e` rule before rebinding r. Other slots whose
// expressions mention Var(i) are left as they are.
func (l Locals) InvalidateVar(i int) {
	l.Set(i, nil)
}

// NumRegs and NumTemps expose the fixed dimensions for iteration.
func (l Locals) NumRegs() int  { return l.numRegs }
func (l Locals) NumTemps() int { return l.numTemps }

// mergeLocals is the pointwise join of two local-variable maps:
// disagreement (including one side being identity and the other bound)
// collapses to identity ("unconstrained"). It also reports whether the
// result differs from a, the usual (result, diff) join signature.
func mergeLocals(a, b Locals) (Locals, bool) {
	out := a.clone()
	diff := false
	for i := 0; i < len(out.slots); i++ {
		if a.slots[i] != b.slots[i] {
			if out.slots[i] != nil {
				diff = true
			}
			out.slots[i] = nil
		}
	}
	return out, diff
}
