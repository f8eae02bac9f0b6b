// Package expr implements the hash-consed symbolic expression DAG that
// underlies the abstract value domain: constants, register/temp
// references, memory dereferences, loop-iteration markers, arithmetic and
// a designated Top. Structurally equal expressions always share the same
// *Expr; callers compare expressions by pointer, never by a deep-equality
// method.
package expr

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind tags the variant held by an Expr.
type Kind uint8

const (
	KindConst Kind = iota
	KindVar
	KindMem
	KindIter
	KindArith
	KindTop
)

// ArithOp enumerates the arithmetic operators of an Arith node.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	Neg
	Cmp
)

var arithOpNames = [...]string{Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%", Neg: "-", Cmp: "cmp"}

func (op ArithOp) String() string { return arithOpNames[op] }

func (op ArithOp) commutative() bool { return op == Add || op == Mul }

// BlockID identifies a basic block for Iter nodes; owned by the cfg package.
type BlockID uint32

// Expr is one interned node of the expression DAG. Every field is
// immutable once the node has been returned from an Interner constructor.
type Expr struct {
	id         uint64
	kind       Kind
	constVal   int32
	spRelative bool // Const only: value is relative to the stack pointer
	varIdx     int  // Var only: register/temp index (temps negative)
	memAddr    *Expr
	iterHeader BlockID
	op         ArithOp
	lhs, rhs   *Expr // rhs is nil for Neg
}

// Kind returns the node's tag.
func (e *Expr) Kind() Kind { return e.kind }

// IsTop reports whether e is the designated unknown value.
func (e *Expr) IsTop() bool { return e.kind == KindTop }

// IsConst reports whether e is a constant, optionally SP-relative.
func (e *Expr) IsConst() bool { return e.kind == KindConst }

// ConstValue returns the constant payload; only valid when IsConst.
func (e *Expr) ConstValue() (int32, bool) {
	if e.kind != KindConst {
		return 0, false
	}
	return e.constVal, e.spRelative
}

// VarIndex returns the register/temp index; only valid when Kind == KindVar.
func (e *Expr) VarIndex() int { return e.varIdx }

// MemAddr returns the address expression of a Mem node.
func (e *Expr) MemAddr() *Expr { return e.memAddr }

// IterHeader returns the loop header of an Iter node.
func (e *Expr) IterHeader() BlockID { return e.iterHeader }

// Op, LHS, RHS decompose an Arith node. RHS is nil for the unary Neg.
func (e *Expr) Op() ArithOp { return e.op }
func (e *Expr) LHS() *Expr  { return e.lhs }
func (e *Expr) RHS() *Expr  { return e.rhs }

func (e *Expr) String() string {
	switch e.kind {
	case KindConst:
		if e.spRelative {
			return fmt.Sprintf("SP%+d", e.constVal)
		}
		return fmt.Sprintf("%d", e.constVal)
	case KindVar:
		if e.varIdx < 0 {
			return fmt.Sprintf("t%d", -e.varIdx)
		}
		return fmt.Sprintf("r%d", e.varIdx)
	case KindMem:
		return fmt.Sprintf("[%s]", e.memAddr)
	case KindIter:
		return fmt.Sprintf("iter(h%d)", e.iterHeader)
	case KindArith:
		if e.op == Neg {
			return fmt.Sprintf("-(%s)", e.lhs)
		}
		return fmt.Sprintf("(%s %s %s)", e.lhs, e.op, e.rhs)
	default:
		return "Top"
	}
}

// hash produces the bucket key used by the Interner; it must agree for any
// two nodes that shallowEq considers equal, and it deliberately ignores the
// interned id (which does not exist yet at hashing time).
func (e *Expr) hash() uint64 {
	h := xxhash.New()
	var buf [9]byte
	buf[0] = byte(e.kind)
	switch e.kind {
	case KindConst:
		putI32(buf[1:5], e.constVal)
		if e.spRelative {
			buf[5] = 1
		}
		h.Write(buf[:6])
	case KindVar:
		putI32(buf[1:5], int32(e.varIdx))
		h.Write(buf[:5])
	case KindMem:
		h.Write(buf[:1])
		putU64(buf[1:9], e.memAddr.id)
		h.Write(buf[1:9])
	case KindIter:
		putI32(buf[1:5], int32(e.iterHeader))
		h.Write(buf[:5])
	case KindArith:
		buf[1] = byte(e.op)
		h.Write(buf[:2])
		putU64(buf[1:9], e.lhs.id)
		h.Write(buf[1:9])
		if e.rhs != nil {
			putU64(buf[1:9], e.rhs.id)
			h.Write(buf[1:9])
		}
	case KindTop:
		h.Write(buf[:1])
	}
	return h.Sum64()
}

// shallowEq compares two not-yet-interned candidates structurally, relying
// on operand pointers already being interned ids.
func (a *Expr) shallowEq(b *Expr) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindConst:
		return a.constVal == b.constVal && a.spRelative == b.spRelative
	case KindVar:
		return a.varIdx == b.varIdx
	case KindMem:
		return a.memAddr == b.memAddr
	case KindIter:
		return a.iterHeader == b.iterHeader
	case KindArith:
		return a.op == b.op && a.lhs == b.lhs && a.rhs == b.rhs
	case KindTop:
		return true
	}
	return false
}

func putI32(dst []byte, v int32) {
	putU64(dst, uint64(uint32(v)))
}

func putU64(dst []byte, v uint64) {
	for i := 0; i < len(dst) && i < 8; i++ {
		dst[i] = byte(v >> (8 * uint(i)))
	}
}
