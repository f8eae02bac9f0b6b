package absint

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
)

// MemID tags a Memory with the program point (block, offset) at which it
// was last fully wiped. Two memories may only be joined or composed when
// their MemIDs match.
type MemID struct {
	Block  cfg.BlockID
	Offset int
	wiped  bool // zero-value MemID (entry memory) is not itself a wipe point
}

// Memory is the sparse stack-relative memory map: a concrete store wrapped
// behind clone/get/set/wipe so a caller never mutates a shared copy.
type Memory struct {
	cells map[int32]*expr.Expr
	id    MemID
}

// NewMemory returns an empty memory map at the CFG entry's MemID.
func NewMemory() Memory {
	return Memory{cells: map[int32]*expr.Expr{}}
}

func (m Memory) clone() Memory {
	cells := make(map[int32]*expr.Expr, len(m.cells))
	for k, v := range m.cells {
		cells[k] = v
	}
	return Memory{cells: cells, id: m.id}
}

// Get reads the expression bound at constant address k, or nil if
// unmapped (callers should then fall back to a fresh Mem(k) or Top).
func (m Memory) Get(k int32) *expr.Expr {
	return m.cells[k]
}

// Set binds address k to e (mutates in place).
func (m Memory) Set(k int32, e *expr.Expr) {
	m.cells[k] = e
}

// Wipe clears every cell and stamps a new MemID at (block, offset), called
// whenever a store target cannot be resolved to a constant address. The
// caller (transfer package) is responsible for logging this at debug
// level; a wipe is an expected outcome, not an error.
func (m *Memory) Wipe(block cfg.BlockID, offset int) {
	m.cells = map[int32]*expr.Expr{}
	m.id = MemID{Block: block, Offset: offset, wiped: true}
}

// ID returns the memory's current MemID.
func (m Memory) ID() MemID { return m.id }

// Each iterates read-only over the mapped cells, for Merge/Apply.
func (m Memory) Each(f func(addr int32, e *expr.Expr)) {
	for k, v := range m.cells {
		f(k, v)
	}
}

// Len reports how many cells are mapped.
func (m Memory) Len() int { return len(m.cells) }

// FoldSPAddress folds SP+displacement into a constant cell address. Both
// operands are widened as unsigned 32-bit values and added with
// math.SafeAdd, which cannot overflow 64 bits for such operands, so ok is
// always true and the address wraps modulo 2^32 as 32-bit machine address
// arithmetic does.
func FoldSPAddress(spValue int32, displacement int32) (addr int32, ok bool) {
	sum, overflow := math.SafeAdd(uint64(uint32(spValue)), uint64(uint32(displacement)))
	if overflow {
		return 0, false
	}
	return int32(uint32(sum)), true
}

// mergeMemory joins several memories at a confluence point: a MemID
// mismatch forces a wipe; otherwise slots are merged pointwise, with
// disagreement (including a slot present on only one side) mapping to Top.
func mergeMemory(ctx *Context, at cfg.BlockID, offset int, seedID MemID, mems []Memory) (Memory, bool) {
	for _, m := range mems {
		if m.id != seedID {
			out := NewMemory()
			out.Wipe(at, offset)
			return out, true
		}
	}
	out := NewMemory()
	out.id = seedID
	diff := false
	seen := map[int32]int{}
	for _, m := range mems {
		m.Each(func(addr int32, e *expr.Expr) { seen[addr]++ })
	}
	top := ctx.Interner.Top()
	for addr, count := range seen {
		if count != len(mems) {
			out.Set(addr, top)
			diff = true
			continue
		}
		var common *expr.Expr
		agree := true
		for _, m := range mems {
			v := m.Get(addr)
			if common == nil {
				common = v
			} else if common != v {
				agree = false
				break
			}
		}
		if agree {
			out.Set(addr, common)
		} else {
			out.Set(addr, top)
			diff = true
		}
	}
	return out, diff
}
