// Package cfg defines the external collaborator interfaces the core
// analysis consumes: the control-flow graph, the platform descriptor, the
// DFA's initial memory image, and the dominance/post-dominance query
// service. Binary loading, CFG construction, instruction decoding and
// lifting, CFG virtualization/slicing, and dominance computation are all
// out of scope here — this package only names the boundary.
package cfg

import "github.com/jordy-ruiz/pathfinder/expr"

// BlockID and EdgeID are small integer handles, stable for the lifetime of
// one CFG.
type (
	BlockID = expr.BlockID
	EdgeID  uint32
)

// BlockKind tags a CFG node.
type BlockKind uint8

const (
	Entry BlockKind = iota
	Exit
	Basic
	Synth // call block
)

// SemOp enumerates the semantic-instruction kinds a basic block's
// instruction stream is made of.
type SemOp uint8

const (
	OpLoad SemOp = iota
	OpStore
	OpSet
	OpSetImm
	OpCmp
	OpBranch
	OpArith
	OpScratch
)

// Inst is one semantic instruction inside a basic block.
//
// Branch reuses Const to carry the comparison kind it tests Src1 against
// zero with, using the same ordinal order as absint.CmpOp (0=Eq, 1=Ne,
// 2=Lt, 3=Le); a block holding a two-way branch carries two Branch Insts
// reading the same Src1, one per direction, distinguished by Taken.
type Inst struct {
	Op    SemOp
	Dst   int // variable index written (Set, SetImm, Load, Scratch, Arith, Cmp)
	Src1  int // variable index read, when applicable
	Src2  int // second variable index read (Arith, when Imm is false)
	Addr  int // variable index holding an address (Load, Store)
	Const int32 // immediate operand (SetImm, Arith-with-immediate); comparison kind (Branch)
	Op2   expr.ArithOp
	Imm   bool // Arith only: use Const as the second operand instead of Src2
	Taken bool // Branch only: whether this Inst corresponds to the taken edge
}

// Block is one CFG node.
type Block struct {
	ID         BlockID
	Kind       BlockKind
	Insts      []Inst
	IsLoopHead bool
	Callee     *CFG // Synth blocks only
}

// Edge is one CFG arc.
type Edge struct {
	ID         EdgeID
	Source     BlockID
	Target     BlockID
	IsBack     bool
	LoopExitOf BlockID // valid iff this edge exits a loop; 0 (Entry) otherwise
	HasLoopExit bool
}

// CFG is the read-only control-flow graph of one function.
type CFG struct {
	Blocks      map[BlockID]*Block
	Edges       map[EdgeID]*Edge
	Out         map[BlockID][]EdgeID
	In          map[BlockID][]EdgeID
	EntryBlock  BlockID
	ExitBlock   BlockID
	EntryEdge   EdgeID
}

// Block/Edge accessors centralize the nil-safety a read-only graph needs.
func (c *CFG) Block(id BlockID) *Block { return c.Blocks[id] }
func (c *CFG) Edge(id EdgeID) *Edge    { return c.Edges[id] }
func (c *CFG) OutEdges(id BlockID) []EdgeID { return c.Out[id] }
func (c *CFG) InEdges(id BlockID) []EdgeID  { return c.In[id] }

// DFAState answers "what constant value, if any, is statically known to sit
// at this address" for the binary's read-only memory image.
type DFAState interface {
	InitialValue(addr int32) (int32, bool)
}

// Platform describes the target register file.
type Platform struct {
	SPRegister int
	NumRegs    int
	NumTemps   int
}

// GlobalDominance answers dominance/post-dominance queries across CFGs, used
// only by the post-processor.
type GlobalDominance interface {
	Dominates(a, b EdgeID) bool
	Postdominates(a, b EdgeID) bool
}
