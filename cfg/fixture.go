package cfg

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/jordy-ruiz/pathfinder/expr"
)

// fixture is a flat on-disk representation decoded straight into exported
// structs, then converted into the real CFG with resolved maps.
type fixtureInst struct {
	Op    string `json:"op"`
	Dst   int    `json:"dst"`
	Src1  int    `json:"src1"`
	Src2  int    `json:"src2"`
	Addr  int    `json:"addr"`
	Const int32  `json:"const"`
	Op2   string `json:"op2"`
	Imm   bool   `json:"imm"`
	Taken bool   `json:"taken"`
}

type fixtureBlock struct {
	ID         uint32        `json:"id"`
	Kind       string        `json:"kind"`
	IsLoopHead bool          `json:"isLoopHead"`
	Insts      []fixtureInst `json:"insts"`
}

type fixtureEdge struct {
	ID          uint32 `json:"id"`
	Source      uint32 `json:"source"`
	Target      uint32 `json:"target"`
	IsBack      bool   `json:"isBack"`
	LoopExitOf  uint32 `json:"loopExitOf"`
	HasLoopExit bool   `json:"hasLoopExit"`
}

type fixtureCFG struct {
	Blocks     []fixtureBlock `json:"blocks"`
	Edges      []fixtureEdge  `json:"edges"`
	EntryBlock uint32         `json:"entryBlock"`
	ExitBlock  uint32         `json:"exitBlock"`
	EntryEdge  uint32         `json:"entryEdge"`
}

var semOpNames = map[string]SemOp{
	"load":    OpLoad,
	"store":   OpStore,
	"set":     OpSet,
	"seti":    OpSetImm,
	"cmp":     OpCmp,
	"branch":  OpBranch,
	"arith":   OpArith,
	"scratch": OpScratch,
}

var arithOpNames = map[string]expr.ArithOp{
	"+":   expr.Add,
	"-":   expr.Sub,
	"*":   expr.Mul,
	"/":   expr.Div,
	"%":   expr.Mod,
	"neg": expr.Neg,
	"cmp": expr.Cmp,
}

var blockKindNames = map[string]BlockKind{
	"entry": Entry,
	"exit":  Exit,
	"basic": Basic,
	"synth": Synth,
}

// LoadFixture reads a JSON-encoded CFG description from path. It is the
// only concrete CFG "construction" this module provides — real binary
// loading, decoding and lifting stay external collaborators.
func LoadFixture(path string) (*CFG, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cfg fixture: %w", err)
	}
	defer f.Close()

	var raw fixtureCFG
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding cfg fixture: %w", err)
	}
	log.Debugf("loaded cfg fixture %s: %d blocks, %d edges", path, len(raw.Blocks), len(raw.Edges))
	return buildFromFixture(&raw)
}

func buildFromFixture(raw *fixtureCFG) (*CFG, error) {
	c := &CFG{
		Blocks:     make(map[BlockID]*Block, len(raw.Blocks)),
		Edges:      make(map[EdgeID]*Edge, len(raw.Edges)),
		Out:        make(map[BlockID][]EdgeID),
		In:         make(map[BlockID][]EdgeID),
		EntryBlock: BlockID(raw.EntryBlock),
		ExitBlock:  BlockID(raw.ExitBlock),
		EntryEdge:  EdgeID(raw.EntryEdge),
	}
	for _, fb := range raw.Blocks {
		kind, ok := blockKindNames[fb.Kind]
		if !ok {
			return nil, fmt.Errorf("block %d: unknown kind %q", fb.ID, fb.Kind)
		}
		insts := make([]Inst, len(fb.Insts))
		for i, fi := range fb.Insts {
			op, ok := semOpNames[fi.Op]
			if !ok {
				return nil, fmt.Errorf("block %d inst %d: unknown op %q", fb.ID, i, fi.Op)
			}
			var op2 expr.ArithOp
			if fi.Op2 != "" {
				op2, ok = arithOpNames[fi.Op2]
				if !ok {
					return nil, fmt.Errorf("block %d inst %d: unknown op2 %q", fb.ID, i, fi.Op2)
				}
			}
			insts[i] = Inst{
				Op: op, Dst: fi.Dst, Src1: fi.Src1, Src2: fi.Src2,
				Addr: fi.Addr, Const: fi.Const, Op2: op2, Imm: fi.Imm, Taken: fi.Taken,
			}
		}
		c.Blocks[BlockID(fb.ID)] = &Block{
			ID: BlockID(fb.ID), Kind: kind, Insts: insts, IsLoopHead: fb.IsLoopHead,
		}
	}
	for _, fe := range raw.Edges {
		e := &Edge{
			ID: EdgeID(fe.ID), Source: BlockID(fe.Source), Target: BlockID(fe.Target),
			IsBack: fe.IsBack, LoopExitOf: BlockID(fe.LoopExitOf), HasLoopExit: fe.HasLoopExit,
		}
		c.Edges[e.ID] = e
		c.Out[e.Source] = append(c.Out[e.Source], e.ID)
		c.In[e.Target] = append(c.In[e.Target], e.ID)
	}
	return c, nil
}
