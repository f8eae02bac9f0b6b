// Package absint implements the abstract value domain carried along a
// path: the local-variable map, the memory map, the labelled-predicate
// store, the detailed path, and the abstract state that ties them
// together.
package absint

import (
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
)

// Stats accumulates counters that would otherwise live as package-level
// globals; every component that needs to log-and-increment instead
// increments the Context it was handed, so a run never leaks state into
// the next one.
type Stats struct {
	SPAnomalies       int
	Merges            int
	Widenings         int
	InfeasibleFound   int
	Unminimizable     int
	PathsDropped      int
}

// Context carries everything constant across one CFG's analysis: the
// expression DAG, the platform descriptor, the initial DFA memory image,
// and the mutable stats bucket.
type Context struct {
	Interner *expr.Interner
	Platform cfg.Platform
	DFA      cfg.DFAState
	Stats    *Stats
	Flags    Flags
}

// Flags mirrors the subset of config.Flags the absint/transfer/worklist
// packages need directly, to avoid those packages importing cmd/config.
type Flags struct {
	UseInitialData     bool
	SPCritical         bool
	CleanTops          bool
	AssumeIdenticalSP  bool
	NoWidening         bool
	ClampPredicateSize int
	UnminimizedPaths   bool
	StateSizeLimit     int
}

// NewContext builds a fresh analysis context with its own expression DAG.
func NewContext(p cfg.Platform, dfa cfg.DFAState, flags Flags) *Context {
	return &Context{
		Interner: expr.NewInterner(),
		Platform: p,
		DFA:      dfa,
		Stats:    &Stats{},
		Flags:    flags,
	}
}

// tempBase maps a negative temp index onto the upper half of a
// fixed-length backing array.
func tempBase(numRegs, numTemps int) int { return numRegs }

func slotFor(i, numRegs int) int {
	if i >= 0 {
		return i
	}
	return numRegs + (-i - 1)
}
