// Package config defines the run-wide flag set, bound to cobra flags by
// the cmd package exactly the way go-corset's pkg/cmd/debug.go binds its
// own debug options.
package config

import "github.com/jordy-ruiz/pathfinder/absint"

// Flags is every knob named by the configuration surface, lower-cased and
// hyphenated when exposed on the command line (VirtualizeCFG becomes
// --virtualize-cfg, and so on).
type Flags struct {
	// Out-of-scope collaborator toggles: accepted so a fixture or future
	// loader can honor them, even though this module implements none of
	// virtualization, slicing, or loop reduction itself.
	VirtualizeCFG bool
	SliceCFG      bool
	ReduceLoops   bool

	UseInitialData bool

	// Merge and MergeAfterApply are carried on the flag set but not read by
	// any component: the worklist driver always merges the states reaching
	// a block, and always merges the states a call composition produces.
	Merge           bool
	MergeAfterApply bool

	DryRun bool

	SMTCheckLinear     bool
	AllowNonlinearOprs bool

	ShowProgress   bool
	PostProcessing bool

	SPCritical        bool
	CleanTops         bool
	AssumeIdenticalSP bool
	NoWidening        bool
	UnminimizedPaths  bool

	ClampPredicateSize int
	StateSizeLimit     int
	NbCores            int
}

// Default returns the flag set's zero-risk baseline: post-processing and
// merging on, everything else off, one solver worker.
func Default() Flags {
	return Flags{
		Merge:          true,
		PostProcessing: true,
		NbCores:        1,
	}
}

// AbsintFlags narrows Flags down to the subset absint/transfer/worklist
// need, so those packages never import config directly.
func (f Flags) AbsintFlags() absint.Flags {
	return absint.Flags{
		UseInitialData:     f.UseInitialData,
		SPCritical:         f.SPCritical,
		CleanTops:          f.CleanTops,
		AssumeIdenticalSP:  f.AssumeIdenticalSP,
		NoWidening:         f.NoWidening,
		ClampPredicateSize: f.ClampPredicateSize,
		UnminimizedPaths:   f.UnminimizedPaths,
		StateSizeLimit:     f.StateSizeLimit,
	}
}
