package worklist

import "github.com/jordy-ruiz/pathfinder/cfg"

// fixStatus tracks a loop header's progress toward a fixpoint, the state
// machine a worklist driver advances every time it revisits the header:
// ENTER on first arrival, FIX while states keep changing, ACCEL once
// widening has started, LEAVE once two consecutive rounds agree.
type fixStatus uint8

const (
	statusEnter fixStatus = iota
	statusFix
	statusAccel
	statusLeave
)

// loopTracker holds the per-loop-header bookkeeping a driver needs across
// worklist rounds: how many times the header has been revisited and
// whether it has ever been widened.
type loopTracker struct {
	status  map[cfg.BlockID]fixStatus
	rounds  map[cfg.BlockID]int
	widened map[cfg.BlockID]bool
}

func newLoopTracker() *loopTracker {
	return &loopTracker{
		status:  map[cfg.BlockID]fixStatus{},
		rounds:  map[cfg.BlockID]int{},
		widened: map[cfg.BlockID]bool{},
	}
}

func (lt *loopTracker) statusOf(h cfg.BlockID) fixStatus {
	if s, ok := lt.status[h]; ok {
		return s
	}
	return statusEnter
}

// advance records that header h produced another round whose result
// changed (changed=true) or matched the previous round (changed=false),
// and returns the status after this round.
func (lt *loopTracker) advance(h cfg.BlockID, changed bool, noWidening bool) fixStatus {
	lt.rounds[h]++
	cur := lt.statusOf(h)

	if !changed {
		lt.status[h] = statusLeave
		return statusLeave
	}

	switch cur {
	case statusEnter:
		lt.status[h] = statusFix
		return statusFix
	case statusFix:
		if noWidening {
			return statusFix
		}
		lt.status[h] = statusAccel
		lt.widened[h] = true
		return statusAccel
	case statusAccel:
		return statusAccel
	default:
		lt.status[h] = statusFix
		return statusFix
	}
}
