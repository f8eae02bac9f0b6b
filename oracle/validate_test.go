package oracle

import (
	"testing"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

func pathOfEdges(edges ...cfg.EdgeID) absint.Path {
	var p absint.Path
	for _, e := range edges {
		p = p.Append(absint.EdgeFlow(e))
	}
	return p
}

func stateWithPath(p absint.Path) absint.State {
	s := absint.NewEntryState(testActx())
	s.Path = p
	return s
}

func TestValidateAndProjectNarrowsToMinimalCore(t *testing.T) {
	actx := testActx()
	jobs := []Job{
		{Edge: 3, State: stateWithPath(pathOfEdges(1, 2, 3))},
		{Edge: 5, State: stateWithPath(pathOfEdges(5))},
	}
	verdicts := []Verdict{
		{SAT: false, MinLabels: label(2)},
		{SAT: true},
	}

	out := ValidateAndProject(actx, jobs, verdicts)
	if len(out) != 1 {
		t.Fatalf("expected exactly one reported path, got %d", len(out))
	}
	if got := out[0].Edges(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected the minimized path to be just edge 2, got %v", got)
	}
}

func TestValidateAndProjectDiscardsOnCounterexample(t *testing.T) {
	actx := testActx()
	jobs := []Job{
		{Edge: 3, State: stateWithPath(pathOfEdges(1, 2, 3))},
		{Edge: 9, State: stateWithPath(pathOfEdges(1, 2, 3, 4))},
	}
	verdicts := []Verdict{
		{SAT: false, MinLabels: label(2)},
		{SAT: true},
	}

	out := ValidateAndProject(actx, jobs, verdicts)
	if len(out) != 0 {
		t.Fatalf("expected the counterexample-invalidated path to be dropped, got %v", out)
	}
	if actx.Stats.PathsDropped != 1 {
		t.Fatalf("expected PathsDropped to be bumped once, got %d", actx.Stats.PathsDropped)
	}
}

func TestValidateAndProjectFallsBackOnCounterexampleWhenUnminimizedPathsSet(t *testing.T) {
	actx := absint.NewContext(cfg.Platform{NumRegs: 2, NumTemps: 1}, nil, absint.Flags{UnminimizedPaths: true})
	jobs := []Job{
		{Edge: 3, State: stateWithPath(pathOfEdges(1, 2, 3))},
		{Edge: 9, State: stateWithPath(pathOfEdges(1, 2, 3, 4))},
	}
	verdicts := []Verdict{
		{SAT: false, MinLabels: label(2)},
		{SAT: true},
	}

	out := ValidateAndProject(actx, jobs, verdicts)
	if len(out) != 1 {
		t.Fatalf("expected the full path to be reported as a fallback, got %v", out)
	}
	if got := out[0].Edges(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("expected the full unminimized path, got %v", got)
	}
	if actx.Stats.Unminimizable != 1 {
		t.Fatalf("expected Unminimizable to be bumped once, got %d", actx.Stats.Unminimizable)
	}
}

func TestValidateAndProjectHonorsUnminimizedVerdict(t *testing.T) {
	actx := testActx()
	jobs := []Job{
		{Edge: 3, State: stateWithPath(pathOfEdges(1, 2, 3))},
	}
	verdicts := []Verdict{
		{SAT: false, Unminimized: true, MinLabels: label(1, 2)},
	}

	out := ValidateAndProject(actx, jobs, verdicts)
	if len(out) != 1 {
		t.Fatalf("expected one reported path, got %d", len(out))
	}
	if got := out[0].Edges(); len(got) != 3 {
		t.Fatalf("expected the whole accumulated path when minimization was skipped, got %v", got)
	}
}

func TestValidateAndProjectDropsTautologiesOnSatVerdicts(t *testing.T) {
	actx := testActx()
	s := absint.NewEntryState(actx)
	x := actx.Interner.Var(0)
	s.Preds.Generate(absint.Predicate{Op: absint.PredEq, LHS: x, RHS: x}, false)
	s.Preds.FlushOnEdge(1, false)
	if len(s.Preds.All()) != 1 {
		t.Fatalf("expected the tautology to be persisted before the SAT sweep")
	}

	jobs := []Job{{Edge: 1, State: s}}
	verdicts := []Verdict{{SAT: true}}

	_ = ValidateAndProject(actx, jobs, verdicts)
	if len(jobs[0].State.Preds.All()) != 0 {
		t.Fatalf("expected the tautology to be swept from the SAT state's predicate store")
	}
}
