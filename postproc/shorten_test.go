package postproc

import (
	"testing"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
)

// fakeDom treats every edge as dominating/postdominating every later/
// earlier edge in a single fixed pair, enough to exercise the fixpoint
// loop without a real dominance computation.
type fakeDom struct {
	redundant map[[2]cfg.EdgeID]bool
}

func (f fakeDom) Dominates(a, b cfg.EdgeID) bool     { return f.redundant[[2]cfg.EdgeID{a, b}] }
func (f fakeDom) Postdominates(b, a cfg.EdgeID) bool { return f.redundant[[2]cfg.EdgeID{a, b}] }

func pathOf(edges ...cfg.EdgeID) absint.Path {
	var p absint.Path
	for _, e := range edges {
		p = p.Append(absint.EdgeFlow(e))
	}
	return p
}

func TestShortenDropsRedundantAdjacentPair(t *testing.T) {
	p := pathOf(1, 2, 3)
	dom := fakeDom{redundant: map[[2]cfg.EdgeID]bool{{1, 2}: true}}

	out := Shorten(p, dom)
	got := out.Edges()
	want := []cfg.EdgeID{2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestShortenNoopWithoutDominance(t *testing.T) {
	p := pathOf(1, 2, 3)
	out := Shorten(p, nil)
	if len(out.Edges()) != 3 {
		t.Fatalf("expected no edges dropped without a dominance oracle, got %v", out.Edges())
	}
}

func TestShortenReachesFixpoint(t *testing.T) {
	p := pathOf(1, 2, 3, 4)
	dom := fakeDom{redundant: map[[2]cfg.EdgeID]bool{{1, 2}: true, {2, 3}: true}}

	out := Shorten(p, dom)
	got := out.Edges()
	if len(got) != 2 {
		t.Fatalf("expected fixpoint to drop down to 2 edges, got %v", got)
	}
}
