package oracle

import (
	"testing"

	"github.com/bits-and-blooms/bitset"

	"github.com/jordy-ruiz/pathfinder/absint"
)

func label(bits ...uint) *bitset.BitSet {
	b := bitset.New(16)
	for _, i := range bits {
		b.Set(i)
	}
	return b
}

func TestUnionAllLabelsMergesAcrossPredicates(t *testing.T) {
	preds := []absint.LabelledPredicate{
		{Labels: label(0, 1)},
		{Labels: label(2)},
	}
	got := unionAllLabels(preds)
	for _, i := range []uint{0, 1, 2} {
		if !got.Test(i) {
			t.Fatalf("expected label %d to be set in the union", i)
		}
	}
	if got.Test(3) {
		t.Fatalf("unexpected label 3 set")
	}
}

func TestUnionAllLabelsNilWhenNoLabels(t *testing.T) {
	preds := []absint.LabelledPredicate{{}, {}}
	if got := unionAllLabels(preds); got != nil {
		t.Fatalf("expected nil union, got %v", got)
	}
}

func TestRemoveAt(t *testing.T) {
	preds := []absint.LabelledPredicate{
		{Labels: label(0)},
		{Labels: label(1)},
		{Labels: label(2)},
	}
	out := removeAt(preds, 1)
	if len(out) != 2 {
		t.Fatalf("expected 2 remaining predicates, got %d", len(out))
	}
	if !out[0].Labels.Test(0) || !out[1].Labels.Test(2) {
		t.Fatalf("unexpected remaining predicates after removeAt: %v", out)
	}
}
