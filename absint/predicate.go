package absint

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/expr"
)

// CmpOp enumerates the comparisons a Predicate may hold.
type CmpOp uint8

const (
	PredEq CmpOp = iota
	PredNe
	PredLt
	PredLe
)

// Predicate is a comparison of two expressions.
type Predicate struct {
	Op   CmpOp
	LHS  *expr.Expr
	RHS  *expr.Expr
}

// key gives Predicate a value good enough for map/set membership by
// predicate-equality: since expressions are hash-consed, two equal
// predicates always have equal (Op, LHS-pointer, RHS-pointer).
type predKey struct {
	op  CmpOp
	lhs *expr.Expr
	rhs *expr.Expr
}

func (p Predicate) key() predKey { return predKey{p.Op, p.LHS, p.RHS} }

// IsTautology reports whether p trivially holds regardless of the
// environment (e.g. `x = x`), used by PredicateStore.DropTautologies.
func (p Predicate) IsTautology() bool {
	if p.LHS != p.RHS {
		return false
	}
	return p.Op == PredEq || p.Op == PredLe
}

// LabelledPredicate pairs a Predicate with the set of edges along which it
// is known to hold. The label set is a bitset over EdgeID, a compact
// representation for what is usually a dense, small-cardinality set.
type LabelledPredicate struct {
	Pred   Predicate
	Labels *bitset.BitSet
}

func newLabel(e cfg.EdgeID) *bitset.BitSet {
	b := bitset.New(uint(e) + 1)
	b.Set(uint(e))
	return b
}

// PredicateStore is the unordered set of LabelledPredicate the state has
// accumulated, plus the two generation buffers block transfer writes into
// before an edge-append labels and flushes them.
type PredicateStore struct {
	persisted      []LabelledPredicate
	generated      []Predicate // not-taken / unconditional generation buffer
	generatedTaken []Predicate // taken-edge generation buffer
}

// NewPredicateStore returns an empty store.
func NewPredicateStore() PredicateStore {
	return PredicateStore{}
}

func (s PredicateStore) clone() PredicateStore {
	out := PredicateStore{
		persisted:      append([]LabelledPredicate(nil), s.persisted...),
		generated:      append([]Predicate(nil), s.generated...),
		generatedTaken: append([]Predicate(nil), s.generatedTaken...),
	}
	return out
}

// Generate appends a freshly produced predicate to the right buffer,
// dropping self-referential predicates unless they are a tautology.
func (s *PredicateStore) Generate(p Predicate, taken bool) {
	if isSelfReferential(p) && !p.IsTautology() {
		return
	}
	if taken {
		s.generatedTaken = append(s.generatedTaken, p)
	} else {
		s.generated = append(s.generated, p)
	}
}

func isSelfReferential(p Predicate) bool {
	return exprMentions(p.RHS, p.LHS) && p.LHS != p.RHS
}

// exprMentions is a conservative syntactic occurs-check: it only looks
// through Arith nodes, since that is the only composite shape a freshly
// generated predicate's operands can take before the occurs-check matters.
func exprMentions(e, needle *expr.Expr) bool {
	if e == nil {
		return false
	}
	if e == needle {
		return true
	}
	if e.Kind() != expr.KindArith {
		return false
	}
	return exprMentions(e.LHS(), needle) || exprMentions(e.RHS(), needle)
}

// FlushOnEdge labels the appropriate generation buffer with {e} (unioned
// with any labels the batch already carries — there are none yet at
// generation time, so this is always a fresh singleton) and merges the
// result into the persisted set, then clears both buffers. generatedTaken
// is cleared unconditionally after every edge-append, even along the
// not-taken edge of a multi-way conditional.
func (s *PredicateStore) FlushOnEdge(e cfg.EdgeID, taken bool) {
	label := newLabel(e)
	batch := s.generated
	if taken {
		batch = s.generatedTaken
	}
	for _, p := range batch {
		s.persisted = append(s.persisted, LabelledPredicate{Pred: p, Labels: label.Clone()})
	}
	s.generated = nil
	s.generatedTaken = nil
}

// ClampTo drops the oldest persisted predicates once the store holds more
// than limit, a crude but cheap bound on how large a predicate set the
// oracle ever has to check. A limit of 0 or less disables clamping.
func (s *PredicateStore) ClampTo(limit int) {
	if limit <= 0 || len(s.persisted) <= limit {
		return
	}
	s.persisted = append([]LabelledPredicate(nil), s.persisted[len(s.persisted)-limit:]...)
}

// InvalidateVar drops every persisted and pending predicate whose
// expressions mention register/temp i, implementing the "invalidate any
// predicate mentioning r" half of the `set r <- e` rule.
func (s *PredicateStore) InvalidateVar(i int, it *expr.Interner) {
	mentions := func(p Predicate) bool {
		return exprMentionsVar(p.LHS, i) || exprMentionsVar(p.RHS, i)
	}
	kept := s.persisted[:0:0]
	for _, lp := range s.persisted {
		if !mentions(lp.Pred) {
			kept = append(kept, lp)
		}
	}
	s.persisted = kept
	s.generated = filterPreds(s.generated, mentions)
	s.generatedTaken = filterPreds(s.generatedTaken, mentions)
}

func filterPreds(in []Predicate, drop func(Predicate) bool) []Predicate {
	out := in[:0:0]
	for _, p := range in {
		if !drop(p) {
			out = append(out, p)
		}
	}
	return out
}

func exprMentionsVar(e *expr.Expr, i int) bool {
	if e == nil {
		return false
	}
	switch e.Kind() {
	case expr.KindVar:
		return e.VarIndex() == i
	case expr.KindArith:
		return exprMentionsVar(e.LHS(), i) || exprMentionsVar(e.RHS(), i)
	case expr.KindMem:
		return exprMentionsVar(e.MemAddr(), i)
	default:
		return false
	}
}

// All returns the persisted labelled predicates, read-only.
func (s PredicateStore) All() []LabelledPredicate { return s.persisted }

// DropTautologies removes any persisted predicate that is trivially true.
// Every state that survives an oracle batch gets this pass applied, since
// a tautology carries no information and only adds solver overhead.
func (s *PredicateStore) DropTautologies() {
	kept := s.persisted[:0:0]
	for _, lp := range s.persisted {
		if !lp.Pred.IsTautology() {
			kept = append(kept, lp)
		}
	}
	s.persisted = kept
}

// mergePredicates joins several predicate stores at a confluence point:
// intersection under predicate-equality, with labels erased (the merged
// predicate no longer carries any single edge-set).
func mergePredicates(stores []PredicateStore) PredicateStore {
	if len(stores) == 0 {
		return NewPredicateStore()
	}
	counts := map[predKey]Predicate{}
	seenIn := map[predKey]int{}
	for _, s := range stores {
		local := map[predKey]bool{}
		for _, lp := range s.persisted {
			k := lp.Pred.key()
			if local[k] {
				continue
			}
			local[k] = true
			counts[k] = lp.Pred
			seenIn[k]++
		}
	}
	out := NewPredicateStore()
	for k, count := range seenIn {
		if count == len(stores) {
			out.persisted = append(out.persisted, LabelledPredicate{Pred: counts[k], Labels: bitset.New(0)})
		}
	}
	return out
}

// equivalentPredicateSets implements the predicate half of a fixpoint
// equivalence test: equal as sets, labels ignored.
func equivalentPredicateSets(a, b PredicateStore) bool {
	if len(a.persisted) != len(b.persisted) {
		return false
	}
	bKeys := map[predKey]int{}
	for _, lp := range b.persisted {
		bKeys[lp.Pred.key()]++
	}
	for _, lp := range a.persisted {
		k := lp.Pred.key()
		if bKeys[k] == 0 {
			return false
		}
		bKeys[k]--
	}
	return true
}
