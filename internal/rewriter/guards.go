package rewriter

import (
	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/nbjiterr"
)

// guardAccumulator tracks the ordered, deduplicated set of names encountered
// so far in a single pre-order walk of the main block, plus one slot per
// hole ordinal for the frozen guard set computed when that hole is reached.
type guardAccumulator struct {
	seen    map[string]bool
	order   []string
	results [][]string
}

func (g *guardAccumulator) add(name string) {
	if !g.seen[name] {
		g.seen[name] = true
		g.order = append(g.order, name)
	}
}

// computeGuardSets walks main once in pre-order. Every KindVar, KindAssign
// target, and KindFor loop variable encountered extends the running
// accumulator (spec §3: "the ordered, deduplicated list of names referenced
// ... in any statement preceding it"). When a KindHole is reached, its guard
// set is frozen as the accumulator's current contents extended by the free
// variables of its own extracted body (the hole "reads" its own body's
// names in addition to everything that came before it).
func computeGuardSets(main *astmodel.Expr, numHoles int) ([][]string, error) {
	g := &guardAccumulator{seen: map[string]bool{}, results: make([][]string, numHoles)}
	filled := make([]bool, numHoles)

	walkForGuards(main, g, filled)

	for i, ok := range filled {
		if !ok {
			return nil, nbjiterr.New(nbjiterr.InvalidAST, "internal error: hole ordinal never visited during guard computation")
		}
		_ = i
	}
	return g.results, nil
}

func walkForGuards(e *astmodel.Expr, g *guardAccumulator, filled []bool) {
	if e == nil {
		return
	}

	switch e.Kind {
	case astmodel.KindHole:
		// Only the portion of the guard set contributed by statements
		// preceding this hole is known at this point. Rewrite extends this
		// with the hole body's own free variables via ExtendGuardWithBody
		// once every ordinal has been visited.
		g.results[e.Ordinal] = append([]string(nil), g.order...)
		filled[e.Ordinal] = true
		return
	case astmodel.KindVar:
		g.add(e.Str)
		return
	case astmodel.KindAssign:
		walkForGuards(e.Rhs, g, filled)
		g.add(e.Str)
		return
	case astmodel.KindFor:
		walkForGuards(e.RangeStart, g, filled)
		walkForGuards(e.RangeEnd, g, filled)
		g.add(e.Str)
		walkForGuards(e.Body, g, filled)
		return
	}

	walkForGuards(e.Lhs, g, filled)
	walkForGuards(e.Rhs, g, filled)
	walkForGuards(e.Value, g, filled)
	walkForGuards(e.Cond, g, filled)
	walkForGuards(e.Then, g, filled)
	walkForGuards(e.Else, g, filled)
	walkForGuards(e.RangeStart, g, filled)
	walkForGuards(e.RangeEnd, g, filled)
	walkForGuards(e.Body, g, filled)
	for _, b := range e.Bindings {
		walkForGuards(b.Init, g, filled)
		g.add(b.Name)
	}
	for _, s := range e.Stmts {
		walkForGuards(s, g, filled)
	}
	for _, el := range e.Elems {
		walkForGuards(el, g, filled)
	}
	for _, a := range e.Args {
		walkForGuards(a, g, filled)
	}
}

// patchGuardSyms rewrites every Hole node reachable from main in place,
// attaching its final guard set so downstream stages (internal/partial,
// internal/orchestrator) can read a hole's guard set directly off the node
// instead of threading Result.GuardSyms alongside the tree.
func patchGuardSyms(e *astmodel.Expr, guardSyms [][]string) {
	if e == nil {
		return
	}
	if e.Kind == astmodel.KindHole {
		e.GuardSyms = guardSyms[e.Ordinal]
		return
	}
	patchGuardSyms(e.Lhs, guardSyms)
	patchGuardSyms(e.Rhs, guardSyms)
	patchGuardSyms(e.Value, guardSyms)
	patchGuardSyms(e.Cond, guardSyms)
	patchGuardSyms(e.Then, guardSyms)
	patchGuardSyms(e.Else, guardSyms)
	patchGuardSyms(e.RangeStart, guardSyms)
	patchGuardSyms(e.RangeEnd, guardSyms)
	patchGuardSyms(e.Body, guardSyms)
	for _, b := range e.Bindings {
		patchGuardSyms(b.Init, guardSyms)
	}
	for _, s := range e.Stmts {
		patchGuardSyms(s, guardSyms)
	}
	for _, el := range e.Elems {
		patchGuardSyms(el, guardSyms)
	}
	for _, a := range e.Args {
		patchGuardSyms(a, guardSyms)
	}
}

// ExtendGuardWithBody merges a hole body's free variables into its
// previously computed guard set (the part contributed by preceding
// statements), preserving insertion order and deduplicating. Rewrite calls
// this once per hole after computeGuardSets has produced the
// preceding-statements portion, completing spec §3's guard-set definition:
// "the names a hole may read, determined by statements preceding it [...]
// or referenced at that hole".
func ExtendGuardWithBody(guard []string, body *astmodel.Expr) []string {
	seen := map[string]bool{}
	out := append([]string(nil), guard...)
	for _, n := range out {
		seen[n] = true
	}
	for _, n := range astmodel.FreeVars(body) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
