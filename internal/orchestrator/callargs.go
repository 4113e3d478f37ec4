package orchestrator

import "github.com/nbjit/engine/internal/astmodel"

// boundNamesBeforeHole returns, for each hole ordinal reachable from main,
// the ordered list of names bound by statements preceding that hole — the
// same traversal shape internal/rewriter uses for guard-set computation,
// kept as an independent implementation here since this package needs the
// pre-extension bound list, not the final guard set.
func boundNamesBeforeHole(main *astmodel.Expr, numHoles int) [][]string {
	seen := map[string]bool{}
	var order []string
	result := make([][]string, numHoles)

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	snapshot := func() []string {
		out := make([]string, len(order))
		copy(out, order)
		return out
	}

	var walk func(*astmodel.Expr)
	walk = func(e *astmodel.Expr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case astmodel.KindHole:
			result[e.Ordinal] = snapshot()
			return
		case astmodel.KindVar:
			return
		case astmodel.KindAssign:
			walk(e.Rhs)
			add(e.Str)
			return
		case astmodel.KindFor:
			walk(e.RangeStart)
			walk(e.RangeEnd)
			add(e.Str)
			walk(e.Body)
			return
		}
		walk(e.Lhs)
		walk(e.Rhs)
		walk(e.Value)
		walk(e.Cond)
		walk(e.Then)
		walk(e.Else)
		walk(e.RangeStart)
		walk(e.RangeEnd)
		walk(e.Body)
		for _, b := range e.Bindings {
			walk(b.Init)
			add(b.Name)
		}
		for _, s := range e.Stmts {
			walk(s)
		}
		for _, el := range e.Elems {
			walk(el)
		}
		for _, a := range e.Args {
			walk(a)
		}
	}
	walk(main)
	return result
}

// callArgsForHole implements spec §4.6 step 2: the intersection of a hole's
// guard set with the names already bound at its position, in bound order.
func callArgsForHole(guardSet, boundSoFar []string) []string {
	inGuard := make(map[string]bool, len(guardSet))
	for _, g := range guardSet {
		inGuard[g] = true
	}
	var out []string
	for _, name := range boundSoFar {
		if inGuard[name] {
			out = append(out, name)
		}
	}
	return out
}

// assignmentTarget implements spec §4.6 step 3: if the hole body's first
// statement is an assignment, that name is its target.
func assignmentTarget(body *astmodel.Expr) string {
	if body == nil || body.Kind != astmodel.KindBlock || len(body.Stmts) == 0 {
		return ""
	}
	first := body.Stmts[0]
	if first.Kind == astmodel.KindAssign {
		return first.Str
	}
	return ""
}
